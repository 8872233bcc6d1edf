package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gocv.io/x/gocv"

	"mihari/internal/camera"
)

const (
	// streamInterval はMJPEG配信のフレーム間隔（20fps相当）
	// ワーカーの生産がこれより遅い場合、同じフレームを重複して送ることがある
	streamInterval = 50 * time.Millisecond
	// noFrameWait はバッファが空のときの待機時間
	noFrameWait = 100 * time.Millisecond
)

// handleCameraStream はMJPEGストリーミングエンドポイントの実装
func (s *Server) handleCameraStream(c *gin.Context) {
	worker, ok := s.lookupWorker(c)
	if !ok {
		return
	}
	s.streamMJPEG(c, worker)
}

// streamMJPEG はワーカーの共有フレームをMJPEG形式で配信する
func (s *Server) streamMJPEG(c *gin.Context, worker *camera.Worker) {
	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	// ストリーミングループ
	for {
		select {
		case <-clientGone:
			// クライアントが切断された
			return
		default:
		}

		jpeg, ok := encodeLatestJPEG(worker)
		if !ok {
			// まだフレームが共有されていない
			time.Sleep(noFrameWait)
			continue
		}

		// MJPEGフレームを書き込み
		if _, err := writer.Write([]byte("--frame\r\n")); err != nil {
			return
		}
		if _, err := writer.Write([]byte("Content-Type: image/jpeg\r\n\r\n")); err != nil {
			return
		}
		if _, err := writer.Write(jpeg); err != nil {
			return
		}
		if _, err := writer.Write([]byte("\r\n")); err != nil {
			return
		}

		// バッファをフラッシュ
		flusher.Flush()

		time.Sleep(streamInterval)
	}
}

// encodeLatestJPEG は最新の共有フレームをJPEGにエンコードして返す
func encodeLatestJPEG(worker *camera.Worker) ([]byte, bool) {
	frame, ok := worker.LatestFrame()
	if !ok {
		return nil, false
	}
	defer frame.Close()

	buf, err := gocv.IMEncode(".jpg", frame)
	if err != nil {
		return nil, false
	}
	defer buf.Close()

	// バッファはClose後に無効になるためコピーする
	jpeg := make([]byte, len(buf.GetBytes()))
	copy(jpeg, buf.GetBytes())
	return jpeg, true
}
