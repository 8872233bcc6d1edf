package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024 * 64,
	// ブラウザの閲覧ページ以外からの接続も許可する
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleCameraWebSocket はWebSocketストリーミングエンドポイントの実装。
// JPEGフレームをバイナリメッセージとして配信する
func (s *Server) handleCameraWebSocket(c *gin.Context) {
	worker, ok := s.lookupWorker(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocketアップグレード失敗 (%s): %v", worker.ID(), err)
		return
	}
	defer conn.Close()

	// クライアントからの制御メッセージ（Closeなど）を処理するための読み取りループ
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	clientGone := c.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			return
		case <-closed:
			return
		default:
		}

		jpeg, ok := encodeLatestJPEG(worker)
		if !ok {
			time.Sleep(noFrameWait)
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.BinaryMessage, jpeg); err != nil {
			return
		}

		time.Sleep(streamInterval)
	}
}
