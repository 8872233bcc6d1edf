package camera

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"
)

const (
	// recordingFPS は録画ファイルの固定フレームレート
	recordingFPS = 20
	// recordingCodec は録画に使うコーデック（VP8 / webmコンテナ）
	recordingCodec = "VP80"
	// recordingExt は録画ファイルの拡張子
	recordingExt = "webm"
	// recordingTimeFormat は録画ファイル名に埋め込む日時の書式（例: 25-12-2024_143022）
	recordingTimeFormat = "02-01-2006_150405"
)

// Recorder は1録画セッション分の動画エンコーダを包む
type Recorder struct {
	writer *gocv.VideoWriter
	path   string
	closed bool
}

// NewRecorder は出力ファイルを開いて新しいRecorderを作成する
// ファイル名は {folder}/{sourceID}-gravacao-{日時}.webm
func NewRecorder(folder, sourceID string, width, height int) (*Recorder, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("録画フォルダの作成に失敗: %w", err)
	}

	path := filepath.Join(folder, recordingFileName(sourceID, time.Now()))

	writer, err := gocv.VideoWriterFile(path, recordingCodec, recordingFPS, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("動画エンコーダの作成に失敗 (%s): %w", path, err)
	}
	if !writer.IsOpened() {
		_ = writer.Close()
		return nil, fmt.Errorf("動画エンコーダを開けませんでした (%s)", path)
	}

	return &Recorder{writer: writer, path: path}, nil
}

// recordingFileName は録画ファイル名を組み立てる
func recordingFileName(sourceID string, now time.Time) string {
	return fmt.Sprintf("%s-gravacao-%s.%s", sourceID, now.Format(recordingTimeFormat), recordingExt)
}

// Path は出力ファイルのパスを返す
func (r *Recorder) Path() string {
	return r.path
}

// Write は生フレームを1枚書き込む
// 書き込みの失敗は録画継続を優先して握りつぶす（呼び出し元には伝播しない）
func (r *Recorder) Write(frame gocv.Mat) {
	if r.closed {
		return
	}
	_ = r.writer.Write(frame)
}

// Close はエンコーダをフラッシュして閉じる。2回目以降の呼び出しは何もしない
func (r *Recorder) Close() {
	if r.closed {
		return
	}
	r.closed = true
	_ = r.writer.Close()
}
