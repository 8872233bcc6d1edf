package event

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// bufferSize は書き込み待ちイベントの上限。超えた分は捨てる
const bufferSize = 256

// Logger はイベントをJSON Lines形式でファイルに追記するSink
// 書き込みは専用ゴルーチンで行い、Logの呼び出し側をブロックしない
type Logger struct {
	file *os.File

	mu     sync.Mutex
	closed bool
	ch     chan Event
	done   chan struct{}
}

// NewLogger は追記先ファイルを開いて新しいLoggerを作成する
func NewLogger(path string) (*Logger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("イベントログのディレクトリ作成に失敗: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("イベントログを開けませんでした: %w", err)
	}

	l := &Logger{
		file: file,
		ch:   make(chan Event, bufferSize),
		done: make(chan struct{}),
	}
	go l.writeLoop()
	return l, nil
}

// Log はイベントを記録キューに積む
// バッファが満杯の場合はイベントを捨てて即座に戻る
func (l *Logger) Log(e Event) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.ch <- e:
	default:
		// 満杯。ワーカーを待たせるよりイベントを失う方を選ぶ
	}
}

// writeLoop はキューからイベントを取り出してファイルに追記する
func (l *Logger) writeLoop() {
	defer close(l.done)

	encoder := json.NewEncoder(l.file)
	for e := range l.ch {
		if err := encoder.Encode(e); err != nil {
			log.Printf("イベントの書き込みに失敗しました: %v", err)
		}
	}
}

// Close はキューを閉じ、残りのイベントを書き切ってからファイルを閉じる
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.ch)
	l.mu.Unlock()

	<-l.done
	return l.file.Close()
}
