package event

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// TestLoggerWritesJSONLines はイベントがJSON Lines形式で追記されることをテストする
func TestLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.jsonl")

	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("ロガーの作成に失敗しました: %v", err)
	}

	logger.Log(Event{
		Type:     TypeMotionDetected,
		Severity: SeverityInfo,
		CameraID: "webcam",
		Message:  "動きを検知",
	})
	logger.Log(Event{
		Type:     TypeRecordingStarted,
		Severity: SeverityInfo,
		CameraID: "webcam",
		Message:  "録画を開始",
	})

	// Closeでキューを書き切る
	if err := logger.Close(); err != nil {
		t.Fatalf("ロガーのクローズに失敗しました: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("イベントログを開けませんでした: %v", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("イベント行の解析に失敗しました: %v", err)
		}
		events = append(events, e)
	}

	if len(events) != 2 {
		t.Fatalf("イベント数が不正: got %d, want 2", len(events))
	}
	if events[0].Type != TypeMotionDetected {
		t.Errorf("1件目のイベント種別が不正: %s", events[0].Type)
	}
	if events[1].Type != TypeRecordingStarted {
		t.Errorf("2件目のイベント種別が不正: %s", events[1].Type)
	}

	// IDとタイムスタンプは自動で付与される
	for i, e := range events {
		if e.ID == "" {
			t.Errorf("イベント%dのIDが空です", i)
		}
		if e.Timestamp.IsZero() {
			t.Errorf("イベント%dのタイムスタンプがゼロ値です", i)
		}
	}
}

// TestLoggerCloseIdempotent はClose後のLogと二重Closeが安全なことをテストする
func TestLoggerCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("ロガーの作成に失敗しました: %v", err)
	}

	if err := logger.Close(); err != nil {
		t.Fatalf("1回目のクローズに失敗しました: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("2回目のクローズでエラー: %v", err)
	}

	// Close後のLogはパニックせず捨てられる
	logger.Log(Event{Type: TypeSystemError, Message: "捨てられるイベント"})
}

// TestDiscardSink は破棄Sinkが何もしないことをテストする
func TestDiscardSink(t *testing.T) {
	var sink Sink = Discard{}
	sink.Log(Event{Type: TypeUserAction, Message: "無視される"})
}
