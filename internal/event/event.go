// Package event 監視イベントの記録を担う
//
// # 責務
// - 録画開始/停止・動き検知・物体検知・システムエラーなどのイベント記録
// - JSON Lines形式でのファイル追記
//
// # 仕様
// - 記録はfire-and-forget。シンクの失敗や詰まりでワーカーループを
//   決してブロックしない（バッファ満杯時は捨てる）
package event

import "time"

// Type は記録されるイベントの種別を表す
type Type string

const (
	// TypeMotionDetected は動き検知イベント
	TypeMotionDetected Type = "motion_detected"
	// TypeObjectDetected は物体検知イベント
	TypeObjectDetected Type = "object_detected"
	// TypeRecordingStarted は録画開始イベント
	TypeRecordingStarted Type = "recording_started"
	// TypeRecordingStopped は録画停止イベント
	TypeRecordingStopped Type = "recording_stopped"
	// TypeCameraConnected はカメラ接続イベント
	TypeCameraConnected Type = "camera_connected"
	// TypeCameraDisconnected はカメラ切断イベント
	TypeCameraDisconnected Type = "camera_disconnected"
	// TypeSystemError はシステムエラーイベント
	TypeSystemError Type = "system_error"
	// TypeUserAction はユーザー操作イベント
	TypeUserAction Type = "user_action"
)

// Severity はイベントの深刻度を表す
type Severity string

const (
	// SeverityInfo は通常の情報
	SeverityInfo Severity = "info"
	// SeverityWarning は警告
	SeverityWarning Severity = "warning"
	// SeverityError はエラー
	SeverityError Severity = "error"
)

// Event は1件の監視イベント
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Severity  Severity       `json:"severity"`
	CameraID  string         `json:"camera_id,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink はイベントの送り先を表す
type Sink interface {
	// Log はイベントを記録する。実装は決してブロックしてはならない
	Log(e Event)
}

// Discard は何も記録しないSink
type Discard struct{}

// Log は何もしない
func (Discard) Log(Event) {}
