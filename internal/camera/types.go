package camera

import (
	"image"
	"time"
)

// Status はワーカーの動作状態を表す
type Status string

const (
	// StatusDisconnected はソースに接続できていない状態を表す
	StatusDisconnected Status = "disconnected"
	// StatusIdle は接続済みで録画していない状態を表す
	StatusIdle Status = "idle"
	// StatusRecording は録画中の状態を表す
	StatusRecording Status = "recording"
)

// Source は1つの映像ソースの定義を表す
// 設定から生成され、ワーカーの生存期間中は不変。変更にはワーカーの作り直しが必要
type Source struct {
	ID     string // ソースの一意識別子（例: "webcam"）
	Name   string // 表示名
	Origin string // デバイス番号（例: "0"）またはストリームURI（例: "rtsp://..."）
}

// WorkerStatus はワーカーの現在状態のスナップショット
type WorkerStatus struct {
	ID                     string `json:"cam_id"`
	Name                   string `json:"name"`
	State                  Status `json:"state"`
	Recording              bool   `json:"is_recording"`
	MotionEnabled          bool   `json:"motion_enabled"`
	ObjectDetectionEnabled bool   `json:"object_detection_enabled"`
	HasObjectDetection     bool   `json:"has_object_detection"`
}

// MotionResult は1フレーム分の動き検知結果を表す
type MotionResult struct {
	// Calibrated はこのフレームが背景の校正に使われたことを示す
	// trueの場合、呼び出し側はこの周回の動き起因の処理を行ってはならない
	Calibrated bool
	// Detected は最小面積以上の動き領域が1つ以上あったことを示す
	Detected bool
	// Regions は検知された動き領域の外接矩形
	Regions []image.Rectangle
}

// DetectedObject は物体検知ブリッジが返す1件の検知結果
type DetectedObject struct {
	Class      string  `json:"class"`
	Confidence float32 `json:"confidence"`
	BBox       [4]int  `json:"bbox"` // [x1, y1, x2, y2]
}

// DetectionRecord は1回の推論で得られた検知のまとまり
type DetectionRecord struct {
	Timestamp time.Time        `json:"timestamp"`
	Objects   []DetectedObject `json:"objects"`
	Count     int              `json:"count"`
}

// DetectionStats はワーカーごとの物体検知統計
type DetectionStats struct {
	TotalDetections int               `json:"total_detections"`
	CountsByClass   map[string]int    `json:"detection_counts"`
	LastDetectionAt time.Time         `json:"last_detection_timestamp"`
	Recent          []DetectionRecord `json:"last_detections"`
	Enabled         bool              `json:"is_enabled"`
}
