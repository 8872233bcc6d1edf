package camera

import "gocv.io/x/gocv"

// ObjectDetectorBridge は外部の物体検知推論エンジンへの境界
//
// 推論エンジン自体（モデルのロード・実行）はこのパッケージの関心外で、
// 不透明な呼び出しとして扱う。ワーカーはブリッジの有無を構築時の能力
// フラグとして確定させ、実行時の型検査では判断しない
type ObjectDetectorBridge interface {
	// Detect はフレームに対して推論を実行し、検知枠を描画した新しい
	// フレームと検知リストを返す。返されたフレームの所有権は呼び出し側に
	// 移る（Closeは呼び出し側の責務）
	Detect(frame gocv.Mat) (gocv.Mat, []DetectedObject, error)
}
