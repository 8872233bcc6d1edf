package camera

import (
	"fmt"
	"strconv"

	"gocv.io/x/gocv"
)

// FrameSource は生フレームの取得を抽象化する
// 再接続のポリシー（いつ・何回試すか）はワーカー側の責務であり、
// FrameSource自身は1回分のopen/read/closeだけを提供する
type FrameSource interface {
	// Open はソースへの接続を開く。すでに開いていれば開き直す
	Open() error
	// Read は1フレームをdstに読み込む。失敗時はfalseを返す
	Read(dst *gocv.Mat) bool
	// Close は接続を閉じる。未接続なら何もしない
	Close()
	// IsOpened は接続が生きているかを返す
	IsOpened() bool
}

// captureSource はgocv.VideoCaptureによるFrameSource実装
// デバイス番号かストリームURIかは構築時に一度だけ判定し、以後は変えない
type captureSource struct {
	origin   string
	deviceID int
	isDevice bool
	cap      *gocv.VideoCapture
}

// NewFrameSource はoriginの形からキャプチャ戦略を選んでFrameSourceを作成する
// 数値ならローカルデバイス、それ以外はネットワークストリームとして扱う
func NewFrameSource(origin string) FrameSource {
	s := &captureSource{origin: origin}
	if id, err := strconv.Atoi(origin); err == nil {
		s.deviceID = id
		s.isDevice = true
	}
	return s
}

// Open はソースへの接続を開く
func (s *captureSource) Open() error {
	s.Close()

	var (
		cap *gocv.VideoCapture
		err error
	)
	if s.isDevice {
		cap, err = gocv.OpenVideoCapture(s.deviceID)
	} else {
		cap, err = gocv.OpenVideoCapture(s.origin)
	}
	if err != nil {
		return fmt.Errorf("ソースを開けませんでした (%s): %w", s.origin, err)
	}
	if !cap.IsOpened() {
		_ = cap.Close()
		return fmt.Errorf("ソースを開けませんでした (%s)", s.origin)
	}

	if !s.isDevice {
		// ストリームは完全性より鮮度を優先する。内部バッファを最小にして遅延を抑える
		cap.Set(gocv.VideoCaptureBufferSize, 1)
	}

	s.cap = cap
	return nil
}

// Read は1フレームを読み込む
func (s *captureSource) Read(dst *gocv.Mat) bool {
	if s.cap == nil {
		return false
	}
	return s.cap.Read(dst)
}

// Close は接続を閉じる
func (s *captureSource) Close() {
	if s.cap != nil {
		_ = s.cap.Close()
		s.cap = nil
	}
}

// IsOpened は接続が生きているかを返す
func (s *captureSource) IsOpened() bool {
	return s.cap != nil && s.cap.IsOpened()
}
