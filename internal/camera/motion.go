package camera

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// gaussianKernelSize はノイズ抑制用ガウシアンブラーのカーネルサイズ
	gaussianKernelSize = 21
	// diffThreshold は背景差分を2値化するときのしきい値
	diffThreshold = 30
	// DefaultMinContourArea は動きとみなす輪郭の最小ピクセル面積のデフォルト値
	DefaultMinContourArea = 500
)

// MotionDetector は静的背景差分による動き検知器
//
// 背景はObserveの初回呼び出しで確定し、以後のフレームからは更新しない。
// 背景を取り直すのはRearmだけ。照明変化に弱い代わりに、画素あたりO(1)で
// ドリフトによる検知漏れがない。この特性は意図されたものなので変えないこと
//
// ロックは内部に持つ。ObserveとRearm/Closeは別ゴルーチンから呼んでよい
type MotionDetector struct {
	minArea float64

	mu         sync.Mutex
	background gocv.Mat
}

// NewMotionDetector は新しいMotionDetectorを作成する
func NewMotionDetector(minArea float64) *MotionDetector {
	if minArea <= 0 {
		minArea = DefaultMinContourArea
	}
	return &MotionDetector{
		minArea:    minArea,
		background: gocv.NewMat(),
	}
}

// Observe は生フレームを観測し、動き検知結果を返す
//
// 背景が未確定の場合、このフレームのブラー済みグレースケールを背景として
// 保存し、Calibrated=trueを返す。校正フレームは動きフレームではないので、
// 呼び出し側は動き起因の処理をスキップしなければならない
func (d *MotionDetector) Observe(raw gocv.Mat) MotionResult {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(raw, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(gaussianKernelSize, gaussianKernelSize), 0, 0, gocv.BorderDefault)

	// ロック下では背景のコピーだけ行い、重い画素計算はロックの外で行う
	d.mu.Lock()
	if d.background.Empty() {
		// 校正フレーム。blurredの所有権は背景に移る
		d.background.Close()
		d.background = blurred
		d.mu.Unlock()
		return MotionResult{Calibrated: true}
	}
	background := d.background.Clone()
	d.mu.Unlock()
	defer background.Close()
	defer blurred.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(background, blurred, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, diffThreshold, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var result MotionResult
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if gocv.ContourArea(contour) < d.minArea {
			// 小さすぎる輪郭はノイズとして無視する
			continue
		}
		result.Detected = true
		result.Regions = append(result.Regions, gocv.BoundingRect(contour))
	}
	return result
}

// Rearm は背景を破棄し、次のObserveで取り直させる
// 動き検知を有効化し直したときに呼ぶ
func (d *MotionDetector) Rearm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.background.Close()
	d.background = gocv.NewMat()
}

// Close は保持しているリソースを解放する
func (d *MotionDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.background.Close()
}
