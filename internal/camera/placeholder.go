package camera

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

const (
	placeholderWidth  = 640
	placeholderHeight = 480
)

// NoSignalFrame はソースが利用できないときに配信する診断用フレームを作成する
// 視聴側が古いフレームや無画面ではなく「利用不可」を明確に観測できるようにする
// Hersheyフォントの制約でテキストはASCIIのみ。返り値のCloseは呼び出し側の責務
func NoSignalFrame(sourceID string, width, height int) gocv.Mat {
	if width <= 0 {
		width = placeholderWidth
	}
	if height <= 0 {
		height = placeholderHeight
	}

	frame := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	frame.SetTo(gocv.NewScalar(40, 40, 40, 0)) // 暗い灰色の背景

	white := color.RGBA{R: 255, G: 255, B: 255}
	orange := color.RGBA{R: 255, G: 165, B: 0}

	putCentered(&frame, "Camera Unavailable", width, height/2-60, 0.8, 2, orange)
	putCentered(&frame, fmt.Sprintf("ID: %s", sourceID), width, height/2-10, 0.6, 2, white)
	putCentered(&frame, "Check:", width, height/2+30, 0.5, 1, white)
	putCentered(&frame, "- camera connected?", width, height/2+55, 0.4, 1, white)
	putCentered(&frame, "- in use by another application?", width, height/2+75, 0.4, 1, white)
	putCentered(&frame, "- access permissions?", width, height/2+95, 0.4, 1, white)

	return frame
}

// putCentered はテキストを水平方向センタリングして描画する
func putCentered(frame *gocv.Mat, text string, width, y int, scale float64, thickness int, clr color.RGBA) {
	size := gocv.GetTextSize(text, gocv.FontHersheySimplex, scale, thickness)
	x := (width - size.X) / 2
	gocv.PutText(frame, text, image.Pt(x, y), gocv.FontHersheySimplex, scale, clr, thickness)
}
