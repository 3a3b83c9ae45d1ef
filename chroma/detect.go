package chroma

import (
	"image"

	"github.com/nfnt/resize"
)

// SampleSize 自动检测背景时缩略图的边长
const SampleSize = 10

// DetectBackground 把图片缩到 10x10，取四个角的平均色作为背景色
// 只适用于边框是纯色背景的图片，四角不是背景时结果不可靠
func DetectBackground(img image.Image) RGB {
	small := cloneNRGBA(resize.Resize(SampleSize, SampleSize, img, resize.Bilinear))
	w, h := small.Bounds().Dx(), small.Bounds().Dy()

	corners := []image.Point{
		{X: 0, Y: 0},
		{X: w - 1, Y: 0},
		{X: 0, Y: h - 1},
		{X: w - 1, Y: h - 1},
	}

	var r, g, b int
	for _, p := range corners {
		off := small.PixOffset(p.X, p.Y)
		r += int(small.Pix[off])
		g += int(small.Pix[off+1])
		b += int(small.Pix[off+2])
	}

	n := len(corners)
	return RGB{
		R: uint8((r + n/2) / n),
		G: uint8((g + n/2) / n),
		B: uint8((b + n/2) / n),
	}
}
