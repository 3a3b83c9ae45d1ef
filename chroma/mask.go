package chroma

import (
	"image"
)

// AlphaMask 把 alpha 通道导出为灰度图：白色保留，黑色去除
func AlphaMask(img image.Image) *image.Gray {
	src, ok := img.(*image.NRGBA)
	if !ok {
		src = cloneNRGBA(img)
	}

	b := src.Bounds()
	mask := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := src.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < b.Dx(); x++ {
			mask.Pix[y*mask.Stride+x] = src.Pix[row+x*4+3]
		}
	}
	return mask
}
