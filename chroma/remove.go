package chroma

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// BackgroundRemover 把背景变为透明，返回新图片，不修改输入
type BackgroundRemover interface {
	Remove(img image.Image) (image.Image, error)
}

// Remover 绑定一组固定参数的 BackgroundRemover
type Remover struct {
	opts Options
}

func NewRemover(opts Options) (*Remover, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Remover{opts: opts}, nil
}

func (r *Remover) Options() Options {
	return r.opts
}

func (r *Remover) Remove(img image.Image) (image.Image, error) {
	return Remove(img, r.opts)
}

// Remove 色键去背景
//
//	d < threshold                  alpha = 0
//	d < threshold + feather*10     alpha 在 [0, 原 alpha] 之间线性过渡
//	其余                           alpha 不变
//
// RGB 通道原样保留；opts.AutoDetect 为 true 时忽略 opts.Background，改用四角采样的颜色
func Remove(img image.Image, opts Options) (*image.NRGBA, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, &InvalidParameterError{Name: "image", Value: "empty", Reason: "image has no pixels"}
	}

	bg := opts.Background
	if opts.AutoDetect {
		bg = DetectBackground(img)
	}
	return apply(img, bg, opts), nil
}

// RemoveWith 与 Remove 相同，但背景色已经确定（忽略 opts.AutoDetect）
func RemoveWith(img image.Image, bg RGB, opts Options) (*image.NRGBA, error) {
	opts.Background = bg
	opts.AutoDetect = false
	return Remove(img, opts)
}

func apply(img image.Image, bg RGB, opts Options) *image.NRGBA {
	dst := cloneNRGBA(img)
	threshold := float64(opts.Threshold)
	band := opts.band()

	// 新建的 NRGBA Stride == 4*W，像素 (x, y) 在 (y*W+x)*4
	for i := 0; i+3 < len(dst.Pix); i += 4 {
		d := Distance(dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], bg)
		dst.Pix[i+3] = alphaAt(d, dst.Pix[i+3], threshold, band)
	}
	return dst
}

// alphaAt 半透明的源像素按自身 alpha 羽化，而不是按 255
func alphaAt(d float64, a uint8, threshold, band float64) uint8 {
	switch {
	case d < threshold:
		return 0
	case d < threshold+band:
		return uint8(math.Round(float64(a) * (d - threshold) / band))
	default:
		return a
	}
}

// cloneNRGBA 复制到原点为 (0,0) 的新 NRGBA，无 alpha 的源图 alpha 为 255
func cloneNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
