package chroma

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func opts(threshold, feather int) Options {
	o := DefaultOptions()
	o.Threshold = threshold
	o.Feather = feather
	return o
}

func TestRemove_AllWhite(t *testing.T) {
	src := newNRGBA(2, 2, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	got, err := Remove(src, opts(30, 0))
	require.NoError(t, err)

	assert.Equal(t, src.Bounds(), got.Bounds())
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 0}, got.NRGBAAt(x, y))
		}
	}
}

func TestRemove_RedAndWhite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	src.SetNRGBA(0, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	got, err := Remove(src, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{R: 255, A: 255}, got.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 0}, got.NRGBAAt(0, 1))
}

func TestRemove_FeatherBand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		pixel     color.NRGBA
		threshold int
		feather   int
		wantAlpha uint8
	}{
		{name: "inside threshold", pixel: color.NRGBA{R: 250, G: 250, B: 250, A: 255}, threshold: 30, feather: 2, wantAlpha: 0},
		{name: "middle of band", pixel: color.NRGBA{R: 255, G: 255, B: 215, A: 255}, threshold: 30, feather: 2, wantAlpha: 128},
		{name: "start of band", pixel: color.NRGBA{R: 255, G: 255, B: 225, A: 255}, threshold: 30, feather: 2, wantAlpha: 0},
		{name: "hard cutoff keeps boundary", pixel: color.NRGBA{R: 255, G: 255, B: 225, A: 255}, threshold: 30, feather: 0, wantAlpha: 255},
		{name: "past band", pixel: color.NRGBA{R: 255, G: 255, B: 195, A: 255}, threshold: 30, feather: 2, wantAlpha: 255},
		{name: "feather relative to own alpha", pixel: color.NRGBA{R: 255, G: 255, B: 215, A: 100}, threshold: 30, feather: 2, wantAlpha: 50},
		{name: "partial alpha past band", pixel: color.NRGBA{R: 0, G: 0, B: 0, A: 77}, threshold: 30, feather: 2, wantAlpha: 77},
		{name: "threshold beyond max distance", pixel: color.NRGBA{A: 255}, threshold: 500, feather: 0, wantAlpha: 0},
		{name: "huge feather does not overflow band", pixel: color.NRGBA{R: 255, G: 255, B: 215, A: 255}, threshold: 30, feather: math.MaxInt, wantAlpha: 0},
		{name: "zero threshold keeps exact match", pixel: color.NRGBA{R: 255, G: 255, B: 255, A: 255}, threshold: 0, feather: 0, wantAlpha: 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := newNRGBA(1, 1, tt.pixel)
			got, err := Remove(src, opts(tt.threshold, tt.feather))
			require.NoError(t, err)

			px := got.NRGBAAt(0, 0)
			assert.Equal(t, tt.wantAlpha, px.A)
			assert.Equal(t, [3]uint8{tt.pixel.R, tt.pixel.G, tt.pixel.B}, [3]uint8{px.R, px.G, px.B})
		})
	}
}

func TestRemove_Properties(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(255 - x*8), G: uint8(255 - y*8), B: uint8(255 - x*y), A: uint8(255 - x)})
		}
	}
	o := opts(30, 2)

	got, err := Remove(src, o)
	require.NoError(t, err)
	require.Equal(t, src.Bounds().Size(), got.Bounds().Size())

	for i := 0; i < len(src.Pix); i += 4 {
		d := Distance(src.Pix[i], src.Pix[i+1], src.Pix[i+2], o.Background)
		assert.Equal(t, src.Pix[i:i+3], got.Pix[i:i+3])
		switch {
		case d < float64(o.Threshold):
			assert.Zero(t, got.Pix[i+3])
		case d > float64(o.Threshold+o.Feather*FeatherStep):
			assert.Equal(t, src.Pix[i+3], got.Pix[i+3])
		default:
			assert.LessOrEqual(t, got.Pix[i+3], src.Pix[i+3])
		}
	}
}

func TestRemove_DoesNotModifyInput(t *testing.T) {
	src := newNRGBA(3, 3, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	before := append([]uint8(nil), src.Pix...)

	_, err := Remove(src, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, before, src.Pix)
}

func TestRemove_HardCutoffIsRepeatable(t *testing.T) {
	src := newNRGBA(4, 4, color.NRGBA{R: 240, G: 250, B: 255, A: 255})
	src.SetNRGBA(1, 1, color.NRGBA{R: 20, G: 40, B: 60, A: 255})

	encode := func() []byte {
		got, err := Remove(src, opts(30, 0))
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, got))
		return buf.Bytes()
	}

	assert.Equal(t, encode(), encode())
}

func TestRemove_OpaqueSourceWithoutAlpha(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 7, 6))
	src.Set(5, 5, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	src.Set(6, 5, color.RGBA{B: 200, A: 255})

	got, err := Remove(src, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 2, 1), got.Bounds())
	assert.Equal(t, uint8(0), got.NRGBAAt(0, 0).A)
	assert.Equal(t, color.NRGBA{B: 200, A: 255}, got.NRGBAAt(1, 0))
}

func TestRemove_InvalidParameters(t *testing.T) {
	src := newNRGBA(1, 1, color.NRGBA{A: 255})

	for _, o := range []Options{opts(-1, 2), opts(30, -3)} {
		_, err := Remove(src, o)
		var invalid *InvalidParameterError
		assert.True(t, errors.As(err, &invalid), "got %v", err)
	}

	_, err := Remove(image.NewNRGBA(image.Rect(0, 0, 0, 0)), DefaultOptions())
	var invalid *InvalidParameterError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "image", invalid.Name)

	_, err = NewRemover(opts(-5, 0))
	assert.Error(t, err)
}

func TestRemover(t *testing.T) {
	r, err := NewRemover(opts(30, 0))
	require.NoError(t, err)
	assert.Equal(t, 30, r.Options().Threshold)

	var remover BackgroundRemover = r
	got, err := remover.Remove(newNRGBA(2, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255}))
	require.NoError(t, err)

	out, ok := got.(*image.NRGBA)
	require.True(t, ok)
	assert.Equal(t, uint8(0), out.NRGBAAt(1, 0).A)
}

func TestAlphaMask(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 0})
	src.SetNRGBA(1, 0, color.NRGBA{R: 10, A: 200})

	mask := AlphaMask(src)
	assert.Equal(t, uint8(0), mask.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(200), mask.GrayAt(1, 0).Y)
}
