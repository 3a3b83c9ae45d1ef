package chroma

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// RGB 背景参考色（不含 alpha）
type RGB struct {
	R, G, B uint8
}

var White = RGB{R: 255, G: 255, B: 255}

// ParseHex 解析 "#FFFFFF" / "FFF" 形式的十六进制颜色，大小写不敏感
func ParseHex(s string) (RGB, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return RGB{}, &InvalidParameterError{Name: "background", Value: s, Reason: "expected #RGB or #RRGGBB"}
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, &InvalidParameterError{Name: "background", Value: s, Reason: "not a hex color"}
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func (c RGB) String() string {
	return c.Hex()
}

func (c RGB) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// Distance RGB 空间欧氏距离，范围 [0, √(255²×3) ≈ 441.67]
func Distance(r, g, b uint8, ref RGB) float64 {
	dr := float64(r) - float64(ref.R)
	dg := float64(g) - float64(ref.G)
	db := float64(b) - float64(ref.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}
