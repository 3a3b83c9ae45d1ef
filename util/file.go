package util

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chaos-io/chromakey/chroma"
	nhttp "github.com/chaos-io/chromakey/util/http"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedExts 批量模式下会处理的扩展名
var SupportedExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

func IsSupportedImage(path string) bool {
	return SupportedExts[strings.ToLower(filepath.Ext(path))]
}

// IsRemoteURL 判断输入是否为 http(s) 地址
func IsRemoteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// DownloadImage 下载图片
func DownloadImage(ctx context.Context, cli nhttp.IClient, url string) (image.Image, error) {
	var data []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: url,
		Method:     "GET",
		Response:   &data,
	}
	if err := cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, &chroma.NotFoundError{Path: url, Err: err}
	}

	return DecodeImage(bytes.NewReader(data), url)
}

// OpenImage 打开本地图片
func OpenImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &chroma.NotFoundError{Path: path, Err: err}
	}
	defer func() {
		_ = file.Close()
	}()

	return DecodeImage(file, path)
}

// MaxPixels 解码前按头部声明的尺寸拒绝过大的图片
const MaxPixels = 1 << 26

// DecodeImage 解码任意已注册格式，name 只用于错误信息
func DecodeImage(r io.Reader, name string) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &chroma.NotFoundError{Path: name, Err: err}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &chroma.DecodeError{Path: name, Err: err}
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, &chroma.DecodeError{
			Path: name,
			Err:  fmt.Errorf("image too large: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, MaxPixels),
		}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &chroma.DecodeError{Path: name, Err: err}
	}
	return img, nil
}

// SavePNG 写出 PNG（保留 alpha），目录不存在时自动创建
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return &chroma.EncodeError{Path: path, Err: err}
	}

	f, err := os.Create(path)
	if err != nil {
		return &chroma.EncodeError{Path: path, Err: err}
	}

	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return &chroma.EncodeError{Path: path, Err: fmt.Errorf("png encode: %w", err)}
	}
	if err := f.Close(); err != nil {
		return &chroma.EncodeError{Path: path, Err: err}
	}
	return nil
}

// OutputPath 由输入路径推导输出路径: <outDir>/<stem><suffix>.png
// outDir 为空时写在输入文件旁边
func OutputPath(input, outDir, suffix string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if outDir == "" {
		outDir = filepath.Dir(input)
	}
	return filepath.Join(outDir, stem+suffix+".png")
}
