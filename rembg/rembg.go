package rembg

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/chaos-io/chromakey/chroma"
	"github.com/chaos-io/chromakey/util"
)

const DefaultSuffix = "-nobg"

// Processor 读取图片 -> 去背景 -> 写出 PNG，一次只处理一张
type Processor struct {
	remover      chroma.BackgroundRemover
	suffix       string
	skipUpToDate bool
	logger       *slog.Logger
}

type Option func(*Processor)

// WithSuffix 推导输出文件名时追加的后缀，默认 -nobg
func WithSuffix(suffix string) Option {
	return func(p *Processor) {
		if suffix != "" {
			p.suffix = suffix
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSkipUpToDate 批量模式下跳过输出已存在且不早于输入的文件
func WithSkipUpToDate(skip bool) Option {
	return func(p *Processor) {
		p.skipUpToDate = skip
	}
}

func NewProcessor(remover chroma.BackgroundRemover, opts ...Option) *Processor {
	p := &Processor{
		remover: remover,
		suffix:  DefaultSuffix,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) Suffix() string {
	return p.suffix
}

// RemoveFile 处理单张图片，output 为空时写到输入文件旁边 (<stem><suffix>.png)
// 返回实际写出的路径
func (p *Processor) RemoveFile(ctx context.Context, input, output string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if output == "" {
		output = util.OutputPath(input, "", p.suffix)
	}
	if samePath(input, output) {
		return "", &chroma.InvalidParameterError{Name: "output", Value: output, Reason: "would overwrite the input"}
	}

	img, err := util.OpenImage(input)
	if err != nil {
		return "", err
	}

	out, err := p.remover.Remove(img)
	if err != nil {
		return "", err
	}

	if err := util.SavePNG(output, out); err != nil {
		return "", err
	}

	p.logger.Debug("background removed", "input", input, "output", output)
	return output, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
