package rembg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/chaos-io/chromakey/chroma"
	"github.com/chaos-io/chromakey/util"
)

// Result 单个文件的处理结果，Err 为 nil 表示成功
type Result struct {
	Input   string
	Output  string
	Skipped bool
	Err     error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Report 一次批量处理的汇总
type Report struct {
	ID        string
	Dir       string
	OutDir    string
	Results   []Result
	Succeeded int
	Failed    int
	Skipped   int
	Elapsed   time.Duration
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	switch {
	case res.Err != nil:
		r.Failed++
	case res.Skipped:
		r.Skipped++
	default:
		r.Succeeded++
	}
}

// Failures 只返回失败的结果
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// RemoveDir 顺序处理目录下所有支持的图片，单个文件失败不会中断整个批次
// outDir 为空时输出写在原目录。ctx 只在两张图片之间检查，取消时返回已完成的部分和 ctx.Err()
func (p *Processor) RemoveDir(ctx context.Context, dir, outDir string) (*Report, error) {
	start := time.Now()
	report := &Report{
		ID:     ksuid.New().String(),
		Dir:    dir,
		OutDir: outDir,
	}
	if report.OutDir == "" {
		report.OutDir = dir
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &chroma.NotFoundError{Path: dir, Err: err}
	}

	// 同名不同扩展名（a.png / a.tiff）会推导出同一个输出路径
	claimed := make(map[string]bool, len(entries))

	logger := p.logger.With("batch", report.ID)
	logger.Info("batch started", "dir", dir, "out_dir", report.OutDir, "entries", len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			report.Elapsed = time.Since(start)
			logger.Warn("batch cancelled", "done", len(report.Results), "err", err)
			return report, err
		}

		name := entry.Name()
		if entry.IsDir() || !util.IsSupportedImage(name) || p.isOutputName(name) {
			continue
		}

		input := filepath.Join(dir, name)
		output, err := claimOutput(claimed, input, report.OutDir, p.suffix)
		if err != nil {
			logger.Error("output name collision", "input", input, "err", err)
			report.add(Result{Input: input, Err: err})
			continue
		}

		if p.skipUpToDate && upToDate(input, output) {
			report.add(Result{Input: input, Output: output, Skipped: true})
			continue
		}

		written, err := p.RemoveFile(ctx, input, output)
		if err != nil {
			logger.Error("failed to remove background", "input", input, "err", err)
			report.add(Result{Input: input, Err: err})
			continue
		}
		report.add(Result{Input: input, Output: written})
	}

	report.Elapsed = time.Since(start)
	logger.Info("batch finished",
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

// claimOutput 默认 <stem><suffix>.png，已被本批次占用时退到 <name.ext><suffix>.png
func claimOutput(claimed map[string]bool, input, outDir, suffix string) (string, error) {
	candidates := []string{
		util.OutputPath(input, outDir, suffix),
		util.OutputPath(input+".png", outDir, suffix),
	}
	for _, c := range candidates {
		if !claimed[c] {
			claimed[c] = true
			return c, nil
		}
	}
	return "", &chroma.InvalidParameterError{Name: "output", Value: candidates[0], Reason: "already written by another file in this batch"}
}

// isOutputName 跳过之前生成的结果，避免在同一目录重复处理
func (p *Processor) isOutputName(name string) bool {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.HasSuffix(stem, p.suffix)
}

func upToDate(input, output string) bool {
	in, err := os.Stat(input)
	if err != nil {
		return false
	}
	out, err := os.Stat(output)
	if err != nil {
		return false
	}
	return !out.ModTime().Before(in.ModTime())
}
