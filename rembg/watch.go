package rembg

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Watcher 按 cron 表达式定时批量处理目录，只处理新增或更新过的图片
type Watcher struct {
	p        *Processor
	schedule cron.Schedule
	dir      string
	outDir   string

	mu   sync.Mutex
	last *Report
	runs int
}

// NewWatcher schedule 支持 5 段 cron 表达式和 "@every 1m" 之类的描述符
func NewWatcher(p *Processor, schedule, dir, outDir string) (*Watcher, error) {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", schedule, err)
	}

	// 已处理过的文件不再重复处理
	wp := *p
	wp.skipUpToDate = true

	return &Watcher{
		p:        &wp,
		schedule: sched,
		dir:      dir,
		outDir:   outDir,
	}, nil
}

// Run 阻塞直到 ctx 结束，并等待正在执行的批次完成
func (w *Watcher) Run(ctx context.Context) error {
	logger := cronLogger{w.p.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(w.schedule, cron.FuncJob(func() {
		w.runOnce(ctx)
	}))

	w.p.logger.Info("watching directory", "dir", w.dir, "out_dir", w.outDir)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (w *Watcher) runOnce(ctx context.Context) {
	report, err := w.p.RemoveDir(ctx, w.dir, w.outDir)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.runs++
	if err != nil {
		w.p.logger.Error("scheduled batch failed", "dir", w.dir, "err", err)
		return
	}
	w.last = report
}

// LastReport 最近一次批次的结果，还没有运行过时返回 nil
func (w *Watcher) LastReport() *Report {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *Watcher) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// cronLogger 把 cron 的日志接到 slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
