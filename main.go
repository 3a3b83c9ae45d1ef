package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chaos-io/chromakey/chroma"
	"github.com/chaos-io/chromakey/config"
	"github.com/chaos-io/chromakey/logging"
	"github.com/chaos-io/chromakey/rembg"
	"github.com/chaos-io/chromakey/server"
	"github.com/chaos-io/chromakey/util"
	nhttp "github.com/chaos-io/chromakey/util/http"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file")
		input      = flag.String("input", "", "input image path or http(s) URL")
		output     = flag.String("output", "", "output PNG path (default <input>-nobg.png)")
		dir        = flag.String("dir", "", "process every image in this directory")
		outDir     = flag.String("outdir", "", "output directory for -dir / -watch (default: same directory)")
		bgColor    = flag.String("color", "", "background color to remove, e.g. #FFFFFF")
		threshold  = flag.Int("threshold", chroma.DefaultThreshold, "max color distance treated as background")
		feather    = flag.Int("feather", chroma.DefaultFeather, "feather width, 10 distance units per step")
		auto       = flag.Bool("auto", false, "detect the background color from the image corners")
		mask       = flag.Bool("mask", false, "also write the alpha mask as <output>-mask.png")
		serve      = flag.Bool("serve", false, "serve the HTTP API (address from -addr or server.addr)")
		addr       = flag.String("addr", "", "HTTP listen address, overrides server.addr")
		watch      = flag.Bool("watch", false, "re-process -dir on a schedule (from -schedule or watch.schedule)")
		schedule   = flag.String("schedule", "", "cron schedule, e.g. \"@every 1m\", overrides watch.schedule")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}

	// 只有显式传入的 flag 覆盖配置文件
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	cfg = cfg.Apply(config.Overrides{
		Background: *bgColor,
		Threshold:  *threshold,
		Feather:    *feather,
		AutoDetect: *auto,
		Addr:       *addr,
		Schedule:   *schedule,
		Verbose:    *verbose,
	}, set)

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fatal(err)
	}
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		fatal(err)
	}
	opts, err := cfg.Options()
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remover, err := chroma.NewRemover(opts)
	if err != nil {
		fatal(err)
	}
	p := rembg.NewProcessor(remover, rembg.WithSuffix(cfg.Suffix), rembg.WithLogger(logger))

	switch {
	case *serve:
		err = server.New(opts, logger).Run(ctx, cfg.Server.Addr)
	case *watch && *dir == "":
		err = errors.New("-watch requires -dir")
	case *watch:
		err = runWatch(ctx, p, cfg.Watch.Schedule, *dir, *outDir)
	case *dir != "":
		err = runBatch(ctx, p, *dir, *outDir)
	case *input != "":
		err = runSingle(ctx, p, opts, *input, *output, *mask)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func newLogger(c config.LogConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.WithLevel(level), logging.WithFormat(format)), nil
}

func runSingle(ctx context.Context, p *rembg.Processor, opts chroma.Options, input, output string, withMask bool) error {
	defer util.Trace("remove background")()

	if util.IsRemoteURL(input) {
		return runRemote(ctx, p, opts, input, output, withMask)
	}

	written, err := p.RemoveFile(ctx, input, output)
	if err != nil {
		return err
	}
	slog.Info("saved", "output", written)

	if withMask {
		return writeMask(written)
	}
	return nil
}

// runRemote 下载远程图片，输出默认写到当前目录
func runRemote(ctx context.Context, p *rembg.Processor, opts chroma.Options, rawURL, output string, withMask bool) error {
	img, err := util.DownloadImage(ctx, nhttp.NewHTTPClient(), rawURL)
	if err != nil {
		return err
	}

	if output == "" {
		name := "download.png"
		if u, err := url.Parse(rawURL); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
			name = path.Base(u.Path)
		}
		output = util.OutputPath(name, ".", p.Suffix())
	}

	out, err := chroma.Remove(img, opts)
	if err != nil {
		return err
	}
	if err := util.SavePNG(output, out); err != nil {
		return err
	}
	slog.Info("saved", "url", rawURL, "output", output)

	if withMask {
		return writeMask(output)
	}
	return nil
}

// writeMask 把结果的 alpha 通道另存为 <output>-mask.png
func writeMask(output string) error {
	img, err := util.OpenImage(output)
	if err != nil {
		return err
	}
	maskPath := strings.TrimSuffix(output, filepath.Ext(output)) + "-mask.png"
	if err := util.SavePNG(maskPath, chroma.AlphaMask(img)); err != nil {
		return err
	}
	slog.Info("saved mask", "output", maskPath)
	return nil
}

func runBatch(ctx context.Context, p *rembg.Processor, dir, outDir string) error {
	defer util.Trace("batch")()

	report, err := p.RemoveDir(ctx, dir, outDir)
	if report != nil {
		printReport(report)
	}
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d images failed", report.Failed, len(report.Results))
	}
	return nil
}

func runWatch(ctx context.Context, p *rembg.Processor, schedule, dir, outDir string) error {
	w, err := rembg.NewWatcher(p, schedule, dir, outDir)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func printReport(r *rembg.Report) {
	fmt.Printf("batch %s: %d succeeded, %d failed, %d skipped (%s)\n",
		r.ID, r.Succeeded, r.Failed, r.Skipped, r.Elapsed.Round(time.Millisecond))
	for _, res := range r.Failures() {
		fmt.Printf("  FAIL %s: %v\n", filepath.Base(res.Input), res.Err)
	}
}

func fatal(err error) {
	var invalid *chroma.InvalidParameterError
	if errors.As(err, &invalid) {
		fmt.Fprintln(os.Stderr, "invalid parameter:", err)
		os.Exit(2)
	}
	fmt.Fprintln(os.Stderr, strings.TrimSpace(err.Error()))
	os.Exit(1)
}
