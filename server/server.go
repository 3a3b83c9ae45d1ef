package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"

	"github.com/chaos-io/chromakey/chroma"
	"github.com/chaos-io/chromakey/util"
)

const (
	maxUploadSize   = 32 << 20
	shutdownTimeout = 10 * time.Second
	requestIDHeader = "X-Request-Id"
)

type Server struct {
	defaults chroma.Options
	logger   *slog.Logger
	engine   *gin.Engine
}

// New defaults 作为每个请求的初始参数，请求里的表单字段只覆盖本次请求
func New(defaults chroma.Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{defaults: defaults, logger: logger}

	engine := gin.New()
	engine.MaxMultipartMemory = maxUploadSize
	engine.Use(gin.Recovery(), s.requestLog)

	engine.GET("/healthz", s.health)
	v1 := engine.Group("/v1")
	v1.POST("/remove", s.remove)
	v1.POST("/detect", s.detect)

	s.engine = engine
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 监听 addr，ctx 结束后优雅退出
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLog(c *gin.Context) {
	start := time.Now()
	id := ksuid.New().String()
	c.Header(requestIDHeader, id)

	c.Next()

	s.logger.Info("request",
		"id", id,
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"elapsed", time.Since(start),
	)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) remove(c *gin.Context) {
	img, err := readUpload(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	opts, err := optionsFromForm(c, s.defaults)
	if err != nil {
		s.fail(c, err)
		return
	}

	out, err := chroma.Remove(img, opts)
	if err != nil {
		s.fail(c, err)
		return
	}

	var result image.Image = out
	if wantMask, _ := strconv.ParseBool(c.PostForm("mask")); wantMask {
		result = chroma.AlphaMask(out)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, result); err != nil {
		s.fail(c, &chroma.EncodeError{Path: "response", Err: err})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) detect(c *gin.Context) {
	img, err := readUpload(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"background": chroma.DetectBackground(img).Hex()})
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func readUpload(c *gin.Context) (image.Image, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, &chroma.InvalidParameterError{Name: "image", Value: "", Reason: "multipart field \"image\" is required"}
	}

	f, err := fh.Open()
	if err != nil {
		return nil, &chroma.NotFoundError{Path: fh.Filename, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()

	return util.DecodeImage(f, fh.Filename)
}

// optionsFromForm 以 defaults 为基础，用表单字段覆盖
func optionsFromForm(c *gin.Context, defaults chroma.Options) (chroma.Options, error) {
	opts := defaults

	if v, ok := c.GetPostForm("background"); ok && v != "" {
		bg, err := chroma.ParseHex(v)
		if err != nil {
			return opts, err
		}
		opts.Background = bg
	}
	if v, ok := c.GetPostForm("threshold"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, &chroma.InvalidParameterError{Name: "threshold", Value: v, Reason: "not an integer"}
		}
		opts.Threshold = n
	}
	if v, ok := c.GetPostForm("feather"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, &chroma.InvalidParameterError{Name: "feather", Value: v, Reason: "not an integer"}
		}
		opts.Feather = n
	}
	if v, ok := c.GetPostForm("auto"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, &chroma.InvalidParameterError{Name: "auto", Value: v, Reason: "not a boolean"}
		}
		opts.AutoDetect = b
	}

	return opts, opts.Validate()
}

func statusCode(err error) int {
	var (
		invalid  *chroma.InvalidParameterError
		decode   *chroma.DecodeError
		notFound *chroma.NotFoundError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &decode):
		return http.StatusUnprocessableEntity
	case errors.As(err, &notFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
