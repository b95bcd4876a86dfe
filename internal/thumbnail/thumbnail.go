// Package thumbnail rasterizes the first page of a compiled resume to PNG
// through headless Chrome.
package thumbnail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds one rasterization, browser start included.
	DefaultTimeout = 15 * time.Second
	// DefaultWidth and DefaultHeight are an A4 page at 72 dpi.
	DefaultWidth  = 595
	DefaultHeight = 842
)

// ErrEmptySVG is returned when there is nothing to rasterize.
var ErrEmptySVG = errors.New("thumbnail: empty svg")

// browserNames are the executables chromedp's default allocator looks for.
var browserNames = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
}

// Available reports whether a Chrome or Chromium binary is on PATH.
func Available() bool {
	for _, name := range browserNames {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// Rasterizer renders SVG markup to PNG. Each call starts a fresh browser.
type Rasterizer struct {
	timeout time.Duration
	width   int64
	height  int64
	logger  *zap.Logger
}

// New returns a Rasterizer. Zero values fall back to the package defaults.
func New(timeout time.Duration, width, height int64, logger *zap.Logger) *Rasterizer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rasterizer{timeout: timeout, width: width, height: height, logger: logger}
}

// RenderPNG screenshots svg at the configured viewport size.
func (r *Rasterizer) RenderPNG(ctx context.Context, svg string) ([]byte, error) {
	if svg == "" {
		return nil, ErrEmptySVG
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, r.timeout)
	defer cancel()

	start := time.Now()
	var png []byte
	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(r.width, r.height),
		chromedp.Navigate(DataURL(svg)),
		chromedp.WaitReady("svg", chromedp.ByQuery),
		chromedp.CaptureScreenshot(&png),
	)
	if err != nil {
		return nil, fmt.Errorf("thumbnail rendering failed: %w", err)
	}

	r.logger.Debug("rendered thumbnail",
		zap.Int("bytes", len(png)),
		zap.Duration("duration", time.Since(start)),
	)
	return png, nil
}

// DataURL encodes svg as a base64 data URL.
func DataURL(svg string) string {
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}
