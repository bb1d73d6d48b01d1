package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"

	appLog "calgrid/internal/log"
)

// Default viewport for a week grid screenshot.
const (
	DefaultWidth   = 1280
	DefaultHeight  = 1100
	DefaultTimeout = 30 * time.Second

	readySelector = `[data-ready="true"]`
	settleDelay   = 300 * time.Millisecond
)

var (
	ErrMissingURL    = errors.New("capture: URL is required")
	ErrMissingOutput = errors.New("capture: output path is required")
)

// Options defines parameters for a Chromium-based screenshot of /calendar.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/calendar?view=day".
	URL string

	// Width and Height are the viewport dimensions in pixels. Zero means
	// DefaultWidth / DefaultHeight.
	Width  int
	Height int

	// Timeout bounds the whole capture. Zero means DefaultTimeout.
	Timeout time.Duration

	// Username and Password are sent as HTTP Basic Auth when both are set.
	Username string
	Password string

	// ExecPath overrides the Chromium binary chromedp looks up.
	ExecPath string
}

func (o Options) normalize() (Options, error) {
	if o.URL == "" {
		return o, ErrMissingURL
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o, nil
}

// CalendarURL builds the /calendar address served on listen for a view and,
// in the day view, a day index.
func CalendarURL(listen, view string, day int) string {
	u := url.URL{Scheme: "http", Host: listen, Path: "/calendar"}
	q := url.Values{}
	if view != "" {
		q.Set("view", view)
	}
	if view == "day" && day > 0 {
		q.Set("day", strconv.Itoa(day))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// CalendarPNG starts a headless Chromium via chromedp, navigates to opts.URL,
// waits until the page root reports data-ready="true" and returns a full-page
// PNG screenshot.
func CalendarPNG(parentCtx context.Context, opts Options) ([]byte, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	target, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("capture: invalid URL: %w", err)
	}
	if opts.Username != "" && opts.Password != "" {
		target.User = url.UserPassword(opts.Username, opts.Password)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(opts.Width, opts.Height),
		chromedp.NoSandbox,
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	appLog.Debug("capturing calendar", "url", opts.URL, "width", opts.Width, "height", opts.Height)

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(target.String()),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		// let the last paint land before the screenshot
		chromedp.Sleep(settleDelay),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	return png, nil
}

// CalendarToFile captures opts.URL and writes the PNG to path.
func CalendarToFile(ctx context.Context, opts Options, path string) error {
	if path == "" {
		return ErrMissingOutput
	}
	png, err := CalendarPNG(ctx, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("calendar captured", "path", path, "bytes", len(png))
	return nil
}
