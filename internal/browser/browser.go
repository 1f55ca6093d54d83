package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	DefaultNavigationTimeout = 30 * time.Second
)

var (
	// ErrTimeout is returned when a navigation does not complete in time
	ErrTimeout = errors.New("browser: navigation timeout")
	// ErrWaitTimeout is returned when WaitFor gives up
	ErrWaitTimeout = errors.New("browser: wait condition timeout")
	// ErrNotFound is returned by element operations when nothing matches
	ErrNotFound = errors.New("browser: element not found")
	// ErrUnsupported is returned by drivers that cannot perform an operation
	ErrUnsupported = errors.New("browser: operation not supported")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("browser: page closed")
)

// Selector identifies an element by CSS selector and, optionally, by the text it contains.
type Selector struct {
	CSS  string
	Text string
}

// CSS returns a Selector matching a plain CSS selector
func CSS(css string) Selector {
	return Selector{CSS: css}
}

func (s Selector) String() string {
	if s.Text == "" {
		return s.CSS
	}
	return fmt.Sprintf("%s:contains(%q)", s.CSS, s.Text)
}

// Page is one browser tab scoped to a single pipeline run
type Page interface {
	// Goto navigates to url and waits for the document to be ready.
	Goto(ctx context.Context, url string) error
	// Fill sets the value of the first element matching sel.
	Fill(ctx context.Context, sel Selector, value string) error
	// Visible reports whether the first element matching sel exists and is visible.
	Visible(ctx context.Context, sel Selector) (bool, error)
	// Click activates the first element matching sel.
	Click(ctx context.Context, sel Selector) error
	// WaitSettled waits for a navigation triggered by a click to settle, at most grace.
	WaitSettled(ctx context.Context, grace time.Duration) error
	// WaitFor waits until an element matching sel is present.
	WaitFor(ctx context.Context, sel Selector, timeout time.Duration) error
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close releases the session. It is safe to call more than once.
	Close() error
}

// Launcher starts a browsing session
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}

// Options configures both drivers
type Options struct {
	NavigationTimeout time.Duration
	UserAgent         string
	Headless          bool
	// Retries bounds transport-level retries of idempotent requests (HTTP driver only).
	Retries int
	// ExecPath overrides the Chrome binary (Chrome driver only).
	ExecPath string
}

func (o Options) withDefaults() Options {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = DefaultNavigationTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	return o
}

// NewLauncher returns the launcher for a driver name ("chrome" or "http")
func NewLauncher(driver string, opts Options) (Launcher, error) {
	switch driver {
	case "chrome", "":
		return &ChromeLauncher{Options: opts}, nil
	case "http":
		return &HTTPLauncher{Options: opts}, nil
	default:
		return nil, fmt.Errorf("unknown browser driver: %s (must be 'chrome' or 'http')", driver)
	}
}

// IsTimeout reports whether err is a navigation or wait timeout
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrWaitTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// GotoWithRetry navigates with up to attempts tries and returns the last error.
// A cancelled ctx stops immediately.
func GotoWithRetry(ctx context.Context, page Page, url string, attempts int, onRetry func(attempt int, err error)) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = page.Goto(ctx, url); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < attempts && onRetry != nil {
			onRetry(attempt, err)
		}
	}
	return err
}
