package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeLauncher starts a headless Chrome per session through the DevTools protocol.
type ChromeLauncher struct {
	Options Options
}

func (l *ChromeLauncher) Launch(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := l.Options.withDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	// The browser outlives individual operation contexts and is torn down by Close.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	p := &chromePage{
		tab:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		opts:        opts,
	}

	if err := p.start(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}
	return p, nil
}

type chromePage struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	opts        Options
	closeOnce   sync.Once
}

// start allocates the browser. The first Run binds the browser process to
// its context, so it runs on the tab itself and is bounded from outside.
func (p *chromePage) start(ctx context.Context) error {
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(p.tab) }()

	timer := time.NewTimer(p.opts.NavigationTimeout)
	defer timer.Stop()

	select {
	case err := <-started:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTimeout
	}
}

// run executes actions on the tab, bounded by both ctx and timeout.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(p.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func (p *chromePage) Goto(ctx context.Context, url string) error {
	return p.run(ctx, p.opts.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// elementScript locates an element by CSS and optional text, then applies an action to it.
const elementScript = `(function(css, text, action, value) {
	var el = null;
	var nodes = document.querySelectorAll(css);
	for (var i = 0; i < nodes.length; i++) {
		var n = nodes[i];
		if (!text || (n.innerText || n.textContent || '').indexOf(text) >= 0 || (n.value || '').indexOf(text) >= 0) {
			el = n;
			break;
		}
	}
	if (!el) return 'absent';
	if (action === 'visible') {
		var style = window.getComputedStyle(el);
		var rect = el.getBoundingClientRect();
		if (style.display === 'none' || style.visibility === 'hidden' || rect.width === 0 || rect.height === 0) return 'hidden';
		return 'visible';
	}
	if (action === 'fill') {
		el.focus();
		el.value = value;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return 'ok';
	}
	if (action === 'click') {
		el.click();
		return 'ok';
	}
	return 'ok';
})(%s, %s, %s, %s)`

func (p *chromePage) element(ctx context.Context, timeout time.Duration, sel Selector, action, value string) (string, error) {
	args := make([]any, 0, 4)
	for _, s := range []string{sel.CSS, sel.Text, action, value} {
		b, err := json.Marshal(s)
		if err != nil {
			return "", err
		}
		args = append(args, string(b))
	}

	var res string
	if err := p.run(ctx, timeout, chromedp.Evaluate(fmt.Sprintf(elementScript, args...), &res)); err != nil {
		return "", err
	}
	return res, nil
}

func (p *chromePage) Fill(ctx context.Context, sel Selector, value string) error {
	res, err := p.element(ctx, p.opts.NavigationTimeout, sel, "fill", value)
	if err != nil {
		return err
	}
	if res == "absent" {
		return fmt.Errorf("%w: %s", ErrNotFound, sel)
	}
	return nil
}

func (p *chromePage) Visible(ctx context.Context, sel Selector) (bool, error) {
	res, err := p.element(ctx, p.opts.NavigationTimeout, sel, "visible", "")
	if err != nil {
		return false, err
	}
	return res == "visible", nil
}

func (p *chromePage) Click(ctx context.Context, sel Selector) error {
	res, err := p.element(ctx, p.opts.NavigationTimeout, sel, "click", "")
	if err != nil {
		return err
	}
	if res == "absent" {
		return fmt.Errorf("%w: %s", ErrNotFound, sel)
	}
	return nil
}

func (p *chromePage) WaitSettled(ctx context.Context, grace time.Duration) error {
	// Give a click-triggered navigation time to start, then wait for the new document.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(grace):
	}

	err := p.run(ctx, p.opts.NavigationTimeout, chromedp.WaitReady("body", chromedp.ByQuery))
	if errors.Is(err, ErrTimeout) {
		// A page that never settles is judged by its markers, not rejected here.
		return nil
	}
	return err
}

func (p *chromePage) WaitFor(ctx context.Context, sel Selector, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w: %s", ErrWaitTimeout, sel)
		}

		res, err := p.element(ctx, min(remaining, p.opts.NavigationTimeout), sel, "present", "")
		if err != nil && !errors.Is(err, ErrTimeout) {
			return err
		}
		if err == nil && res != "absent" {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s", ErrWaitTimeout, sel)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, p.opts.NavigationTimeout, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var out string
	if err := p.run(ctx, p.opts.NavigationTimeout, chromedp.OuterHTML("html", &out, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return out, nil
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, p.opts.NavigationTimeout, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		p.cancelTab()
		p.cancelAlloc()
	})
	return nil
}
