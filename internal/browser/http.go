package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// HTTPLauncher starts sessions that fetch pages with a cookie-aware HTTP client.
// Scripts are not executed; forms are submitted the way a browser would serialize them.
type HTTPLauncher struct {
	Options Options
	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
}

func (l *HTTPLauncher) Launch(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := l.Options.withDefaults()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	base := l.Transport
	if base == nil {
		base = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: opts.NavigationTimeout,
		}
	}

	return &httpPage{
		client: &http.Client{
			Jar: jar,
			Transport: &retryTransport{
				base:      base,
				userAgent: opts.UserAgent,
				retries:   opts.Retries,
			},
		},
		opts:   opts,
		filled: make(map[*html.Node]string),
	}, nil
}

type httpPage struct {
	client *http.Client
	opts   Options

	mu     sync.Mutex
	url    *url.URL
	body   string
	doc    *goquery.Document
	filled map[*html.Node]string
	closed bool
}

func (p *httpPage) Goto(ctx context.Context, rawURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	target, err := p.resolve(rawURL)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return p.do(ctx, req)
}

func (p *httpPage) Fill(ctx context.Context, sel Selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.find(sel)
	if err != nil {
		return err
	}
	p.filled[s.Get(0)] = value
	return nil
}

func (p *httpPage) Visible(ctx context.Context, sel Selector) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.find(sel)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !isHidden(s.Get(0)), nil
}

func (p *httpPage) Click(ctx context.Context, sel Selector) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.find(sel)
	if err != nil {
		return err
	}

	if goquery.NodeName(s) == "a" {
		href, ok := s.Attr("href")
		if !ok {
			return nil
		}
		target, err := p.resolve(href)
		if err != nil {
			return err
		}
		req, err := http.NewRequest(http.MethodGet, target.String(), nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		return p.do(ctx, req)
	}

	if !isSubmitControl(s) {
		// Without scripts a plain button has no effect.
		return nil
	}

	form := s.Closest("form")
	if form.Length() == 0 {
		return fmt.Errorf("submit control %s has no enclosing form", sel)
	}

	req, err := p.formRequest(form, s)
	if err != nil {
		return err
	}
	return p.do(ctx, req)
}

func (p *httpPage) WaitSettled(ctx context.Context, grace time.Duration) error {
	// Requests complete synchronously; there is nothing left to settle.
	return ctx.Err()
}

func (p *httpPage) WaitFor(ctx context.Context, sel Selector, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.find(sel); err != nil {
		if errors.Is(err, ErrNotFound) {
			// A static document will not change while we wait.
			return fmt.Errorf("%w: %s", ErrWaitTimeout, sel)
		}
		return err
	}
	return nil
}

func (p *httpPage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return "", ErrClosed
	}
	if p.url == nil {
		return "", nil
	}
	return p.url.String(), nil
}

func (p *httpPage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return "", ErrClosed
	}
	return p.body, nil
}

func (p *httpPage) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, ErrUnsupported
}

func (p *httpPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.client.CloseIdleConnections()
	return nil
}

// do sends req bounded by the navigation timeout and loads the response as the current page.
func (p *httpPage) do(ctx context.Context, req *http.Request) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.NavigationTimeout)
	defer cancel()

	resp, err := p.client.Do(req.WithContext(ctx))
	if err != nil {
		if isTimeoutErr(err) {
			return fmt.Errorf("%w: %s: %v", ErrTimeout, req.URL, err)
		}
		return fmt.Errorf("fetching %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("fetching %s: unexpected status code: %d", req.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeoutErr(err) {
			return fmt.Errorf("%w: %s: %v", ErrTimeout, req.URL, err)
		}
		return fmt.Errorf("reading %s: %w", req.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("parsing HTML: %w", err)
	}

	p.url = resp.Request.URL
	p.body = string(body)
	p.doc = doc
	p.filled = make(map[*html.Node]string)
	return nil
}

func (p *httpPage) resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", ref, err)
	}
	if p.url != nil {
		u = p.url.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid url %q: must be http or https", ref)
	}
	return u, nil
}

func (p *httpPage) find(sel Selector) (*goquery.Selection, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if p.doc == nil {
		return nil, fmt.Errorf("%w: no page loaded", ErrNotFound)
	}

	s := p.doc.Find(sel.CSS)
	if sel.Text != "" {
		s = s.FilterFunction(func(_ int, el *goquery.Selection) bool {
			if strings.Contains(el.Text(), sel.Text) {
				return true
			}
			v, _ := el.Attr("value")
			return strings.Contains(v, sel.Text)
		})
	}
	if s.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sel)
	}
	return s.First(), nil
}

// formRequest serializes form the way a browser does when submitter is activated.
func (p *httpPage) formRequest(form, submitter *goquery.Selection) (*http.Request, error) {
	values := url.Values{}

	form.Find("input, select, textarea").Each(func(_ int, field *goquery.Selection) {
		name, ok := field.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, disabled := field.Attr("disabled"); disabled {
			return
		}

		node := field.Get(0)
		if v, ok := p.filled[node]; ok {
			values.Add(name, v)
			return
		}

		switch goquery.NodeName(field) {
		case "textarea":
			values.Add(name, field.Text())
		case "select":
			opt := field.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = field.Find("option").First()
			}
			if opt.Length() == 0 {
				return
			}
			v, ok := opt.Attr("value")
			if !ok {
				v = strings.TrimSpace(opt.Text())
			}
			values.Add(name, v)
		default:
			typ := strings.ToLower(field.AttrOr("type", "text"))
			switch typ {
			case "submit", "button", "image", "reset", "file":
				return
			case "checkbox", "radio":
				if _, checked := field.Attr("checked"); !checked {
					return
				}
				values.Add(name, field.AttrOr("value", "on"))
			default:
				values.Add(name, field.AttrOr("value", ""))
			}
		}
	})

	if name, ok := submitter.Attr("name"); ok && name != "" {
		values.Add(name, submitter.AttrOr("value", ""))
	}

	action, err := p.resolve(form.AttrOr("action", ""))
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(strings.TrimSpace(form.AttrOr("method", http.MethodGet)))
	if method != http.MethodPost {
		action.RawQuery = values.Encode()
		return http.NewRequest(http.MethodGet, action.String(), nil)
	}

	req, err := http.NewRequest(http.MethodPost, action.String(), strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func isSubmitControl(s *goquery.Selection) bool {
	typ := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
	switch goquery.NodeName(s) {
	case "button":
		return typ == "" || typ == "submit"
	case "input":
		return typ == "submit" || typ == "image"
	default:
		return false
	}
}

// isHidden approximates the browser's visibility rules from static markup.
func isHidden(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		for _, a := range cur.Attr {
			switch strings.ToLower(a.Key) {
			case "hidden":
				return true
			case "type":
				if cur.Data == "input" && strings.EqualFold(strings.TrimSpace(a.Val), "hidden") {
					return true
				}
			case "style":
				style := strings.ToLower(strings.ReplaceAll(a.Val, " ", ""))
				if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
					return true
				}
			}
		}
	}
	return false
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
