package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vsporte/fhm-matches/internal/browser"
	"github.com/vsporte/fhm-matches/internal/failure"
	"github.com/vsporte/fhm-matches/internal/logger"
)

const loginURL = "http://portal.test/adm/index.php"

// fakePage scripts the behaviour of a login page
type fakePage struct {
	gotoErrs []error // consumed per Goto call
	gotos    int

	visible map[string]bool // keyed by Selector.String()
	filled  map[string]string
	clicked []browser.Selector

	// after a click the page shows afterHTML at afterURL
	afterHTML string
	afterURL  string
	html      string
	url       string
}

func newFakePage() *fakePage {
	return &fakePage{
		visible: map[string]bool{},
		filled:  map[string]string{},
		html:    `<div id="content_user_login"><input name="password"></div>`,
		url:     loginURL,
	}
}

func (p *fakePage) Goto(ctx context.Context, url string) error {
	p.gotos++
	if len(p.gotoErrs) > 0 {
		err := p.gotoErrs[0]
		p.gotoErrs = p.gotoErrs[1:]
		return err
	}
	return nil
}

func (p *fakePage) Fill(ctx context.Context, sel browser.Selector, value string) error {
	p.filled[sel.CSS] = value
	return nil
}

func (p *fakePage) Visible(ctx context.Context, sel browser.Selector) (bool, error) {
	return p.visible[sel.String()], nil
}

func (p *fakePage) Click(ctx context.Context, sel browser.Selector) error {
	p.clicked = append(p.clicked, sel)
	p.html, p.url = p.afterHTML, p.afterURL
	p.visible[PasswordField.String()] = false
	return nil
}

func (p *fakePage) WaitSettled(ctx context.Context, grace time.Duration) error { return ctx.Err() }

func (p *fakePage) WaitFor(ctx context.Context, sel browser.Selector, timeout time.Duration) error {
	return nil
}

func (p *fakePage) URL(ctx context.Context) (string, error)        { return p.url, nil }
func (p *fakePage) HTML(ctx context.Context) (string, error)       { return p.html, nil }
func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) { return nil, browser.ErrUnsupported }
func (p *fakePage) Close() error                                   { return nil }

func newAuthenticator() *Authenticator {
	a := New(loginURL, Credentials{Login: "ref", Password: "pw"})
	a.Grace = time.Millisecond
	a.Logger = logger.Nop()
	return a
}

func TestLogin_Success(t *testing.T) {
	page := newFakePage()
	page.visible[`input[type="submit"]`] = true
	page.afterHTML = `<html><body>schedule</body></html>`
	page.afterURL = "http://portal.test/adm/vsporte.php"

	if err := newAuthenticator().Login(context.Background(), page); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if page.filled[`input[name="login"]`] != "ref" || page.filled[`input[name="password"]`] != "pw" {
		t.Errorf("filled = %v, want login and password", page.filled)
	}
	if len(page.clicked) != 1 || page.clicked[0].CSS != `input[type="submit"]` {
		t.Errorf("clicked = %v, want the submit input", page.clicked)
	}
}

func TestLogin_StrategyOrder(t *testing.T) {
	tests := []struct {
		name    string
		visible []browser.Selector
		want    browser.Selector
	}{
		{
			name:    "labeled value when no submit input",
			visible: []browser.Selector{{CSS: `input[value="Войти"]`}},
			want:    browser.Selector{CSS: `input[value="Войти"]`},
		},
		{
			name:    "text match",
			visible: []browser.Selector{{CSS: "button", Text: "Войти"}},
			want:    browser.Selector{CSS: "button", Text: "Войти"},
		},
		{
			name:    "structural fallback",
			visible: []browser.Selector{{CSS: `form:has(input[name="password"]) button`}},
			want:    browser.Selector{CSS: `form:has(input[name="password"]) button`},
		},
		{
			name: "first strategy wins",
			visible: []browser.Selector{
				{CSS: `button[type="submit"]`},
				{CSS: `form:has(input[name="password"]) button`},
			},
			want: browser.Selector{CSS: `button[type="submit"]`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newFakePage()
			for _, sel := range tt.visible {
				page.visible[sel.String()] = true
			}
			page.afterHTML = "<html>ok</html>"
			page.afterURL = "http://portal.test/adm/vsporte.php"

			if err := newAuthenticator().Login(context.Background(), page); err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if len(page.clicked) != 1 || page.clicked[0] != tt.want {
				t.Errorf("clicked = %v, want %v", page.clicked, tt.want)
			}
		})
	}
}

func TestLogin_ControlNotFound(t *testing.T) {
	page := newFakePage()

	err := newAuthenticator().Login(context.Background(), page)
	if failure.KindOf(err) != failure.Authentication {
		t.Fatalf("Login() error = %v, want authentication failure", err)
	}
	if err.Error() != "authentication_failure: control not found" {
		t.Errorf("Login() error = %q", err.Error())
	}
	if len(page.clicked) != 0 {
		t.Error("nothing should be clicked")
	}
}

func TestLogin_MarkersPersist(t *testing.T) {
	tests := []struct {
		name      string
		afterHTML string
		afterURL  string
	}{
		{"login marker", `<div id="content_user_login"></div>`, "http://portal.test/adm/home.php"},
		{"back on login url", `<html>plain</html>`, loginURL + "?err=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newFakePage()
			page.visible[`button[type="submit"]`] = true
			page.afterHTML = tt.afterHTML
			page.afterURL = tt.afterURL

			err := newAuthenticator().Login(context.Background(), page)
			if failure.KindOf(err) != failure.Authentication {
				t.Fatalf("Login() error = %v, want authentication failure", err)
			}
			var fe *failure.Error
			if !errors.As(err, &fe) || fe.Msg != "credentials rejected or session not persisted" {
				t.Errorf("Login() error = %v", err)
			}
		})
	}
}

func TestLogin_NavigationRetry(t *testing.T) {
	timeout := fmt.Errorf("%w: slow", browser.ErrTimeout)

	t.Run("recovers within attempts", func(t *testing.T) {
		page := newFakePage()
		page.gotoErrs = []error{timeout, timeout}
		page.visible[`input[type="submit"]`] = true
		page.afterHTML = "<html>ok</html>"
		page.afterURL = "http://portal.test/adm/vsporte.php"

		if err := newAuthenticator().Login(context.Background(), page); err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if page.gotos != 3 {
			t.Errorf("gotos = %d, want 3", page.gotos)
		}
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		page := newFakePage()
		page.gotoErrs = []error{timeout, timeout, timeout, nil}

		err := newAuthenticator().Login(context.Background(), page)
		if failure.KindOf(err) != failure.Navigation {
			t.Fatalf("Login() error = %v, want navigation failure", err)
		}
		if !errors.Is(err, browser.ErrTimeout) {
			t.Error("expected the timeout to stay in the chain")
		}
		if page.gotos != 3 {
			t.Errorf("gotos = %d, want 3", page.gotos)
		}
	})
}

func TestLogin_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page := newFakePage()
	page.gotoErrs = []error{context.Canceled}

	err := newAuthenticator().Login(ctx, page)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Login() error = %v, want context.Canceled", err)
	}
	if failure.KindOf(err) != "" {
		t.Errorf("cancellation should not be classified, got %s", failure.KindOf(err))
	}
}

func TestSameURL(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{loginURL, loginURL, true},
		{loginURL + "?x=1", loginURL, true},
		{"HTTP://Portal.Test/adm/index.php", loginURL, true},
		{"http://portal.test/adm/vsporte.php", loginURL, false},
		{"http://other.test/adm/index.php", loginURL, false},
	}

	for _, tt := range tests {
		t.Run(tt.a, func(t *testing.T) {
			if got := sameURL(tt.a, tt.b); got != tt.want {
				t.Errorf("sameURL(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
