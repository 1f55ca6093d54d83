package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vsporte/fhm-matches/internal/browser"
	"github.com/vsporte/fhm-matches/internal/failure"
	"github.com/vsporte/fhm-matches/internal/logger"
)

const (
	DefaultAttempts = 3
	DefaultGrace    = 2 * time.Second

	// LoginMarker is present on every rendering of the login page
	LoginMarker = "content_user_login"
)

// Field names of the login form
var (
	LoginField    = browser.CSS(`input[name="login"]`)
	PasswordField = browser.CSS(`input[name="password"]`)
)

// DefaultSubmitStrategies are tried in order; the first visible match is clicked.
var DefaultSubmitStrategies = []browser.Selector{
	{CSS: `input[type="submit"]`},
	{CSS: `input[value="Войти"]`},
	{CSS: `button[type="submit"]`},
	{CSS: `button`, Text: "Войти"},
	{CSS: `form:has(input[name="password"]) button`},
}

// Credentials are the portal login and password
type Credentials struct {
	Login    string
	Password string
}

// Authenticator logs a Page into the portal
type Authenticator struct {
	LoginURL    string
	Credentials Credentials
	// Attempts bounds navigation tries to the login page
	Attempts int
	// Grace is how long to wait for the post-submit navigation to settle
	Grace      time.Duration
	Strategies []browser.Selector
	Logger     *logger.Logger
}

// New returns an Authenticator with default strategies and timings
func New(loginURL string, creds Credentials) *Authenticator {
	return &Authenticator{
		LoginURL:    loginURL,
		Credentials: creds,
		Attempts:    DefaultAttempts,
		Grace:       DefaultGrace,
		Strategies:  DefaultSubmitStrategies,
		Logger:      logger.Default(),
	}
}

// Login authenticates page. Failures are *failure.Error of kind Navigation or Authentication.
func (a *Authenticator) Login(ctx context.Context, page browser.Page) error {
	log := a.Logger
	if log == nil {
		log = logger.Default()
	}

	err := browser.GotoWithRetry(ctx, page, a.LoginURL, a.Attempts, func(attempt int, err error) {
		log.Warn("login page navigation failed, retrying", logger.Fields{
			"url":     a.LoginURL,
			"attempt": attempt,
			"error":   err.Error(),
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return failure.Wrap(failure.Navigation, err, "loading login page")
	}

	if err := page.Fill(ctx, LoginField, a.Credentials.Login); err != nil {
		return a.fail(ctx, err, "login field")
	}
	if err := page.Fill(ctx, PasswordField, a.Credentials.Password); err != nil {
		return a.fail(ctx, err, "password field")
	}

	submit, found, err := a.findSubmit(ctx, page)
	if err != nil {
		return a.fail(ctx, err, "locating submit control")
	}
	if !found {
		return failure.New(failure.Authentication, "control not found")
	}

	log.Debug("submitting login form", logger.Fields{"control": submit.String()})
	if err := page.Click(ctx, submit); err != nil {
		return a.fail(ctx, err, "submitting login form")
	}
	if err := page.WaitSettled(ctx, a.grace()); err != nil {
		return a.fail(ctx, err, "waiting for login")
	}

	marker, err := a.loginMarker(ctx, page)
	if err != nil {
		return a.fail(ctx, err, "verifying login")
	}
	if marker != "" {
		log.Warn("login markers still present", logger.Fields{"marker": marker})
		return failure.New(failure.Authentication, "credentials rejected or session not persisted")
	}

	log.Info("authenticated", logger.Fields{"url": a.LoginURL})
	return nil
}

// findSubmit returns the first strategy whose element is present and visible.
func (a *Authenticator) findSubmit(ctx context.Context, page browser.Page) (browser.Selector, bool, error) {
	strategies := a.Strategies
	if len(strategies) == 0 {
		strategies = DefaultSubmitStrategies
	}

	for _, sel := range strategies {
		ok, err := page.Visible(ctx, sel)
		if err != nil {
			return browser.Selector{}, false, err
		}
		if ok {
			return sel, true, nil
		}
	}
	return browser.Selector{}, false, nil
}

// loginMarker names the first login-page marker found on the current page, or "".
func (a *Authenticator) loginMarker(ctx context.Context, page browser.Page) (string, error) {
	body, err := page.HTML(ctx)
	if err != nil {
		return "", err
	}
	if strings.Contains(body, LoginMarker) {
		return LoginMarker, nil
	}

	ok, err := page.Visible(ctx, PasswordField)
	if err != nil {
		return "", err
	}
	if ok {
		return PasswordField.String(), nil
	}

	current, err := page.URL(ctx)
	if err != nil {
		return "", err
	}
	if sameURL(current, a.LoginURL) {
		return "login url", nil
	}
	return "", nil
}

func (a *Authenticator) grace() time.Duration {
	if a.Grace <= 0 {
		return DefaultGrace
	}
	return a.Grace
}

// fail classifies errors from page operations after the login page loaded.
func (a *Authenticator) fail(ctx context.Context, err error, msg string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if browser.IsTimeout(err) {
		return failure.Wrap(failure.Navigation, err, msg)
	}
	if errors.Is(err, browser.ErrNotFound) {
		return failure.Wrap(failure.Authentication, err, fmt.Sprintf("%s not found", msg))
	}
	return failure.Wrap(failure.Authentication, err, msg)
}

// sameURL compares scheme, host and path, ignoring query and fragment.
func sameURL(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(ua.Scheme, ub.Scheme) &&
		strings.EqualFold(ua.Host, ub.Host) &&
		strings.TrimSuffix(ua.Path, "/") == strings.TrimSuffix(ub.Path, "/")
}
