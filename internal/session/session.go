// Package session establishes an authenticated session on the job board.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jakopako/goapply/internal/browser"
	"github.com/jakopako/goapply/internal/config"
	"github.com/jakopako/goapply/internal/log"
)

// ErrSecondFactor means the board asked for a verification step that cannot
// be completed unattended.
var ErrSecondFactor = errors.New("second factor challenge cannot be completed unattended")

type Credentials struct {
	Username string
	Password string
}

// Session describes the login a run works under. The page that was
// authenticated stays owned by the run that created it.
type Session struct {
	Username      string
	EstablishedAt time.Time
}

// A Provider authenticates a user. Implementations must not retry: a failed
// authentication ends the run.
type Provider interface {
	Authenticate(ctx context.Context, creds Credentials) (*Session, error)
}

// AuthenticationError is returned when a session could not be established.
type AuthenticationError struct {
	Reason       string
	SecondFactor bool
	Err          error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// FormLogin signs in through the board's login form.
type FormLogin struct {
	page    browser.Page
	baseURL string
	sel     config.Selectors
	wait    time.Duration
}

func NewFormLogin(page browser.Page, baseURL string, sel config.Selectors, wait time.Duration) *FormLogin {
	return &FormLogin{
		page:    page,
		baseURL: strings.TrimRight(baseURL, "/"),
		sel:     sel,
		wait:    wait,
	}
}

// LoginURL is the url of the login form.
func (f *FormLogin) LoginURL() string {
	return f.baseURL + "/login"
}

func (f *FormLogin) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("user", creds.Username))
	if creds.Username == "" || creds.Password == "" {
		return nil, &AuthenticationError{Reason: "missing username or password"}
	}
	logger.Info("logging in")

	if err := f.page.Navigate(ctx, f.LoginURL()); err != nil {
		return nil, &AuthenticationError{Reason: "login page unreachable", Err: err}
	}
	if err := f.fill(ctx, f.sel.LoginUsername, creds.Username); err != nil {
		return nil, &AuthenticationError{Reason: "login form not found", Err: err}
	}
	if err := f.fill(ctx, f.sel.LoginPassword, creds.Password); err != nil {
		return nil, &AuthenticationError{Reason: "login form not found", Err: err}
	}
	submit, err := f.page.WaitFor(ctx, f.sel.LoginSubmit, browser.ConditionClickable, f.wait)
	if err != nil {
		return nil, &AuthenticationError{Reason: "login form not found", Err: err}
	}
	if err := f.page.Click(ctx, submit); err != nil {
		return nil, &AuthenticationError{Reason: "could not submit login form", Err: err}
	}

	if _, err := f.page.WaitFor(ctx, f.sel.LoggedIn, browser.ConditionPresent, f.wait); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, f.classify(ctx, err)
	}
	logger.Info("successfully logged in")
	return &Session{
		Username:      creds.Username,
		EstablishedAt: time.Now(),
	}, nil
}

func (f *FormLogin) fill(ctx context.Context, selector, text string) error {
	el, err := f.page.WaitFor(ctx, selector, browser.ConditionVisible, f.wait)
	if err != nil {
		return err
	}
	return f.page.TypeText(ctx, el, text)
}

// classify tells a verification challenge apart from rejected credentials
// once the signed in marker did not show up.
func (f *FormLogin) classify(ctx context.Context, waitErr error) error {
	if f.sel.LoginChallenge != "" {
		if _, err := f.page.Locate(ctx, f.sel.LoginChallenge); err == nil {
			return &AuthenticationError{
				Reason:       "verification challenge shown",
				SecondFactor: true,
				Err:          ErrSecondFactor,
			}
		}
	}
	if f.sel.LoginError != "" {
		if el, err := f.page.Locate(ctx, f.sel.LoginError); err == nil {
			if text, err := f.page.ReadText(ctx, el); err == nil && text != "" {
				return &AuthenticationError{Reason: fmt.Sprintf("credentials rejected: %s", text)}
			}
		}
	}
	return &AuthenticationError{Reason: "login failed or two-factor authentication required", Err: waitErr}
}
