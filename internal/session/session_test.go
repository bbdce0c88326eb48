package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jakopako/goapply/internal/browser"
	"github.com/jakopako/goapply/internal/config"
)

var testSelectors = config.Selectors{
	LoginUsername:  "#username",
	LoginPassword:  "#password",
	LoginSubmit:    "button[type=submit]",
	LoggedIn:       ".global-nav__me",
	LoginChallenge: "#input__email_verification_pin, form#two-step-challenge",
	LoginError:     "#error-for-password",
}

const loginHTML = `<html><body><form>
<input id="username" type="text">
<input id="password" type="password">
<button type="submit">Sign in</button>
</form></body></html>`

var testPages = map[string]string{
	"login":     loginHTML,
	"feed":      `<html><body><nav><div class="global-nav__me">Me</div></nav></body></html>`,
	"challenge": `<html><body><form id="two-step-challenge"><input id="input__email_verification_pin"></form></body></html>`,
	"rejected":  `<html><body><form><div id="error-for-password">Wrong email or password. Try again.</div></form></body></html>`,
	"blank":     `<html><body></body></html>`,
}

func newLogin(t *testing.T, after string) (*browser.MockPage, *FormLogin) {
	t.Helper()
	m, err := browser.NewMockPage(testPages, "blank")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.OnNavigate("https://jobs.example.com/login", "login").OnClick("button[type=submit]", after)
	return m, NewFormLogin(m, "https://jobs.example.com/", testSelectors, 0)
}

func TestAuthenticate(t *testing.T) {
	m, login := newLogin(t, "feed")

	s, err := login.Authenticate(context.Background(), Credentials{Username: "me@example.com", Password: "s3cret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Username != "me@example.com" || s.EstablishedAt.IsZero() {
		t.Errorf("unexpected session %+v", s)
	}
	if len(m.Navigations) != 1 || m.Navigations[0] != "https://jobs.example.com/login" {
		t.Errorf("unexpected navigations %v", m.Navigations)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	tests := []struct {
		name         string
		after        string
		creds        Credentials
		secondFactor bool
		reason       string
	}{
		{"second factor", "challenge", Credentials{"me@example.com", "s3cret"}, true, "verification challenge"},
		{"rejected", "rejected", Credentials{"me@example.com", "wrong"}, false, "Wrong email or password"},
		{"nothing happens", "blank", Credentials{"me@example.com", "s3cret"}, false, "login failed"},
		{"missing password", "feed", Credentials{Username: "me@example.com"}, false, "missing username or password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, login := newLogin(t, tt.after)

			s, err := login.Authenticate(context.Background(), tt.creds)
			if s != nil {
				t.Errorf("expected no session, got %+v", s)
			}
			var authErr *AuthenticationError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected an AuthenticationError, got %v", err)
			}
			if authErr.SecondFactor != tt.secondFactor {
				t.Errorf("expected second factor %v, got %v", tt.secondFactor, authErr.SecondFactor)
			}
			if errors.Is(err, ErrSecondFactor) != tt.secondFactor {
				t.Errorf("expected errors.Is(err, ErrSecondFactor) to be %v", tt.secondFactor)
			}
			if !strings.Contains(authErr.Reason, tt.reason) {
				t.Errorf("expected reason containing %q, got %q", tt.reason, authErr.Reason)
			}
		})
	}
}

func TestAuthenticateLoginPageUnreachable(t *testing.T) {
	m, err := browser.NewMockPage(testPages, "blank")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	login := NewFormLogin(m, "https://jobs.example.com", testSelectors, 0)

	_, err = login.Authenticate(context.Background(), Credentials{"me@example.com", "s3cret"})
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) || authErr.Reason != "login page unreachable" {
		t.Errorf("expected login page unreachable, got %v", err)
	}
}
