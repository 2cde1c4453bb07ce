// Package shodan drives the account surfaces of the target service:
// registration, activation, login and the account page. All requests go
// through one session.Session so cookies set during registration carry
// through to the account page.
package shodan

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nhle/shodjinn/internal/extract"
	"github.com/nhle/shodjinn/internal/session"
)

// Endpoints holds the URLs of the service's account pages.
type Endpoints struct {
	RegisterURL string
	LoginURL    string
	AccountURL  string
}

// Form holds the constants submitted with the registration and login
// forms.
type Form struct {
	// TokenField is the name of the anti-forgery input.
	TokenField string

	RegisterPassword string
	LoginPassword    string

	// UsernamePrefix is prepended to the address on the login form.
	UsernamePrefix string
}

// Client wraps a session with the service's form conventions.
type Client struct {
	sess      *session.Session
	endpoints Endpoints
	form      Form
}

// NewClient creates a client that sends every request through sess.
func NewClient(sess *session.Session, endpoints Endpoints, form Form) *Client {
	return &Client{
		sess:      sess,
		endpoints: endpoints,
		form:      form,
	}
}

// RegistrationToken fetches the registration page and extracts the
// anti-forgery token. found is false when the page has no usable token.
func (c *Client) RegistrationToken(ctx context.Context) (token string, found bool, err error) {
	page, err := c.sess.Get(ctx, c.endpoints.RegisterURL)
	if err != nil {
		return "", false, fmt.Errorf("fetching registration page: %w", err)
	}
	if !page.OK() {
		return "", false, &StatusError{Page: "registration page", StatusCode: page.StatusCode}
	}

	token, found = extract.Token(page.Body, c.form.TokenField)
	return token, found, nil
}

// Register submits the registration form for address and returns the
// final status code.
func (c *Client) Register(ctx context.Context, address, token string) (int, error) {
	form := url.Values{}
	form.Set("username", address)
	form.Set("password", c.form.RegisterPassword)
	form.Set("password_confirm", c.form.RegisterPassword)
	form.Set("email", address)
	form.Set(c.form.TokenField, token)

	page, err := c.sess.PostForm(ctx, c.endpoints.RegisterURL, form, referer(c.endpoints.RegisterURL))
	if err != nil {
		return 0, fmt.Errorf("submitting registration: %w", err)
	}
	return page.StatusCode, nil
}

// Activate visits the activation link once. Relative links are resolved
// against the registration URL.
func (c *Client) Activate(ctx context.Context, link string) (int, error) {
	target, err := c.resolve(link)
	if err != nil {
		return 0, err
	}

	page, err := c.sess.Get(ctx, target)
	if err != nil {
		return 0, fmt.Errorf("visiting activation link: %w", err)
	}
	return page.StatusCode, nil
}

// LoginToken fetches the login page and extracts its anti-forgery token,
// if any. Callers may proceed without one.
func (c *Client) LoginToken(ctx context.Context) (string, bool, error) {
	page, err := c.sess.Get(ctx, c.endpoints.LoginURL)
	if err != nil {
		return "", false, fmt.Errorf("fetching login page: %w", err)
	}
	if !page.OK() {
		return "", false, &StatusError{Page: "login page", StatusCode: page.StatusCode}
	}

	token, found := extract.Token(page.Body, c.form.TokenField)
	return token, found, nil
}

// Login submits the login form for address. An empty token is omitted
// from the form.
func (c *Client) Login(ctx context.Context, address, token string) (int, error) {
	form := url.Values{}
	form.Set("username", c.form.UsernamePrefix+address)
	form.Set("password", c.form.LoginPassword)
	form.Set("grant_type", "password")
	form.Set("continue", c.endpoints.LoginURL)
	if token != "" {
		form.Set(c.form.TokenField, token)
	}

	page, err := c.sess.PostForm(ctx, c.endpoints.LoginURL, form, referer(c.endpoints.LoginURL))
	if err != nil {
		return 0, fmt.Errorf("submitting login: %w", err)
	}
	return page.StatusCode, nil
}

// AccountPage fetches the authenticated account page.
func (c *Client) AccountPage(ctx context.Context) (string, error) {
	page, err := c.sess.Get(ctx, c.endpoints.AccountURL)
	if err != nil {
		return "", fmt.Errorf("fetching account page: %w", err)
	}
	if !page.OK() {
		return "", &StatusError{Page: "account page", StatusCode: page.StatusCode}
	}
	return page.Body, nil
}

func (c *Client) resolve(link string) (string, error) {
	ref, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parsing activation link %q: %w", link, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}

	base, err := url.Parse(c.endpoints.RegisterURL)
	if err != nil {
		return "", fmt.Errorf("parsing registration url: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

func referer(u string) http.Header {
	h := make(http.Header)
	h.Set("Referer", u)
	return h
}

// StatusError reports a page that answered with a non-2xx status.
type StatusError struct {
	Page       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Page, e.StatusCode)
}
