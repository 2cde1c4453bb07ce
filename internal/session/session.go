// Package session holds the cookie-carrying HTTP context used for every
// request to the target service during one provisioning run.
package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// maxBodyBytes bounds how much of a page is read into memory.
const maxBodyBytes = 4 << 20

// Page is a fetched HTTP response with its body fully read.
type Page struct {
	// StatusCode is the status of the final response after redirects.
	StatusCode int

	// URL is the final URL after redirects.
	URL *url.URL

	// Body is the response body as text.
	Body string
}

// OK reports whether the status code is in the 2xx range.
func (p *Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Session is a single-owner HTTP context. Cookies set by any response are
// sent on every later request, so the same Session must be used from
// registration through the account page.
type Session struct {
	httpClient *http.Client
	headers    http.Header
}

// Option configures a Session.
type Option func(*Session)

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(s *Session) {
		s.headers.Set(key, value)
	}
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Session) {
		s.httpClient.Transport = rt
	}
}

// New creates a Session with an empty cookie jar. timeout bounds each
// individual request, including redirects and reading the body.
func New(timeout time.Duration, opts ...Option) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{
		PublicSuffixList: publicsuffix.List,
	})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	s := &Session{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		headers: make(http.Header),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Get fetches rawURL. A non-2xx status is not an error; callers decide
// from Page.StatusCode.
func (s *Session) Get(ctx context.Context, rawURL string) (*Page, error) {
	return s.do(ctx, http.MethodGet, rawURL, nil, nil)
}

// PostForm submits form as application/x-www-form-urlencoded. extra
// headers (e.g. Referer) apply to this request only.
func (s *Session) PostForm(
	ctx context.Context,
	rawURL string,
	form url.Values,
	extra http.Header,
) (*Page, error) {
	return s.do(ctx, http.MethodPost, rawURL, form, extra)
}

// Cookies returns the cookies the jar would send to rawURL.
func (s *Session) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.httpClient.Jar.Cookies(u)
}

func (s *Session) do(
	ctx context.Context,
	method string,
	rawURL string,
	form url.Values,
	extra http.Header,
) (*Page, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for key, values := range s.headers {
		req.Header[key] = append([]string(nil), values...)
	}
	for key, values := range extra {
		req.Header[key] = append([]string(nil), values...)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request %s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Page{
		StatusCode: resp.StatusCode,
		URL:        resp.Request.URL,
		Body:       string(data),
	}, nil
}
