package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// SessionCookie is the cookie ShodanFake sets on the registration page.
const SessionCookie = "fake_session"

// ShodanFake is an in-process stand-in for the target service account
// pages. Fields may be changed before the first request.
type ShodanFake struct {
	Server *httptest.Server

	RegisterPage   string
	RegisterStatus int
	ActivateStatus int
	LoginPage      string
	LoginStatus    int
	AccountPage    string

	mu         sync.Mutex
	hits       map[string]int
	forms      map[string]url.Values
	headers    map[string]http.Header
	withCookie map[string]int
}

// NewShodanFake starts a fake target service whose pages all succeed and
// whose account page shows apiKey.
func NewShodanFake(t *testing.T, apiKey string) *ShodanFake {
	t.Helper()

	f := &ShodanFake{
		RegisterPage:   `<html><form><input type="hidden" name="csrf_token" value="reg-token"></form></html>`,
		RegisterStatus: http.StatusOK,
		ActivateStatus: http.StatusNoContent,
		LoginPage:      `<html><form><input type="hidden" name="csrf_token" value="login-token"></form></html>`,
		LoginStatus:    http.StatusOK,
		AccountPage:    fmt.Sprintf(`<html><input id="api_key" value="%s"></html>`, apiKey),
		hits:           make(map[string]int),
		forms:          make(map[string]url.Values),
		headers:        make(map[string]http.Header),
		withCookie:     make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /register", func(w http.ResponseWriter, r *http.Request) {
		f.record("GET /register", r)
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "s1", Path: "/"})
		fmt.Fprint(w, f.RegisterPage)
	})
	mux.HandleFunc("POST /register", func(w http.ResponseWriter, r *http.Request) {
		f.record("POST /register", r)
		w.WriteHeader(f.RegisterStatus)
	})
	mux.HandleFunc("GET /activate/{token}", func(w http.ResponseWriter, r *http.Request) {
		f.record("GET /activate", r)
		w.WriteHeader(f.ActivateStatus)
	})
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		f.record("GET /login", r)
		fmt.Fprint(w, f.LoginPage)
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		f.record("POST /login", r)
		w.WriteHeader(f.LoginStatus)
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		f.record("GET /", r)
		fmt.Fprint(w, f.AccountPage)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)

	return f
}

// RegisterURL returns the registration page URL.
func (f *ShodanFake) RegisterURL() string { return f.Server.URL + "/register" }

// LoginURL returns the login page URL.
func (f *ShodanFake) LoginURL() string { return f.Server.URL + "/login" }

// AccountURL returns the account page URL.
func (f *ShodanFake) AccountURL() string { return f.Server.URL + "/" }

// ActivationURL returns an activation link for token.
func (f *ShodanFake) ActivationURL(token string) string {
	return f.Server.URL + "/activate/" + token
}

// Hits returns how often route (e.g. "POST /register") was requested.
func (f *ShodanFake) Hits(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[route]
}

// Form returns the last form posted to route.
func (f *ShodanFake) Form(route string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forms[route]
}

// Header returns the headers of the last request to route.
func (f *ShodanFake) Header(route string) http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headers[route]
}

// HitsWithSession returns how often route was requested carrying the
// cookie set by the registration page.
func (f *ShodanFake) HitsWithSession(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.withCookie[route]
}

func (f *ShodanFake) record(route string, r *http.Request) {
	_ = r.ParseForm()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.hits[route]++
	f.headers[route] = r.Header.Clone()
	if r.Method == http.MethodPost {
		f.forms[route] = r.PostForm
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		f.withCookie[route]++
	}
}
