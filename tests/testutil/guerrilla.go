package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// FakeMail is one message served by GuerrillaFake.
type FakeMail struct {
	ID      string
	From    string
	Subject string
	Body    string
}

// GuerrillaFake is an in-process stand-in for the Guerrilla Mail
// ajax.php API. Each check_email call consumes the next queued batch;
// once the queue is empty it returns an empty list.
type GuerrillaFake struct {
	Server  *httptest.Server
	Address string

	// CheckStatus, when non-zero, is returned for every check_email call.
	CheckStatus int

	mu       sync.Mutex
	batches  [][]FakeMail
	mails    map[string]FakeMail
	requests []url.Values
}

// NewGuerrillaFake starts a fake provider handing out address. The server
// is closed when the test completes.
func NewGuerrillaFake(t *testing.T, address string) *GuerrillaFake {
	t.Helper()

	f := &GuerrillaFake{
		Address: address,
		mails:   make(map[string]FakeMail),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)

	return f
}

// URL returns the ajax.php endpoint of the fake.
func (f *GuerrillaFake) URL() string {
	return f.Server.URL + "/ajax.php"
}

// QueueBatch appends the listing returned by one future check_email call.
// An empty call queues an empty listing.
func (f *GuerrillaFake) QueueBatch(mails ...FakeMail) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batches = append(f.batches, mails)
	for _, m := range mails {
		f.mails[m.ID] = m
	}
}

// Requests returns the query of every call received so far.
func (f *GuerrillaFake) Requests() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.requests...)
}

// Calls returns the queries of the calls to function fn.
func (f *GuerrillaFake) Calls(fn string) []url.Values {
	var calls []url.Values
	for _, q := range f.Requests() {
		if q.Get("f") == fn {
			calls = append(calls, q)
		}
	}
	return calls
}

func (f *GuerrillaFake) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f.mu.Lock()
	f.requests = append(f.requests, q)
	f.mu.Unlock()

	switch q.Get("f") {
	case "get_email_address":
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "fake-session"})
		writeJSON(w, map[string]any{
			"email_addr":      f.Address,
			"email_timestamp": 1700000000,
			"alias":           "alias",
			"sid_token":       "fake-sid",
		})

	case "check_email":
		if f.CheckStatus != 0 {
			w.WriteHeader(f.CheckStatus)
			return
		}

		f.mu.Lock()
		var batch []FakeMail
		if len(f.batches) > 0 {
			batch = f.batches[0]
			f.batches = f.batches[1:]
		}
		f.mu.Unlock()

		list := make([]map[string]any, 0, len(batch))
		for _, m := range batch {
			list = append(list, map[string]any{
				"mail_id":      m.ID,
				"mail_from":    m.From,
				"mail_subject": m.Subject,
			})
		}
		writeJSON(w, map[string]any{
			"list":      list,
			"count":     len(list),
			"sid_token": "fake-sid",
		})

	case "fetch_email":
		f.mu.Lock()
		m, ok := f.mails[q.Get("email_id")]
		f.mu.Unlock()
		if !ok {
			writeJSON(w, false)
			return
		}
		writeJSON(w, map[string]any{
			"mail_id":      m.ID,
			"mail_from":    m.From,
			"mail_subject": m.Subject,
			"mail_body":    m.Body,
		})

	default:
		http.Error(w, "unknown function", http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
