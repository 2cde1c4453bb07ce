// Package guerrilla is a client for the Guerrilla Mail disposable-mailbox
// API. Each call is a single GET against ajax.php with the function name
// in the "f" query parameter.
package guerrilla

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/nhle/shodjinn/internal/model"
	"github.com/nhle/shodjinn/internal/source"
)

// Provider function names.
const (
	opGetAddress = "get_email_address"
	opCheck      = "check_email"
	opFetch      = "fetch_email"
)

// Client talks to the mailbox provider. It keeps its own cookie jar and
// session token so that polls stay bound to the address it created; it
// never shares cookies with the target service session.
type Client struct {
	apiURL     string
	ip         string
	agent      string
	userAgent  string
	httpClient *http.Client
	sidToken   string
}

// Option configures a Client.
type Option func(*Client)

// WithIdentity sets the synthetic client identity sent with every call.
func WithIdentity(ip, agent string) Option {
	return func(c *Client) {
		c.ip = ip
		c.agent = agent
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// NewClient creates a mailbox client for the ajax.php endpoint at apiURL.
// timeout bounds each individual call. apiURL must be absolute.
func NewClient(apiURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(apiURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid mailbox api url %q", apiURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{
		PublicSuffixList: publicsuffix.List,
	})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	c := &Client{
		apiURL: apiURL,
		ip:     "127.0.0.1",
		agent:  "Mozilla/5.0 (compatible)",
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// CreateMailbox requests a fresh address.
func (c *Client) CreateMailbox(ctx context.Context) (model.MailboxHandle, error) {
	var resp AddressResponse
	if err := c.call(ctx, opGetAddress, nil, &resp); err != nil {
		return model.MailboxHandle{}, err
	}

	if resp.EmailAddr == "" {
		return model.MailboxHandle{}, &source.ProviderError{
			Op:  opGetAddress,
			Err: errors.New("response has no email_addr"),
		}
	}

	c.rememberToken(resp.SIDToken)
	return model.MailboxHandle{Address: resp.EmailAddr}, nil
}

// PollOnce lists messages with an ID above cursor. It performs exactly one
// request and does not wait.
func (c *Client) PollOnce(ctx context.Context, cursor model.Cursor) (source.PollResult, error) {
	params := url.Values{}
	params.Set("seq", strconv.FormatInt(int64(cursor), 10))

	var resp CheckResponse
	if err := c.call(ctx, opCheck, params, &resp); err != nil {
		return source.PollResult{Next: cursor}, err
	}
	c.rememberToken(resp.SIDToken)

	result := source.PollResult{
		Messages: make([]model.MessageSummary, 0, len(resp.List)),
		Next:     cursor,
	}
	for _, entry := range resp.List {
		result.Messages = append(result.Messages, model.MessageSummary{
			ID:      string(entry.MailID),
			Sender:  entry.MailFrom,
			Subject: entry.MailSubject,
		})
		if seq, ok := entry.MailID.Seq(); ok {
			result.Next = result.Next.Advance(seq)
		}
	}

	return result, nil
}

// FetchMessage retrieves the full body of one message.
func (c *Client) FetchMessage(ctx context.Context, id string) (model.Message, error) {
	params := url.Values{}
	params.Set("email_id", id)

	var resp FetchResponse
	if err := c.call(ctx, opFetch, params, &resp); err != nil {
		return model.Message{}, err
	}

	return model.Message{
		ID:      id,
		Sender:  resp.MailFrom,
		Subject: resp.MailSubject,
		Body:    resp.MailBody,
	}, nil
}

func (c *Client) rememberToken(token string) {
	if token != "" {
		c.sidToken = token
	}
}

// call issues one provider function and decodes the JSON body into result.
// Every failure is returned as a *source.ProviderError.
func (c *Client) call(
	ctx context.Context,
	op string,
	params url.Values,
	result interface{},
) error {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return &source.ProviderError{Op: op, Err: fmt.Errorf("parsing api url: %w", err)}
	}

	q := u.Query()
	for key, values := range params {
		q[key] = values
	}
	q.Set("f", op)
	q.Set("ip", c.ip)
	q.Set("agent", c.agent)
	if c.sidToken != "" {
		q.Set("sid_token", c.sidToken)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &source.ProviderError{Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &source.ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &source.ProviderError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("reading response body: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &source.ProviderError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", truncate(body, 200)),
		}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &source.ProviderError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decoding response: %w", err),
		}
	}

	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
