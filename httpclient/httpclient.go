// Package httpclient is the thin HTTPS client every bridge REST call
// goes through: it disables peer-certificate verification (the bridge
// presents a self-signed cert), injects the hue-application-key
// header, and maps non-2xx responses to errs.HTTPError.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rschio/huestream/errs"
)

const defaultTimeout = 5 * time.Second

// Client issues HTTPS requests to a single bridge IP.
type Client struct {
	host     string
	username string
	http     *http.Client
	log      zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithUsername sets the hue-application-key header value sent with
// every request.
func WithUsername(username string) Option {
	return func(c *Client) { c.username = username }
}

// WithTimeout overrides the default 5s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger attaches a logger; the zero value keeps the client
// silent.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithHTTPClient overrides the underlying *http.Client entirely
// (tests substitute an httptest.Server-backed client here).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client targeting https://host.
func New(host string, opts ...Option) *Client {
	transport := *http.DefaultTransport.(*http.Transport)
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	c := &Client{
		host: host,
		http: &http.Client{
			Transport: &transport,
			Timeout:   defaultTimeout,
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Username returns the hue-application-key currently configured.
func (c *Client) Username() string { return c.username }

// SetUsername updates the hue-application-key used on subsequent
// requests (set once onboarding completes).
func (c *Client) SetUsername(username string) { c.username = username }

func (c *Client) url(path string) string {
	return fmt.Sprintf("https://%s%s", c.host, path)
}

// Do issues an HTTPS request and returns the raw response. Callers
// must close the response body. Non-2xx responses still return a
// non-nil response alongside an *errs.HTTPError.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.Header.Set("hue-application-key", c.username)
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("bridge request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return resp, &errs.HTTPError{Status: resp.StatusCode, Reason: string(reason)}
	}
	return resp, nil
}

// GetJSON issues a GET and decodes the response body into dst.
func (c *Client) GetJSON(ctx context.Context, path string, dst any) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(dst)
}

// PutJSON issues a PUT with body marshaled as JSON.
func (c *Client) PutJSON(ctx context.Context, path string, body any) error {
	return c.sendJSON(ctx, http.MethodPut, path, body)
}

// PostJSON issues a POST with body marshaled as JSON, decoding the
// response into dst when non-nil.
func (c *Client) PostJSON(ctx context.Context, path string, body any, dst any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.Do(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if dst == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.Do(ctx, method, path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// HeaderValue issues a GET and returns a single response header value,
// used for the GET /auth/v1 -> hue-application-id lookup (§4.3.f).
func (c *Client) HeaderValue(ctx context.Context, path, header string) (string, error) {
	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return resp.Header.Get(header), nil
}
