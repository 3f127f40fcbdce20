package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mediport.org/internal/obs"
	"mediport.org/internal/session"
)

// DefaultLoginPath is the authentication endpoint, relative to the API
// prefix.
const DefaultLoginPath = "/auth/login"

// Client builds and executes portal API requests. Relative paths are
// resolved against the portal base under the canonical API prefix;
// absolute URLs and localization assets pass through untouched.
type Client struct {
	base      *url.URL
	prefix    string
	loginPath string
	http      *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	prefix    string
	loginPath string
	timeout   time.Duration
	limiter   *rate.Limiter
	transport http.RoundTripper
}

// WithAPIPrefix overrides the canonical API prefix.
func WithAPIPrefix(prefix string) ClientOption {
	return func(c *clientConfig) {
		if prefix != "" {
			c.prefix = "/" + strings.Trim(prefix, "/")
		}
	}
}

// WithLoginPath overrides the authentication endpoint, relative to the
// API prefix.
func WithLoginPath(path string) ClientOption {
	return func(c *clientConfig) {
		if path != "" {
			c.loginPath = "/" + strings.TrimLeft(path, "/")
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit throttles outgoing requests client-side.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *clientConfig) {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithBaseTransport overrides the innermost RoundTripper, for tests.
func WithBaseTransport(rt http.RoundTripper) ClientOption {
	return func(c *clientConfig) {
		if rt != nil {
			c.transport = rt
		}
	}
}

// NewClient assembles the transport chain around the session context:
// metrics outermost, then the fault observer, then the authorization
// decorator.
func NewClient(baseURL string, sess *session.Context, nav Navigator, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid portal base URL %q", baseURL)
	}

	cfg := &clientConfig{
		prefix:    DefaultAPIPrefix,
		loginPath: DefaultLoginPath,
		timeout:   30 * time.Second,
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	chain := http.RoundTripper(&authTransport{
		next:      cfg.transport,
		session:   sess,
		baseHost:  base.Host,
		loginPath: cfg.prefix + cfg.loginPath,
		limiter:   cfg.limiter,
	})
	chain = &faultTransport{next: chain, session: sess, nav: nav}
	chain = &metricsTransport{next: chain}

	return &Client{
		base:      base,
		prefix:    cfg.prefix,
		loginPath: cfg.prefix + cfg.loginPath,
		http:      &http.Client{Transport: chain, Timeout: cfg.timeout},
	}, nil
}

// LoginPath returns the full login endpoint path, prefix included.
func (c *Client) LoginPath() string { return c.loginPath }

// ResolveURL maps a request path onto its final URL.
func (c *Client) ResolveURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	if IsLocalizationAsset(path) {
		return c.base.String() + path
	}
	return c.base.String() + RewritePath(c.prefix, path)
}

// NewRequest builds a request for path with an optional JSON body.
func (c *Client) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.ResolveURL(path), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Do executes the request through the full transport chain.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// DoJSON executes the request and decodes a JSON response body into out
// when the status is 2xx. Non-2xx responses are returned to the caller as
// an error carrying the status.
func (c *Client) DoJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Status: resp.StatusCode, Path: req.URL.Path}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Status int
	Path   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Path, e.Status)
}

// metricsTransport records one observation per completed request.
type metricsTransport struct {
	next http.RoundTripper
}

func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err == nil {
		obs.ObserveRequest(req.Method, req.URL.Path, resp.StatusCode, time.Since(start))
	}
	return resp, err
}
