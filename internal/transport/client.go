// Package transport is the shared HTTP layer for the catalogue, CircleCI and
// Alertmanager clients. Every request is sent once by default: a failed call
// is logged by the caller and the run moves on. Reads can opt into
// go-retryablehttp backoff with WithRetryMax; writes are never retried so a
// POST can not create a duplicate catalogue record.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/constants"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

// Client provides HTTP functionality with authentication and retries.
type Client struct {
	service   string
	token     string
	auth      Authenticator
	userAgent string
	reads     *http.Client
	writes    *http.Client
}

type options struct {
	timeout        time.Duration
	retryMax       int
	followRedirect bool
	userAgent      string
	transport      http.RoundTripper
}

// Option configures a Client.
type Option func(*options)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRetryMax sets how many times an idempotent request is retried.
// The default is zero.
func WithRetryMax(n int) Option {
	return func(o *options) { o.retryMax = n }
}

// WithoutRedirects returns redirect responses to the caller instead of following them.
func WithoutRedirects() Option {
	return func(o *options) { o.followRedirect = false }
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// New creates a transport client for the named upstream service.
func New(service string, auth Authenticator, token string, opts ...Option) *Client {
	o := &options{
		timeout:        constants.DefaultHTTPTimeout,
		followRedirect: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	if auth == nil {
		auth = &NoAuth{}
	}

	base := &http.Client{Timeout: o.timeout}
	if o.transport != nil {
		base.Transport = o.transport
	}
	if !o.followRedirect {
		base.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = base
	rc.RetryMax = o.retryMax
	rc.RetryWaitMin = constants.RetryBackoff
	rc.RetryWaitMax = constants.MaxRetryBackoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = retryLogger{service: service}

	reads := rc.StandardClient()
	reads.CheckRedirect = base.CheckRedirect

	return &Client{
		service:   service,
		token:     token,
		auth:      auth,
		userAgent: o.userAgent,
		reads:     reads,
		writes:    base,
	}
}

// HTTPClient returns the retrying client for use by SDKs that take an *http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.reads
}

// Service is the upstream name used in errors and logs.
func (c *Client) Service() string {
	return c.service
}

// Do sends a request with authentication applied. body, when non-nil, is
// encoded as JSON.
func (c *Client) Do(ctx context.Context, method, url string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, errors.WrapParse("json", "request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errors.WrapResource("create", "request", method+" "+url, err)
	}
	c.auth.Apply(req, c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	client := c.writes
	if method == http.MethodGet || method == http.MethodHead {
		client = c.reads
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.WrapAPI(c.service, url, err)
	}
	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil)
}

// GetJSON performs a GET request and decodes a 200 JSON body into target.
func (c *Client) GetJSON(ctx context.Context, url string, target any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	return DecodeResponse(resp, c.service, target)
}

// SendJSON performs a write with a JSON body and decodes the response into
// target when target is non-nil.
func (c *Client) SendJSON(ctx context.Context, method, url string, body, target any) error {
	resp, err := c.Do(ctx, method, url, body)
	if err != nil {
		return err
	}
	if target == nil {
		return DrainResponse(resp, c.service)
	}
	return DecodeResponse(resp, c.service, target)
}

// retryLogger routes retryablehttp's leveled logging into zerolog at debug.
type retryLogger struct {
	service string
}

func (l retryLogger) log(level, msg string, kv ...any) {
	ev := logging.Debug().Str("service", l.service).Str("retry_level", level)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			ev = ev.Interface(k, kv[i+1])
		}
	}
	ev.Msg(msg)
}

func (l retryLogger) Error(msg string, kv ...any) { l.log("error", msg, kv...) }
func (l retryLogger) Info(msg string, kv ...any)  { l.log("info", msg, kv...) }
func (l retryLogger) Debug(msg string, kv ...any) { l.log("debug", msg, kv...) }
func (l retryLogger) Warn(msg string, kv ...any)  { l.log("warn", msg, kv...) }
