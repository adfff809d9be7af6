// Package github is a GitHub App client for the discovery jobs. It keeps an
// installation token, a snapshot of the core rate limit, and a per-run cache
// of repository file contents.
package github

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v66/github"
	"github.com/patrickmn/go-cache"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/transport"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/constants"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
)

const service = "github"

// Config configures a Client.
type Config struct {
	AppID          int64 `validate:"required"`
	InstallationID int64 `validate:"required"`
	// PrivateKey is the base64 encoded PEM private key of the App.
	PrivateKey string `validate:"required,base64"`
	Org        string `validate:"required"`
	APIURL     string `validate:"omitempty,url"`
}

// Client is an installation-authenticated GitHub client. It is safe for
// concurrent use.
type Client struct {
	cfg  Config
	key  *rsa.PrivateKey
	http *http.Client
	base *url.URL

	mu   sync.RWMutex
	api  *gh.Client
	rate repository.RateLimit

	files *cache.Cache
	now   func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithClock replaces the clock used for App JWTs.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithTransportOptions configures the underlying retrying HTTP client.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(c *Client) {
		c.http = transport.New(service, nil, "", opts...).HTTPClient()
	}
}

// New parses the App key and returns an unauthenticated client. Call
// Authenticate before use.
func New(cfg Config, opts ...Option) (*Client, error) {
	pem, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cfg.PrivateKey))
	if err != nil {
		return nil, errors.NewConfigError("github", "private key is not valid base64", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, errors.NewConfigError("github", "private key is not a PEM encoded RSA key", err)
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = constants.DefaultGitHubAPIURL
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	base, err := url.Parse(apiURL)
	if err != nil {
		return nil, errors.NewConfigError("github", "invalid API URL", err)
	}

	c := &Client{
		cfg:   cfg,
		key:   key,
		base:  base,
		files: cache.New(constants.FileCacheTTL, constants.FileCacheCleanupInterval),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = transport.New(service, nil, "").HTTPClient()
	}
	return c, nil
}

// newAPI returns a go-github client sending token as a bearer token.
func (c *Client) newAPI(token string) *gh.Client {
	api := gh.NewClient(c.http).WithAuthToken(token)
	api.BaseURL = c.base
	return api
}

// appJWT signs a short lived App JWT. The issue time is backdated to allow
// for clock drift.
func (c *Client) appJWT() (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(constants.AppJWTExpiry)),
		Issuer:    strconv.FormatInt(c.cfg.AppID, 10),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.key)
	if err != nil {
		return "", errors.NewAuthenticationError(service, "app jwt", "unable to sign", err)
	}
	return signed, nil
}

// Authenticate exchanges an App JWT for an installation token.
func (c *Client) Authenticate(ctx context.Context) error {
	signed, err := c.appJWT()
	if err != nil {
		return err
	}
	tok, _, err := c.newAPI(signed).Apps.CreateInstallationToken(ctx, c.cfg.InstallationID, nil)
	if err != nil {
		return errors.NewAuthenticationError(service, "installation token", "unable to create installation token", wrap(err, "app/installations"))
	}

	c.mu.Lock()
	c.api = c.newAPI(tok.GetToken())
	c.mu.Unlock()
	logging.FromContext(ctx).Debug().Time("expires_at", tok.GetExpiresAt().Time).Msg("github installation token created")
	return nil
}

// Reauthenticate replaces the installation token. Used after waiting out a
// rate limit reset, by which time the previous token may have expired.
func (c *Client) Reauthenticate(ctx context.Context) error {
	return c.Authenticate(ctx)
}

func (c *Client) client() (*gh.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.api == nil {
		return nil, errors.NewAuthenticationError(service, "installation token", "client is not authenticated", errors.ErrUnauthorized)
	}
	return c.api, nil
}

// observe records the rate limit reported on a response.
func (c *Client) observe(resp *gh.Response) {
	if resp == nil || resp.Rate.Limit == 0 {
		return
	}
	c.mu.Lock()
	c.rate = repository.RateLimit{
		Limit:     resp.Rate.Limit,
		Remaining: resp.Rate.Remaining,
		Reset:     resp.Rate.Reset.Time,
	}
	c.mu.Unlock()
}

// RateLimit fetches the core rate limit and refreshes the snapshot.
func (c *Client) RateLimit(ctx context.Context) (repository.RateLimit, error) {
	api, err := c.client()
	if err != nil {
		return repository.RateLimit{}, err
	}
	limits, _, err := api.RateLimit.Get(ctx)
	if err != nil {
		return repository.RateLimit{}, wrap(err, "rate_limit")
	}
	core := limits.GetCore()
	snap := repository.RateLimit{Limit: core.Limit, Remaining: core.Remaining, Reset: core.Reset.Time}

	c.mu.Lock()
	c.rate = snap
	c.mu.Unlock()
	return snap, nil
}

// Snapshot returns the last observed rate limit without calling GitHub.
func (c *Client) Snapshot() repository.RateLimit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rate
}

// TestConnection checks the token works and the organisation is visible.
func (c *Client) TestConnection(ctx context.Context) error {
	rate, err := c.RateLimit(ctx)
	if err != nil {
		return err
	}
	api, err := c.client()
	if err != nil {
		return err
	}
	if _, _, err := api.Organizations.Get(ctx, c.cfg.Org); err != nil {
		return wrap(err, "orgs/"+c.cfg.Org)
	}
	logging.FromContext(ctx).Info().
		Int("limit", rate.Limit).
		Int("remaining", rate.Remaining).
		Time("reset", rate.Reset).
		Msg("connected to the github API")
	return nil
}

// wrap converts go-github errors into the shared taxonomy.
func wrap(err error, endpoint string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gh.ErrBranchNotProtected) {
		return errors.ErrBranchNotProtected
	}
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &errors.APIError{Service: service, StatusCode: http.StatusTooManyRequests, Message: rateErr.Message, Endpoint: endpoint, Err: err}
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &errors.APIError{Service: service, StatusCode: http.StatusTooManyRequests, Message: abuseErr.Message, Endpoint: endpoint, Err: err}
	}
	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return &errors.APIError{Service: service, StatusCode: respErr.Response.StatusCode, Message: respErr.Message, Endpoint: endpoint, Err: err}
	}
	return errors.WrapAPI(service, endpoint, err)
}

// paginate collects every page of a GitHub list call.
func paginate[T any](c *Client, call func(gh.ListOptions) ([]T, *gh.Response, error)) ([]T, error) {
	opts := gh.ListOptions{PerPage: constants.GitHubPageSize}
	var out []T
	for {
		items, resp, err := call(opts)
		c.observe(resp)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if resp == nil || resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}
