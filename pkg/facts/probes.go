package facts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/transport"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/constants"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/value"
)

// SwaggerDocsPath is recorded on environments that expose Swagger UI.
const SwaggerDocsPath = "/swagger-ui.html"

// ProbeResult is what the endpoint probes found for one base URL.
type ProbeResult struct {
	HealthPath string
	InfoPath   string
	Swagger    bool
	// SAR is only meaningful when Swagger is true.
	SAR bool
}

// Prober checks a deployed environment's well known endpoints.
type Prober interface {
	Probe(ctx context.Context, baseURL string) ProbeResult
}

// HTTPProber probes over HTTP without following redirects. Failures of any
// kind count as "not found".
type HTTPProber struct {
	client *transport.Client
}

// NewHTTPProber returns a prober with the standard probe timeout.
func NewHTTPProber(opts ...transport.Option) *HTTPProber {
	base := []transport.Option{
		transport.WithTimeout(constants.ProbeTimeout),
		transport.WithRetryMax(0),
		transport.WithoutRedirects(),
		transport.WithUserAgent(constants.ProbeUserAgent),
	}
	return &HTTPProber{client: transport.New("probe", nil, "", append(base, opts...)...)}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, baseURL string) ProbeResult {
	health, info := "/health", "/info"
	if strings.Contains(baseURL, "sign-in") {
		health, info = "/auth/health", "/auth/info"
	}

	var res ProbeResult
	if p.jsonEndpoint(ctx, baseURL+health) {
		res.HealthPath = health
	}
	if p.jsonEndpoint(ctx, baseURL+info) {
		res.InfoPath = info
	}
	if p.swagger(ctx, baseURL) {
		res.Swagger = true
		res.SAR = p.subjectAccessRequest(ctx, baseURL)
	}
	return res
}

func (p *HTTPProber) fetch(ctx context.Context, url string) (*http.Response, []byte, bool) {
	resp, err := p.client.Get(ctx, url)
	if err != nil {
		logging.FromContext(ctx).Debug().Err(err).Str("url", url).Msg("could not connect to endpoint")
		return nil, nil, false
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, false
	}
	return resp, body, true
}

func (p *HTTPProber) jsonEndpoint(ctx context.Context, url string) bool {
	resp, body, ok := p.fetch(ctx, url)
	if !ok || resp.StatusCode == http.StatusNotFound {
		return false
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return false
	}
	return value.Truthy(value.From(doc))
}

func (p *HTTPProber) swagger(ctx context.Context, baseURL string) bool {
	resp, _, ok := p.fetch(ctx, baseURL+SwaggerDocsPath)
	if !ok || resp.StatusCode != http.StatusFound {
		return false
	}
	loc := resp.Header.Get("Location")
	return strings.Contains(loc, "/swagger-ui/index.html") || strings.Contains(loc, "api-docs/index.html")
}

func (p *HTTPProber) subjectAccessRequest(ctx context.Context, baseURL string) bool {
	resp, body, ok := p.fetch(ctx, baseURL+"/v3/api-docs")
	if !ok || resp.StatusCode != http.StatusOK {
		return false
	}
	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return false
	}
	return value.Truthy(value.From(doc.Paths["/subject-access-request"]))
}
