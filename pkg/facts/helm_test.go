package facts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository/repotest"
)

func loadHelm(t *testing.T, files map[string]string) *Helm {
	t.Helper()
	repo := repotest.New("hmpps-example", files)
	h, err := LoadHelm(context.Background(), repo, ComponentPaths{Name: "hmpps-example"})
	require.NoError(t, err)
	return h
}

func TestDescribeHelmTwoEnvironments(t *testing.T) {
	h := loadHelm(t, map[string]string{
		"helm_deploy/hmpps-example/values.yaml": `
generic-service:
  ingress:
    modsecurity_enabled: true
`,
		"helm_deploy/values-dev.yaml": `
generic-service:
  ingress:
    host: a.dev.example.com
`,
		"helm_deploy/values-prod.yaml": `
generic-service:
  ingress:
    host: a.example.com
`,
	})

	got := DescribeHelm(context.Background(), h, false, nil, nil)

	require.Len(t, got.Environments, 2)
	dev, prod := got.Environments["dev"], got.Environments["prod"]
	assert.Equal(t, EnvDev, dev.Type)
	assert.Equal(t, EnvProd, prod.Type)
	assert.Equal(t, "https://a.dev.example.com", dev.URL)
	assert.Equal(t, "https://a.example.com", prod.URL)
	assert.True(t, dev.Modsecurity.Enabled)
	assert.True(t, prod.Modsecurity.Enabled)
	assert.Nil(t, dev.Monitor)
	assert.Nil(t, dev.Alerts)
	assert.False(t, got.API)
}

func TestDescribeHelmMonitor(t *testing.T) {
	h := loadHelm(t, map[string]string{
		"helm_deploy/values-dev.yaml":  "generic-service:\n  ingress:\n    host: a.dev.example.com\n",
		"helm_deploy/values-test.yaml": "generic-service:\n  replicaCount: 1\n",
	})

	got := DescribeHelm(context.Background(), h, false, nil, nil)
	require.NotNil(t, got.Environments["test"].Monitor)
	assert.False(t, *got.Environments["test"].Monitor)
	assert.Nil(t, got.Environments["dev"].Monitor)

	archived := DescribeHelm(context.Background(), h, true, nil, nil)
	require.NotNil(t, archived.Environments["dev"].Monitor)
	assert.False(t, *archived.Environments["dev"].Monitor)
}

type stubProber map[string]ProbeResult

func (s stubProber) Probe(_ context.Context, baseURL string) ProbeResult { return s[baseURL] }

func TestDescribeHelmProbes(t *testing.T) {
	h := loadHelm(t, map[string]string{
		"helm_deploy/values-dev.yaml": "generic-service:\n  ingress:\n    host: a.dev.example.com\n",
	})
	prober := stubProber{"https://a.dev.example.com": {HealthPath: "/health", Swagger: true, SAR: true}}

	got := DescribeHelm(context.Background(), h, false, nil, prober)

	dev := got.Environments["dev"]
	assert.Equal(t, "/health", dev.HealthPath)
	assert.Empty(t, dev.InfoPath)
	assert.Equal(t, SwaggerDocsPath, dev.SwaggerDocs)
	require.NotNil(t, dev.IncludeInSAR)
	assert.True(t, *dev.IncludeInSAR)
	assert.True(t, got.API)
}

func TestLoadHelmMissingDirectory(t *testing.T) {
	repo := repotest.New("hmpps-example", map[string]string{"README.md": "x"})
	_, err := LoadHelm(context.Background(), repo, ComponentPaths{Name: "hmpps-example"})
	assert.True(t, errors.IsNotFound(err))
}

func TestLoadHelmMonorepoPaths(t *testing.T) {
	repo := repotest.New("hmpps-mono", map[string]string{
		"api/helm_deploy/values-dev.yml":   "ingress:\n  host: api.dev\n",
		"api/helm_deploy/values.yaml":      "image:\n  repository: quay.io/hmpps/api\n",
		"custom/charts/values-prod.yaml":   "ingress:\n  host: ui.prod\n",
		"api/helm_deploy/values-dev.yaml~": "ignored",
	})

	h, err := LoadHelm(context.Background(), repo, ComponentPaths{Name: "api", PartOfMonorepo: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"dev"}, h.Names())
	assert.Equal(t, "api/helm_deploy/values.yaml", h.DefaultsFile)
	img, ok := h.ContainerImage()
	assert.True(t, ok)
	assert.Equal(t, "quay.io/hmpps/api", img)

	h, err = LoadHelm(context.Background(), repo, ComponentPaths{Name: "ui", PartOfMonorepo: true, PathToHelmDir: "custom/charts"})
	require.NoError(t, err)
	assert.Equal(t, []string{"prod"}, h.Names())
}

func TestIngressHost(t *testing.T) {
	tests := []struct {
		name   string
		values string
		want   string
	}{
		{"generic-service host", "generic-service:\n  ingress:\n    host: a.example.com\n", "a.example.com"},
		{"last of hosts", "generic-service:\n  ingress:\n    hosts:\n      - one.example.com\n      - two.example.com\n", "two.example.com"},
		{"hosts mapping", "generic-service:\n  ingress:\n    hosts:\n      - host: m.example.com\n", "m.example.com"},
		{"top level ingress", "ingress:\n  host: t.example.com\n", "t.example.com"},
		{"top level hosts", "ingress:\n  hosts:\n    - x.example.com\n", "x.example.com"},
		{"generic-service wins", "generic-service:\n  ingress:\n    host: g.example.com\ningress:\n  host: t.example.com\n", "g.example.com"},
		{"none", "generic-service:\n  replicaCount: 2\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseYAML("values.yaml", []byte(tt.values))
			require.NoError(t, err)
			got, ok := IngressHost(v)
			assert.Equal(t, tt.want != "", ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModsecurityPrecedence(t *testing.T) {
	h := loadHelm(t, map[string]string{
		"helm_deploy/values.yaml": `
generic-service:
  ingress:
    modsecurity_enabled: true
    modsecurity_snippet: |
      SecRuleEngine On
`,
		"helm_deploy/values-dev.yaml": `
generic-service:
  ingress:
    modsecurity_audit_enabled: true
    modsecurity_snippet: SecRuleEngine DetectionOnly
`,
		"helm_deploy/values-prod.yaml": "generic-service:\n  ingress:\n    host: x\n",
	})

	dev, _ := h.Environment("dev")
	m := h.Modsecurity(dev)
	assert.True(t, m.Enabled)
	assert.True(t, m.AuditEnabled)
	require.NotNil(t, m.Snippet)
	assert.Equal(t, "SecRuleEngine DetectionOnly", *m.Snippet)

	prod, _ := h.Environment("prod")
	m = h.Modsecurity(prod)
	assert.True(t, m.Enabled)
	assert.False(t, m.AuditEnabled)
	require.NotNil(t, m.Snippet)
	assert.Equal(t, "SecRuleEngine On\n", *m.Snippet)
}

func TestModsecurityEnvironmentFalseOverridesDefault(t *testing.T) {
	h := loadHelm(t, map[string]string{
		"helm_deploy/values.yaml": `
generic-service:
  ingress:
    modsecurity_enabled: true
    modsecurity_audit_enabled: true
    modsecurity_snippet: SecRuleEngine On
`,
		"helm_deploy/values-dev.yaml": `
generic-service:
  ingress:
    modsecurity_enabled: false
    modsecurity_audit_enabled: false
    modsecurity_snippet: null
`,
		"helm_deploy/values-prod.yaml": "generic-service:\n  ingress:\n    host: x\n",
	})

	dev, _ := h.Environment("dev")
	assert.Equal(t, Modsecurity{}, h.Modsecurity(dev))

	prod, _ := h.Environment("prod")
	m := h.Modsecurity(prod)
	assert.True(t, m.Enabled)
	assert.True(t, m.AuditEnabled)
	require.NotNil(t, m.Snippet)
	assert.Equal(t, "SecRuleEngine On", *m.Snippet)
}

func TestModsecurityDefaultsOff(t *testing.T) {
	h := loadHelm(t, map[string]string{"helm_deploy/values-dev.yaml": "generic-service: {}\n"})
	dev, _ := h.Environment("dev")
	assert.Equal(t, Modsecurity{}, h.Modsecurity(dev))
}

func TestAllowList(t *testing.T) {
	h := loadHelm(t, map[string]string{
		"helm_deploy/values.yaml": `
generic-service:
  allowlist:
    office: 1.1.1.1/32
`,
		"helm_deploy/values-dev.yaml": `
generic-service:
  allowlist:
    vpn: 2.2.2.2/32
`,
		"helm_deploy/values-prod.yaml": "generic-service: {}\n",
	})

	dev, _ := h.Environment("dev")
	list, enabled := h.AllowList(dev)
	assert.True(t, enabled)
	assert.Equal(t, map[string]any{
		"values-dev.yaml": map[string]any{"generic-service": map[string]any{"vpn": "2.2.2.2/32"}},
		"values.yaml":     map[string]any{"generic-service": map[string]any{"office": "1.1.1.1/32"}},
	}, list)

	bare := loadHelm(t, map[string]string{"helm_deploy/values-dev.yaml": "generic-service: {}\n"})
	dev, _ = bare.Environment("dev")
	_, enabled = bare.AllowList(dev)
	assert.False(t, enabled)
}

type routes map[string]string

func (r routes) ChannelForSeverity(label string) (string, bool) {
	c, ok := r[label]
	return c, ok
}

func TestResolveAlerts(t *testing.T) {
	h := loadHelm(t, map[string]string{
		"helm_deploy/values.yaml":      "generic-prometheus-alerts:\n  alertSeverity: hmpps-team\n",
		"helm_deploy/values-dev.yaml":  "generic-prometheus-alerts:\n  alertSeverity: hmpps-team-nonprod\n",
		"helm_deploy/values-prod.yaml": "generic-service: {}\n",
	})
	routing := routes{"hmpps-team": "#team-alerts"}
	ctx := context.Background()

	prod, _ := h.Environment("prod")
	b, ok := ResolveAlerts(ctx, h, prod, routing)
	require.True(t, ok)
	assert.Equal(t, "hmpps-team", b.SeverityLabel)
	require.NotNil(t, b.Channel)
	assert.Equal(t, "#team-alerts", *b.Channel)

	dev, _ := h.Environment("dev")
	b, ok = ResolveAlerts(ctx, h, dev, routing)
	require.True(t, ok)
	assert.Equal(t, "hmpps-team-nonprod", b.SeverityLabel)
	assert.Nil(t, b.Channel)

	_, ok = ResolveAlerts(ctx, h, prod, nil)
	assert.False(t, ok)
}

func TestProductID(t *testing.T) {
	h := loadHelm(t, map[string]string{
		"helm_deploy/values.yaml":     "generic-service:\n  productId: DPS001\n",
		"helm_deploy/values-dev.yaml": "{}\n",
	})
	id, ok := h.ProductID()
	assert.True(t, ok)
	assert.Equal(t, "DPS001", id)
}

func TestClassify(t *testing.T) {
	tests := map[string]EnvType{
		"dev": EnvDev, "Development": EnvDev,
		"staging": EnvStage, "uat": EnvStage, "test": EnvStage,
		"demo":    EnvTest,
		"preprod": EnvPreprod, "preproduction": EnvPreprod,
		"prod": EnvProd, "production": EnvProd,
	}
	for name, want := range tests {
		got, ok := Classify(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	_, ok := Classify("sandbox")
	assert.False(t, ok)
}
