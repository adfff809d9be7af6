package value

import (
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, doc string) Value {
	t.Helper()
	var raw any
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw))
	return From(raw)
}

func TestLookup(t *testing.T) {
	v := parse(t, `
generic-service:
  ingress:
    hosts:
      - first.example.com
      - host: last.example.com
  replicaCount: 2
`)

	host, ok := Lookup(v, "generic-service.ingress.hosts.-1.host")
	require.True(t, ok)
	assert.Equal(t, Scalar{V: "last.example.com"}, host)

	first, ok := String(v, "generic-service.ingress.hosts.0")
	require.True(t, ok)
	assert.Equal(t, "first.example.com", first)

	_, ok = Lookup(v, "generic-service.ingress.host")
	assert.False(t, ok)
	_, ok = Lookup(v, "generic-service.ingress.hosts.5")
	assert.False(t, ok)
	_, ok = String(v, "generic-service.replicaCount")
	assert.False(t, ok)
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"nil", Null, false},
		{"false", Scalar{V: false}, false},
		{"true", Scalar{V: true}, true},
		{"empty string", Scalar{V: ""}, false},
		{"string", Scalar{V: "x"}, true},
		{"zero uint", Scalar{V: uint64(0)}, false},
		{"int", Scalar{V: int64(3)}, true},
		{"empty object", Object{}, false},
		{"object", Object{"a": Null}, true},
		{"empty array", Array{}, false},
		{"missing", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truthy(tt.v))
		})
	}
}

func TestNativeRoundTrip(t *testing.T) {
	in := map[string]any{"a": []any{"x", map[string]any{"b": true}}, "c": nil}
	assert.Equal(t, in, Native(From(in)))
}

func TestKeyCollector(t *testing.T) {
	v := parse(t, `
generic-service:
  allowlist:
    office: 1.1.1.1/32
    vpn: 2.2.2.2/32
  extra:
    - allowlist:
        groups: internal
nested:
  deeper:
    allowlist: scalar-value
`)

	got := Visit[Object](v, KeyCollector{Key: "allowlist"})

	assert.Equal(t, map[string]any{
		"generic-service": map[string]any{
			"office": "1.1.1.1/32",
			"vpn":    "2.2.2.2/32",
			"extra":  map[string]any{"groups": "internal"},
		},
		"nested": map[string]any{
			"deeper": map[string]any{"allowlist": "scalar-value"},
		},
	}, Native(got))
}

func TestKeyCollectorNoMatches(t *testing.T) {
	v := parse(t, `
image:
  repository: quay.io/hmpps/app
`)
	assert.Empty(t, Visit[Object](v, KeyCollector{Key: "allowlist"}))
	assert.Empty(t, Visit[Object](Scalar{V: "x"}, KeyCollector{Key: "allowlist"}))
}

func TestScalarCollector(t *testing.T) {
	v := parse(t, `
jobs:
  build:
    steps:
      - uses: actions/checkout@v4
      - run: make
      - uses: some-org/custom-action@v1.2.0
  deploy:
    uses: ./.github/workflows/deploy.yml
`)

	got := Visit[[]string](v, ScalarCollector{Key: "uses"})
	assert.Equal(t, []string{
		"actions/checkout@v4",
		"some-org/custom-action@v1.2.0",
		"./.github/workflows/deploy.yml",
	}, got)
}
