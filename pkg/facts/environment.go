package facts

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

// maxParallelProbes bounds concurrent endpoint probes for one component.
const maxParallelProbes = 4

// EnvFacts is everything derived from Helm for one environment. Pointer
// fields are nil when the fact could not be determined.
type EnvFacts struct {
	Name string
	// Type is empty for unrecognised environment names.
	Type EnvType
	File string
	// ValuesRead is false when the values file could not be read, in which
	// case only the type is known.
	ValuesRead bool

	URL          string
	HealthPath   string
	InfoPath     string
	SwaggerDocs  string
	IncludeInSAR *bool

	Modsecurity Modsecurity

	Alerts    *AlertBinding
	AllowList map[string]any
	// AllowListEnabled is true when any allow-list mapping is non-empty.
	AllowListEnabled bool

	// Monitor is false for archived repositories and environments without a URL.
	Monitor *bool
}

// HelmFacts is the result of DescribeHelm.
type HelmFacts struct {
	Environments map[string]EnvFacts
	// API is true when any environment exposes Swagger docs.
	API bool
}

// DescribeHelm derives per-environment facts from a loaded Helm directory,
// probing each resolved URL.
func DescribeHelm(ctx context.Context, h *Helm, archived bool, routing AlertRouting, prober Prober) HelmFacts {
	log := logging.FromContext(ctx)
	out := make([]EnvFacts, len(h.Environments))

	var g errgroup.Group
	g.SetLimit(maxParallelProbes)
	for i, env := range h.Environments {
		f := EnvFacts{Name: env.Name, File: env.File}
		if t, ok := Classify(env.Name); ok {
			f.Type = t
		} else {
			log.Info().Str("environment", env.Name).Msg("environment name has no recognised type")
		}
		if archived {
			f.Monitor = boolPtr(false)
		}

		if env.Values != nil {
			f.ValuesRead = true
			f.Modsecurity = h.Modsecurity(env)
			f.AllowList, f.AllowListEnabled = h.AllowList(env)
			if binding, ok := ResolveAlerts(ctx, h, env, routing); ok {
				f.Alerts = &binding
			}
			if host, ok := IngressHost(env.Values); ok {
				f.URL = "https://" + host
			}
		}
		if f.URL == "" {
			f.Monitor = boolPtr(false)
		}

		out[i] = f
		if f.URL == "" || prober == nil {
			continue
		}
		g.Go(func() error {
			res := prober.Probe(ctx, out[i].URL)
			out[i].HealthPath = res.HealthPath
			out[i].InfoPath = res.InfoPath
			if res.Swagger {
				out[i].SwaggerDocs = SwaggerDocsPath
				sar := res.SAR
				out[i].IncludeInSAR = &sar
			}
			return nil
		})
	}
	_ = g.Wait()

	facts := HelmFacts{Environments: make(map[string]EnvFacts, len(out))}
	for _, f := range out {
		facts.Environments[f.Name] = f
		if f.SwaggerDocs != "" {
			facts.API = true
		}
	}
	return facts
}

func boolPtr(b bool) *bool {
	return &b
}
