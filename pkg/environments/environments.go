// Package environments reconciles the environments of one component with the
// catalogue. Helm values files name the environments; the legacy bootstrap
// projects file and the repository's GitHub environments supply namespaces.
package environments

import (
	"context"
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/catalogue"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/utils/ptr"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/facts"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
)

// Catalogue is the part of the catalogue client used to write environments.
type Catalogue interface {
	AddEnvironment(ctx context.Context, d catalogue.EnvironmentData) (string, error)
	UpdateEnvironment(ctx context.Context, documentID string, d catalogue.EnvironmentData) error
	DeleteEnvironment(ctx context.Context, documentID string) error
	NamespaceDocumentID(ctx context.Context, name string) (string, error)
}

// Candidate is an environment named by the bootstrap file or GitHub.
type Candidate struct {
	Name      string
	Type      facts.EnvType
	Namespace string
}

// Candidates merges the bootstrap entries of a repository with its GitHub
// environments. A GitHub KUBE_NAMESPACE replaces the bootstrap namespace.
func Candidates(bootstrap *facts.BootstrapProject, github []repository.Environment) map[string]Candidate {
	out := map[string]Candidate{}
	add := func(name, namespace string) {
		if name == "" {
			return
		}
		c, ok := out[name]
		if !ok {
			c = Candidate{Name: name}
			c.Type, _ = facts.Classify(name)
		}
		if namespace != "" {
			c.Namespace = namespace
		}
		out[name] = c
	}
	if bootstrap != nil {
		for _, ns := range bootstrap.Namespaces {
			add(ns.EnvName, ns.Namespace)
		}
	}
	for _, e := range github {
		add(e.Name, e.Namespace)
	}
	return out
}

// Live lists the Helm environments that can be written: those with a type
// and a namespace from a candidate.
func Live(helmNames []string, candidates map[string]Candidate) []string {
	var out []string
	for _, name := range helmNames {
		if _, ok := facts.Classify(name); !ok {
			continue
		}
		if c, ok := candidates[name]; ok && c.Namespace != "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// CheckEnvChange reports whether the live environment names differ from the
// names stored in the catalogue.
func CheckEnvChange(live, stored []string) bool {
	a := append([]string(nil), live...)
	b := append([]string(nil), stored...)
	sort.Strings(a)
	sort.Strings(b)
	return !cmp.Equal(a, b, cmpopts.EquateEmpty())
}

// Sources is everything Reconcile needs for one component.
type Sources struct {
	Helm       facts.HelmFacts
	Candidates map[string]Candidate
	// Complete is false when a source could not be read. Stored environments
	// are then never deleted, since missing is not the same as absent.
	Complete bool
}

// Result records the outcome for each environment name.
type Result struct {
	Added   []string
	Updated []string
	Removed []string
	Errors  []string
	// Live is the environment set the catalogue was reconciled to.
	Live []string
}

// Desired builds the write payload for one environment. Facts that were not
// determined are left nil so stored values are kept.
func Desired(f facts.EnvFacts, c Candidate) catalogue.EnvironmentData {
	d := catalogue.EnvironmentData{
		Name:        f.Name,
		Type:        ptr.NonEmpty(string(f.Type)),
		Namespace:   ptr.NonEmpty(c.Namespace),
		URL:         ptr.NonEmpty(f.URL),
		HealthPath:  ptr.NonEmpty(f.HealthPath),
		InfoPath:    ptr.NonEmpty(f.InfoPath),
		SwaggerDocs: ptr.NonEmpty(f.SwaggerDocs),
	}
	d.IncludeInSAR = f.IncludeInSAR
	d.Monitor = f.Monitor

	if f.ValuesRead {
		d.ModsecurityEnabled = ptr.To(f.Modsecurity.Enabled)
		d.ModsecurityAuditEnabled = ptr.To(f.Modsecurity.AuditEnabled)
		d.ModsecuritySnippet = catalogue.NullableFrom(f.Modsecurity.Snippet)
		d.IPAllowList = f.AllowList
		d.IPAllowListEnabled = ptr.To(f.AllowListEnabled)
	}
	if f.Alerts != nil {
		d.AlertSeverityLabel = ptr.To(f.Alerts.SeverityLabel)
		d.AlertsSlackChannel = f.Alerts.Channel
	}
	return d
}

// relational fields are written by reference and read back populated, so
// they are not compared.
var relational = map[string]bool{"component": true, "ns": true}

// Changed reports whether writing d would alter the stored environment.
func Changed(d catalogue.EnvironmentData, stored catalogue.Environment) (bool, error) {
	want, err := d.Fields()
	if err != nil {
		return false, err
	}
	for k, v := range want {
		if relational[k] {
			continue
		}
		if !cmp.Equal(v, stored.Raw[k], cmpopts.EquateEmpty()) {
			return true, nil
		}
	}
	return false, nil
}

// Reconciler writes environments through a Catalogue.
type Reconciler struct {
	cat Catalogue
}

// New creates a Reconciler.
func New(cat Catalogue) *Reconciler {
	return &Reconciler{cat: cat}
}

// Reconcile adds, updates and deletes the component's environments so the
// catalogue matches the live set. Each environment is written at most once.
func (r *Reconciler) Reconcile(ctx context.Context, component catalogue.Component, src Sources) Result {
	ctx = logging.WithComponent(ctx, component.Name)
	log := logging.FromContext(ctx)

	names := make([]string, 0, len(src.Helm.Environments))
	for name := range src.Helm.Environments {
		names = append(names, name)
	}
	sort.Strings(names)

	res := Result{Live: Live(names, src.Candidates)}
	live := make(map[string]bool, len(res.Live))
	for _, name := range res.Live {
		live[name] = true
	}

	for _, name := range names {
		f := src.Helm.Environments[name]
		c := src.Candidates[name]
		switch {
		case f.Type == "":
			log.Info().Str("environment", name).Msg("skipping environment with no type")
			continue
		case c.Namespace == "":
			log.Info().Str("environment", name).Msg("skipping environment with no namespace")
			continue
		}
		d := Desired(f, c)

		stored, exists := component.Env(name)
		if exists {
			changed, err := Changed(d, stored)
			if err != nil {
				log.Error().Err(err).Str("environment", name).Msg("unable to compare environment")
				res.Errors = append(res.Errors, name)
				continue
			}
			if !changed {
				log.Debug().Str("environment", name).Msg("environment unchanged")
				continue
			}
		}

		d.NS = r.namespaceRef(ctx, c.Namespace)
		if exists {
			log.Info().Str("environment", name).Msg("updating environment")
			if err := r.cat.UpdateEnvironment(ctx, stored.DocumentID, d); err != nil {
				log.Error().Err(err).Str("environment", name).Msg("unable to update environment")
				res.Errors = append(res.Errors, name)
				continue
			}
			res.Updated = append(res.Updated, name)
			continue
		}

		d.Component = ptr.NonEmpty(component.DocumentID)
		log.Info().Str("environment", name).Msg("environment not found, adding")
		if _, err := r.cat.AddEnvironment(ctx, d); err != nil {
			log.Error().Err(err).Str("environment", name).Msg("unable to add environment")
			res.Errors = append(res.Errors, name)
			continue
		}
		res.Added = append(res.Added, name)
	}

	if !src.Complete {
		log.Debug().Msg("environment sources incomplete, not removing stored environments")
		return res
	}
	for _, stored := range component.Envs {
		if live[stored.Name] {
			continue
		}
		log.Info().Str("environment", stored.Name).Msg("environment no longer deployed, removing")
		if err := r.cat.DeleteEnvironment(ctx, stored.DocumentID); err != nil {
			log.Error().Err(err).Str("environment", stored.Name).Msg("unable to remove environment")
			res.Errors = append(res.Errors, stored.Name)
			continue
		}
		res.Removed = append(res.Removed, stored.Name)
	}
	return res
}

// namespaceRef resolves a namespace to its catalogue document. Nil is
// returned, leaving the stored reference untouched, when it cannot be found.
func (r *Reconciler) namespaceRef(ctx context.Context, namespace string) *string {
	id, err := r.cat.NamespaceDocumentID(ctx, namespace)
	switch {
	case err == nil:
		return &id
	case errors.IsNotFound(err):
		logging.FromContext(ctx).Debug().Str("namespace", namespace).Msg("namespace not in catalogue")
	default:
		logging.FromContext(ctx).Warn().Err(err).Str("namespace", namespace).Msg("unable to look up namespace")
	}
	return nil
}
