package facts

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/value"
)

var helmValuesFile = regexp.MustCompile(`^values-([a-z0-9-]+)\.ya?ml$`)

// ComponentPaths locates a component inside its repository.
type ComponentPaths struct {
	Name           string
	PartOfMonorepo bool
	PathToProject  string
	PathToHelmDir  string
}

// ProjectDir is the component's directory: "." for single-project repositories.
func (c ComponentPaths) ProjectDir() string {
	if !c.PartOfMonorepo {
		return "."
	}
	if c.PathToProject != "" {
		return c.PathToProject
	}
	return c.Name
}

// HelmDir is the Helm deploy directory for the component.
func (c ComponentPaths) HelmDir() string {
	if c.PathToHelmDir != "" {
		return repository.Join(c.PathToHelmDir)
	}
	return repository.Join(c.ProjectDir(), "helm_deploy")
}

// HelmEnvironment is one values-<env> file.
type HelmEnvironment struct {
	Name string
	File string
	// Values is nil when the file could not be read or parsed.
	Values value.Value
}

// FileName is the base name of the values file.
func (e HelmEnvironment) FileName() string {
	return path.Base(e.File)
}

// Helm is the parsed Helm deploy directory of a component.
type Helm struct {
	Dir          string
	DefaultsFile string
	// Defaults is an empty object when no chart default values file exists.
	Defaults     value.Value
	Environments []HelmEnvironment
}

// HelmEnvironmentNames lists the environments named by values-<env> files in
// dir without reading them.
func HelmEnvironmentNames(ctx context.Context, files repository.Files, dir string) ([]string, error) {
	entries, err := files.Dir(ctx, dir)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var names []string
	for _, e := range entries {
		if e.Type != repository.EntryFile {
			continue
		}
		m := helmValuesFile.FindStringSubmatch(e.Name)
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	sort.Strings(names)
	return names, nil
}

// LoadHelm reads the Helm deploy directory of a component. A missing
// directory is returned as an error matching errors.ErrNotFound.
func LoadHelm(ctx context.Context, files repository.Files, c ComponentPaths) (*Helm, error) {
	log := logging.FromContext(ctx)
	dir := c.HelmDir()

	entries, err := files.Dir(ctx, dir)
	if err != nil {
		return nil, err
	}

	h := &Helm{Dir: dir, Defaults: value.Object{}}
	seen := map[string]bool{}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	for _, e := range entries {
		m := helmValuesFile.FindStringSubmatch(e.Name)
		if e.Type != repository.EntryFile || m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		env := HelmEnvironment{Name: m[1], File: repository.Join(dir, e.Name)}
		if v, err := ReadYAML(ctx, files, env.File); err != nil {
			log.Warn().Err(err).Str("file", env.File).Msg("unable to read helm values file")
		} else {
			env.Values = v
		}
		h.Environments = append(h.Environments, env)
	}

	candidates := []string{
		repository.Join(dir, c.Name, "values.yaml"),
		repository.Join(dir, c.Name, "values.yml"),
		repository.Join(dir, "values.yaml"),
		repository.Join(dir, "values.yml"),
	}
	file, content, err := firstFile(ctx, files, candidates...)
	switch {
	case err == nil:
		v, perr := ParseYAML(file, content)
		if perr != nil {
			log.Warn().Err(perr).Str("file", file).Msg("unable to parse helm default values")
			break
		}
		h.DefaultsFile = file
		h.Defaults = v
	case errors.IsNotFound(err):
		log.Debug().Str("helm_dir", dir).Msg("no helm default values file")
	default:
		return nil, err
	}

	return h, nil
}

// Environment returns the named environment.
func (h *Helm) Environment(name string) (HelmEnvironment, bool) {
	for _, e := range h.Environments {
		if e.Name == name {
			return e, true
		}
	}
	return HelmEnvironment{}, false
}

// Names lists the environment names in order.
func (h *Helm) Names() []string {
	names := make([]string, len(h.Environments))
	for i, e := range h.Environments {
		names[i] = e.Name
	}
	return names
}

// IngressHost resolves the ingress host of a values document. The candidates
// are tried in order: generic-service.ingress.host, the last entry of
// generic-service.ingress.hosts, ingress.host, then the last entry of
// ingress.hosts. A hosts entry that is a mapping contributes its host field.
func IngressHost(values value.Value) (string, bool) {
	if values == nil {
		return "", false
	}
	for _, prefix := range []string{"generic-service.ingress", "ingress"} {
		if host, ok := value.String(values, prefix+".host"); ok && host != "" {
			return host, true
		}
		last, ok := value.Lookup(values, prefix+".hosts.-1")
		if !ok {
			continue
		}
		switch n := last.(type) {
		case value.Object:
			if host, ok := value.String(n, "host"); ok && host != "" {
				return host, true
			}
		case value.Scalar:
			if host, ok := n.V.(string); ok && host != "" {
				return host, true
			}
		}
	}
	return "", false
}

// ContainerImage resolves the image repository from image.repository, then
// generic-service.image.repository, in the chart defaults first and then in
// each environment file.
func (h *Helm) ContainerImage() (string, bool) {
	docs := []value.Value{h.Defaults}
	for _, e := range h.Environments {
		docs = append(docs, e.Values)
	}
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		for _, key := range []string{"image.repository", "generic-service.image.repository"} {
			if img, ok := value.String(doc, key); ok && img != "" {
				return img, true
			}
		}
	}
	return "", false
}

// ProductID returns generic-service.productId from the chart defaults.
func (h *Helm) ProductID() (string, bool) {
	v, ok := value.Lookup(h.Defaults, "generic-service.productId")
	if !ok {
		return "", false
	}
	s, ok := v.(value.Scalar)
	if !ok || !value.Truthy(s) {
		return "", false
	}
	return fmt.Sprint(s.V), true
}

// Modsecurity holds the merged modsecurity ingress settings.
type Modsecurity struct {
	Enabled      bool
	AuditEnabled bool
	// Snippet is nil when neither file sets one.
	Snippet *string
}

// Modsecurity merges each setting: the environment value when the key is
// present (false included), else the chart default, else false (or no
// snippet).
func (h *Helm) Modsecurity(env HelmEnvironment) Modsecurity {
	pick := func(key string) (value.Value, bool) {
		for _, doc := range []value.Value{env.Values, h.Defaults} {
			if doc == nil {
				continue
			}
			if v, ok := value.Lookup(doc, "generic-service.ingress."+key); ok {
				return v, true
			}
		}
		return nil, false
	}

	var m Modsecurity
	if v, ok := pick("modsecurity_enabled"); ok {
		m.Enabled = value.Truthy(v)
	}
	if v, ok := pick("modsecurity_audit_enabled"); ok {
		m.AuditEnabled = value.Truthy(v)
	}
	if v, ok := pick("modsecurity_snippet"); ok {
		if s, isScalar := v.(value.Scalar); isScalar && s.V != nil {
			snippet := fmt.Sprint(s.V)
			m.Snippet = &snippet
		}
	}
	return m
}

// AlertSeverity returns generic-prometheus-alerts.alertSeverity from the
// environment file, falling back to the chart defaults.
func (h *Helm) AlertSeverity(env HelmEnvironment) (string, bool) {
	for _, doc := range []value.Value{env.Values, h.Defaults} {
		if doc == nil {
			continue
		}
		v, ok := value.Lookup(doc, "generic-prometheus-alerts.alertSeverity")
		if !ok || !value.Truthy(v) {
			continue
		}
		if s, ok := v.(value.Scalar); ok {
			return fmt.Sprint(s.V), true
		}
	}
	return "", false
}

// AllowList collects every allowlist key of the environment file and the chart
// defaults. The result is keyed by file name; enabled is true when either
// file contributed a non-empty mapping.
func (h *Helm) AllowList(env HelmEnvironment) (map[string]any, bool) {
	collect := func(doc value.Value) value.Object {
		if doc == nil {
			return value.Object{}
		}
		return value.Visit[value.Object](doc, value.KeyCollector{Key: "allowlist"})
	}

	defaultsName := "values.yaml"
	if h.DefaultsFile != "" {
		defaultsName = path.Base(h.DefaultsFile)
	}

	lists := map[string]value.Object{
		env.FileName(): collect(env.Values),
		defaultsName:   collect(h.Defaults),
	}

	out := make(map[string]any, len(lists))
	enabled := false
	for name, list := range lists {
		out[name] = value.Native(list)
		if len(list) > 0 {
			enabled = true
		}
	}
	return out, enabled
}
