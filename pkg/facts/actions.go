package facts

import (
	"context"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/value"
)

// workflowFiles selects the YAML files scanned for action references.
const workflowFiles = ".github/**/*.{yml,yaml}"

// ActionsAllowList matches action references that are not reported.
var ActionsAllowList = []*regexp.Regexp{
	regexp.MustCompile(`^\./\.github`),
	regexp.MustCompile(`^\.github/`),
	regexp.MustCompile(`^ministryofjustice/`),
	regexp.MustCompile(`^docker/`),
	regexp.MustCompile(`^actions/`),
	regexp.MustCompile(`^slackapi/`),
	regexp.MustCompile(`^github/`),
	regexp.MustCompile(`^aquasecurity/`),
	regexp.MustCompile(`^azure/`),
}

// Action is a third party GitHub Action reference.
type Action struct {
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	Version string `json:"version"`
}

// ParseAction splits "owner/repo@version". Sub-paths stay part of Repo.
func ParseAction(ref string) (Action, bool) {
	owner, rest, ok := strings.Cut(ref, "/")
	if !ok || owner == "" {
		return Action{}, false
	}
	repo, version, ok := strings.Cut(rest, "@")
	if !ok || repo == "" || strings.Contains(version, "@") {
		return Action{}, false
	}
	return Action{Owner: owner, Repo: repo, Version: version}, true
}

// NonCoreActions returns every action referenced by `uses:` in a document
// that is not on the allow list.
func NonCoreActions(doc value.Value) []Action {
	var out []Action
	for _, ref := range value.Visit[[]string](doc, value.ScalarCollector{Key: "uses"}) {
		if allowedAction(ref) {
			continue
		}
		if a, ok := ParseAction(ref); ok {
			out = append(out, a)
		}
	}
	return out
}

func allowedAction(ref string) bool {
	for _, re := range ActionsAllowList {
		if re.MatchString(ref) {
			return true
		}
	}
	return false
}

// RepositoryActions scans every workflow and action definition below .github.
// A repository without a .github directory has no actions.
func RepositoryActions(ctx context.Context, files repository.Files) ([]Action, error) {
	log := logging.FromContext(ctx)
	entries, err := repository.Walk(ctx, files, ".github")
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var actions []Action
	for _, e := range entries {
		if ok, _ := doublestar.Match(workflowFiles, e.Path); !ok {
			continue
		}
		doc, err := ReadYAML(ctx, files, e.Path)
		if err != nil {
			log.Warn().Err(err).Str("file", e.Path).Msg("unable to parse workflow file")
			continue
		}
		actions = append(actions, NonCoreActions(doc)...)
	}
	return actions, nil
}
