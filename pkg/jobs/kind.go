package jobs

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
)

// Kind identifies a job.
type Kind int

// Job kinds.
const (
	Discovery Kind = iota
	Component
	Security
	Teams
	Products
	Workflows
)

var kindNames = [...]string{
	Discovery: "discovery",
	Component: "component",
	Security:  "security",
	Teams:     "teams",
	Products:  "products",
	Workflows: "workflows",
}

// Kinds lists every job kind.
func Kinds() []Kind {
	return []Kind{Discovery, Component, Security, Teams, Products, Workflows}
}

func (k Kind) valid() bool {
	return k >= 0 && int(k) < len(kindNames)
}

// String returns the command name of the kind.
func (k Kind) String() string {
	if !k.valid() {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind parses a command name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, errors.NewValidationError("job", s, "unknown job kind")
}

// JobName is the scheduled-jobs record name. Discovery runs are recorded
// separately for full (forced) and incremental runs.
func (k Kind) JobName(force bool) string {
	switch k {
	case Discovery:
		if force {
			return "hmpps-github-discovery-full"
		}
		return "hmpps-github-discovery-incremental"
	case Teams:
		return "hmpps-github-teams-discovery"
	default:
		return "hmpps-github-discovery-" + k.String()
	}
}

// Title is the human readable job name used in summaries and alerts, for
// example "Github Security Discovery".
func (k Kind) Title() string {
	name := "github discovery"
	if k != Discovery {
		name = "github " + k.String() + " discovery"
	}
	return cases.Title(language.English).String(name)
}

// requirements lists the upstreams a kind uses. GitHub and CircleCI are
// fatal when unreachable. Without Alertmanager alert channels are left
// unknown, and products keep their channel names when Slack lookups are off.
type requirements struct {
	github   bool
	circleci bool
	alerts   bool
	channels bool
}

var kindRequirements = [...]requirements{
	Discovery: {github: true, circleci: true, alerts: true, channels: true},
	Component: {github: true, circleci: true, alerts: true},
	Security:  {github: true},
	Teams:     {github: true},
	Products:  {channels: true},
	Workflows: {github: true},
}

// records reports whether runs of the kind update a scheduled-jobs record.
func (k Kind) records() bool {
	return k != Component
}
