package facts

import (
	"fmt"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/value"
)

// Standard is one repository compliance check: the attribute at Path must
// equal Expected (or be at least Expected when both are numeric). A nil
// Expected passes when the attribute is truthy.
type Standard struct {
	Name     string
	Path     string
	Expected any
}

// Standards are the checks recorded in standards_compliance.
var Standards = []Standard{
	{Name: "default_branch_main", Path: "default_branch", Expected: "main"},
	{Name: "repository_description", Path: "description"},
	{Name: "secret_scanning", Path: "security_and_analysis.secret_scanning.status", Expected: "enabled"},
	{Name: "secret_scanning_push_protection", Path: "security_and_analysis.secret_scanning_push_protection.status", Expected: "enabled"},
}

// Evaluate checks s against a repository snapshot.
func (s Standard) Evaluate(snapshot value.Value) bool {
	v, ok := value.Lookup(snapshot, s.Path)
	if !ok {
		return false
	}
	if s.Expected == nil {
		return value.Truthy(v)
	}
	scalar, ok := v.(value.Scalar)
	if !ok {
		return false
	}
	if got, ok := value.Number(scalar); ok {
		if want, ok := value.Number(value.Scalar{V: s.Expected}); ok {
			return got >= want
		}
	}
	return fmt.Sprint(scalar.V) == fmt.Sprint(s.Expected)
}

// Compliance evaluates every standard against the snapshot.
func Compliance(snapshot value.Value, standards []Standard) map[string]bool {
	out := make(map[string]bool, len(standards))
	for _, s := range standards {
		out[s.Name] = s.Evaluate(snapshot)
	}
	return out
}
