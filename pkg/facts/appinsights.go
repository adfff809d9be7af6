package facts

import (
	"context"
	"regexp"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/value"
)

var safeRoleName = regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)

// AppInsightsRoleName derives the Application Insights cloud role name. JVM
// projects read role.name from applicationinsights.json; JavaScript and
// TypeScript projects use the package.json name when it is a safe identifier.
// ok is false when no role name applies.
func AppInsightsRoleName(ctx context.Context, files repository.Files, language, projectDir string) (string, bool, error) {
	var path, key string
	switch language {
	case "Kotlin", "Java":
		path, key = repository.Join(projectDir, "applicationinsights.json"), "role.name"
	case "JavaScript", "TypeScript":
		path, key = repository.Join(projectDir, "package.json"), "name"
	default:
		return "", false, nil
	}

	doc, err := ReadJSON(ctx, files, path)
	if errors.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	name, ok := value.String(doc, key)
	if !ok || name == "" {
		return "", false, nil
	}
	if key == "name" && !safeRoleName.MatchString(name) {
		return "", false, nil
	}
	return name, true, nil
}
