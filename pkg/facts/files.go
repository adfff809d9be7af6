package facts

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/value"
)

// ReadYAML fetches and parses a YAML file. Tab indentation, which some Helm
// values files contain, is replaced with two spaces before parsing.
func ReadYAML(ctx context.Context, files repository.Files, path string) (value.Value, error) {
	content, err := files.File(ctx, path)
	if err != nil {
		return nil, err
	}
	return ParseYAML(path, content)
}

// ParseYAML parses YAML content into a Value.
func ParseYAML(path string, content []byte) (value.Value, error) {
	text := strings.ReplaceAll(string(content), "\t", "  ")
	var raw any
	if err := yaml.Unmarshal([]byte(text), &raw); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return value.From(raw), nil
}

// ReadJSON fetches and parses a JSON file.
func ReadJSON(ctx context.Context, files repository.Files, path string) (value.Value, error) {
	content, err := files.File(ctx, path)
	if err != nil {
		return nil, err
	}
	var raw any
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, errors.WrapParse("json", path, err)
	}
	return value.From(raw), nil
}

// firstFile returns the first of paths that exists. A not found error is
// returned only when none exist; any other error stops the search.
func firstFile(ctx context.Context, files repository.Files, paths ...string) (string, []byte, error) {
	for _, p := range paths {
		content, err := files.File(ctx, p)
		if err == nil {
			return p, content, nil
		}
		if !errors.IsNotFound(err) {
			return p, nil, err
		}
	}
	return "", nil, errors.NewNotFoundError("file", strings.Join(paths, ", "))
}
