package facts

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
)

var npmrcLine = regexp.MustCompile(`^\s*([a-zA-Z0-9_-]+)\s*=\s*(.+?)\s*$`)

// ParseNpmrc reads "key = value" lines, skipping blanks and comments.
func ParseNpmrc(content []byte) map[string]string {
	out := map[string]string{}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if m := npmrcLine.FindStringSubmatch(line); m != nil {
			out[m[1]] = m[2]
		}
	}
	return out
}

// NpmIgnoreScripts reports the ignore-scripts setting of a JavaScript or
// TypeScript repository's .npmrc. ok is false when the setting is not
// present or not a boolean.
func NpmIgnoreScripts(ctx context.Context, files repository.Files, language string) (ignore bool, ok bool, err error) {
	if language != "JavaScript" && language != "TypeScript" {
		return false, false, nil
	}
	content, err := files.File(ctx, ".npmrc")
	if errors.IsNotFound(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	switch strings.ToLower(ParseNpmrc(content)["ignore-scripts"]) {
	case "true":
		return true, true, nil
	case "false":
		return false, true, nil
	}
	return false, false, nil
}
