package facts

import (
	"encoding/json"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
)

// BootstrapProjectsPath is the legacy project definition file.
const BootstrapProjectsPath = "projects.json"

// BootstrapNamespace is one legacy CircleCI context mapping.
type BootstrapNamespace struct {
	EnvName   string `json:"env_name"`
	Namespace string `json:"namespace"`
}

// BootstrapProject is one entry of projects.json.
type BootstrapProject struct {
	GithubRepoName string               `json:"github_repo_name"`
	Namespaces     []BootstrapNamespace `json:"circleci_context_k8s_namespaces"`
}

// ParseBootstrapProjects indexes projects.json by repository name.
func ParseBootstrapProjects(content []byte) (map[string]BootstrapProject, error) {
	var projects []BootstrapProject
	if err := json.Unmarshal(content, &projects); err != nil {
		return nil, errors.WrapParse("json", BootstrapProjectsPath, err)
	}
	out := make(map[string]BootstrapProject, len(projects))
	for _, p := range projects {
		if p.GithubRepoName != "" {
			out[p.GithubRepoName] = p
		}
	}
	return out, nil
}
