package facts

import "regexp"

var (
	tfParentTeams = regexp.MustCompile(`(?s)parent_teams\s*=\s*\[(.*?)\]`)
	tfSubTeams    = regexp.MustCompile(`(?s)sub_teams\s*=\s*\[(.*?)\]`)
	tfTeam        = regexp.MustCompile(`\{\s*name\s*=\s*"([^"]+)"\s*parent\s*=\s*"([^"]+)"\s*description\s*=\s*"([^"]+)"\s*\}`)
)

// TerraformTeam is a team declared in the Terraform team definitions.
type TerraformTeam struct {
	Name        string
	Parent      string
	Description string
}

// ParseTerraformTeams extracts the parent_teams and sub_teams declarations.
func ParseTerraformTeams(content string) []TerraformTeam {
	var teams []TerraformTeam
	for _, block := range []*regexp.Regexp{tfParentTeams, tfSubTeams} {
		m := block.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		for _, t := range tfTeam.FindAllStringSubmatch(m[1], -1) {
			teams = append(teams, TerraformTeam{Name: t[1], Parent: t[2], Description: t[3]})
		}
	}
	return teams
}
