package catalogue

import (
	"encoding/json"
)

// Record carries the identifiers Strapi adds to every document.
type Record struct {
	ID         int    `json:"id,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
}

// Commit is the latest_commit component field.
type Commit struct {
	SHA      string `json:"sha"`
	DateTime string `json:"date_time"`
}

// Component is a component as listed with its commit, product and
// environments populated.
type Component struct {
	Record
	Name           string `json:"name"`
	GithubRepo     string `json:"github_repo"`
	PartOfMonorepo bool   `json:"part_of_monorepo"`
	PathToProject  string `json:"path_to_project"`
	PathToHelmDir  string `json:"path_to_helm_dir"`
	Archived       bool   `json:"archived"`
	Language       string `json:"language"`
	Description    string `json:"description"`

	TeamsAdmin    []string `json:"github_project_teams_admin"`
	TeamsMaintain []string `json:"github_project_teams_maintain"`
	TeamsWrite    []string `json:"github_project_teams_write"`

	BranchProtectionRestrictedTeams []string `json:"github_project_branch_protection_restricted_teams"`

	AppInsightsCloudRoleName string         `json:"app_insights_cloud_role_name"`
	Versions                 map[string]any `json:"versions"`

	LatestCommit *Commit       `json:"latest_commit"`
	Product      *Product      `json:"product"`
	Envs         []Environment `json:"envs"`
}

// Repo is the GitHub repository backing the component.
func (c Component) Repo() string {
	if c.GithubRepo != "" {
		return c.GithubRepo
	}
	return c.Name
}

// EnvNames lists the names of the stored environments.
func (c Component) EnvNames() []string {
	names := make([]string, 0, len(c.Envs))
	for _, e := range c.Envs {
		names = append(names, e.Name)
	}
	return names
}

// Env returns the stored environment with the given name.
func (c Component) Env(name string) (Environment, bool) {
	for _, e := range c.Envs {
		if e.Name == name {
			return e, true
		}
	}
	return Environment{}, false
}

// Teams lists every team referenced by the component's access lists.
func (c Component) Teams() []string {
	var out []string
	out = append(out, c.TeamsAdmin...)
	out = append(out, c.TeamsMaintain...)
	return append(out, c.TeamsWrite...)
}

// Environment is a stored environment. Raw keeps every attribute as decoded
// so that change detection can compare fields the typed view omits.
type Environment struct {
	Record
	Name      string `json:"name"`
	Type      string `json:"type"`
	Namespace string `json:"namespace"`
	URL       string `json:"url"`

	Raw map[string]any `json:"-"`
}

// UnmarshalJSON decodes both the typed fields and Raw.
func (e *Environment) UnmarshalJSON(b []byte) error {
	type plain Environment
	if err := json.Unmarshal(b, (*plain)(e)); err != nil {
		return err
	}
	return json.Unmarshal(b, &e.Raw)
}

// Nullable is a field that is either omitted, written as null, or written
// with a value. The zero value is omitted when tagged omitzero.
type Nullable[T any] struct {
	set   bool
	value *T
}

// Null returns a Nullable written as JSON null.
func Null[T any]() Nullable[T] {
	return Nullable[T]{set: true}
}

// Some returns a Nullable holding v.
func Some[T any](v T) Nullable[T] {
	return Nullable[T]{set: true, value: &v}
}

// NullableFrom returns Some(*p) or Null when p is nil.
func NullableFrom[T any](p *T) Nullable[T] {
	if p == nil {
		return Null[T]()
	}
	return Some(*p)
}

// IsZero reports whether the field is omitted.
func (n Nullable[T]) IsZero() bool { return !n.set }

// Get returns the value and whether one is held.
func (n Nullable[T]) Get() (T, bool) {
	if n.value == nil {
		var zero T
		return zero, false
	}
	return *n.value, true
}

// MarshalJSON implements json.Marshaler.
func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if n.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.value)
}

// EnvironmentData is the write payload for an environment. Nil fields are
// left out so unknown facts never overwrite stored values.
type EnvironmentData struct {
	Name         string  `json:"name"`
	Type         *string `json:"type,omitempty"`
	Namespace    *string `json:"namespace,omitempty"`
	NS           *string `json:"ns,omitempty"`
	URL          *string `json:"url,omitempty"`
	HealthPath   *string `json:"health_path,omitempty"`
	InfoPath     *string `json:"info_path,omitempty"`
	SwaggerDocs  *string `json:"swagger_docs,omitempty"`
	IncludeInSAR *bool   `json:"include_in_subject_access_requests,omitempty"`

	IPAllowList        map[string]any `json:"ip_allow_list,omitempty"`
	IPAllowListEnabled *bool          `json:"ip_allow_list_enabled,omitempty"`

	ModsecurityEnabled      *bool            `json:"modsecurity_enabled,omitempty"`
	ModsecurityAuditEnabled *bool            `json:"modsecurity_audit_enabled,omitempty"`
	ModsecuritySnippet      Nullable[string] `json:"modsecurity_snippet,omitzero"`

	AlertSeverityLabel *string `json:"alert_severity_label,omitempty"`
	AlertsSlackChannel *string `json:"alerts_slack_channel,omitempty"`
	Monitor            *bool   `json:"monitor,omitempty"`

	Component *string `json:"component,omitempty"`
}

// Fields returns the payload as a generic map, the shape stored records
// decode into.
func (d EnvironmentData) Fields() (map[string]any, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	return out, json.Unmarshal(b, &out)
}

// ComponentUpdate is the write payload for a component. Nil fields are left
// out of the request.
type ComponentUpdate struct {
	Archived                *bool     `json:"archived,omitempty"`
	Language                *string   `json:"language,omitempty"`
	Description             *string   `json:"description,omitempty"`
	GithubProjectVisibility *string   `json:"github_project_visibility,omitempty"`
	LatestCommit            *Commit   `json:"latest_commit,omitempty"`
	Frontend                *bool     `json:"frontend,omitempty"`
	API                     *bool     `json:"api,omitempty"`
	Topics                  *[]string `json:"github_topics,omitempty"`

	TeamsAdmin                      *[]string `json:"github_project_teams_admin,omitempty"`
	TeamsMaintain                   *[]string `json:"github_project_teams_maintain,omitempty"`
	TeamsWrite                      *[]string `json:"github_project_teams_write,omitempty"`
	BranchProtectionRestrictedTeams *[]string `json:"github_project_branch_protection_restricted_teams,omitempty"`
	EnforceAdminsEnabled            *bool     `json:"github_enforce_admins_enabled,omitempty"`
	DisabledWorkflows               *[]string `json:"github_disabled_workflows,omitempty"`

	Versions                 map[string]any `json:"versions,omitzero"`
	ContainerImage           *string        `json:"container_image,omitempty"`
	Product                  *string        `json:"product,omitempty"`
	AppInsightsCloudRoleName *string        `json:"app_insights_cloud_role_name,omitempty"`

	TrivyScanSummary           any            `json:"trivy_scan_summary,omitempty"`
	TrivyLastCompletedScanDate *string        `json:"trivy_last_completed_scan_date,omitempty"`
	CodescanningSummary        any            `json:"codescanning_summary,omitempty"`
	StandardsCompliance        map[string]any `json:"standards_compliance,omitempty"`
	SecuritySettings           map[string]any `json:"security_settings,omitempty"`
	NonCoreActions             any            `json:"non_core_actions,omitempty"`

	SlackChannelSecurityScansNotify  *string `json:"slack_channel_security_scans_notify,omitempty"`
	SlackChannelProdReleaseNotify    *string `json:"slack_channel_prod_release_notify,omitempty"`
	SlackChannelNonprodReleaseNotify *string `json:"slack_channel_nonprod_release_notify,omitempty"`
}

// Empty reports whether the update carries no fields.
func (u ComponentUpdate) Empty() bool {
	b, err := json.Marshal(u)
	return err == nil && string(b) == "{}"
}

// GithubTeam is a github-teams record.
type GithubTeam struct {
	Record
	GithubTeamData
}

// GithubTeamData is the write payload of a github-teams record.
type GithubTeamData struct {
	GithubTeamID     int64    `json:"github_team_id"`
	TeamName         string   `json:"team_name"`
	ParentTeamName   string   `json:"parent_team_name"`
	TeamDesc         string   `json:"team_desc"`
	Members          []string `json:"members"`
	TerraformManaged bool     `json:"terraform_managed"`
}

// Product is a products record.
type Product struct {
	Record
	PID              string `json:"p_id"`
	Name             string `json:"name"`
	SlackChannelID   string `json:"slack_channel_id"`
	SlackChannelName string `json:"slack_channel_name"`
}

// ScheduledJob is a scheduled-jobs record.
type ScheduledJob struct {
	Record
	Name              string   `json:"name"`
	LastScheduledRun  string   `json:"last_scheduled_run,omitempty"`
	LastSuccessfulRun string   `json:"last_successful_run,omitempty"`
	Result            string   `json:"result,omitempty"`
	ErrorDetails      []string `json:"error_details,omitempty"`
}

// Namespace is a namespaces record.
type Namespace struct {
	Record
	Name string `json:"name"`
}
