package jobs

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/catalogue"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/github"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/constants"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/dispatch"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/facts"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

// Team flags.
const (
	FlagTeamAdded             = "team_added"
	FlagTeamUpdated           = "team_updated"
	FlagTeamDeleted           = "team_deleted"
	FlagTeamFailure           = "team_failure"
	FlagTeamReferencesRemoved = "team_references_removed"
	FlagTerraformManaged      = "terraform_managed"
)

// terraformNotice is appended by Terraform to the description of the teams
// it manages.
const terraformNotice = "• This team is managed by Terraform, see https://github.com/ministryofjustice/hmpps-github-teams - DO NOT UPDATE MANUALLY!"

var teamDataOptions = cmp.Options{
	cmpopts.EquateEmpty(),
	cmpopts.SortSlices(func(a, b string) bool { return a < b }),
}

// equalTeamData compares team records ignoring member order.
func equalTeamData(a, b catalogue.GithubTeamData) bool {
	return cmp.Equal(a, b, teamDataOptions)
}

// teamSync is the state of one teams run.
type teamSync struct {
	*run
	stored    map[string]catalogue.GithubTeam
	terraform map[string]bool
	comps     []catalogue.Component
	results   *dispatch.Results
	// found holds the teams GitHub still has.
	found map[string]bool
}

// teams syncs the github-teams table with GitHub. Every team declared in
// Terraform or referenced by a component is looked up: teams GitHub no
// longer has are deleted along with their component references, the rest
// are upserted. Terraform managed teams dropped from Terraform are deleted
// last.
func (x *run) teams(ctx context.Context) error {
	log := logging.FromContext(ctx)
	s := &teamSync{
		run:     x,
		stored:  map[string]catalogue.GithubTeam{},
		results: &dispatch.Results{},
		found:   map[string]bool{},
	}

	log.Info().Msg("retrieving github teams data")
	stored, err := x.svc.Catalogue.Teams(ctx)
	if err != nil {
		log.Error().Err(err).Msg("unable to list github teams from the service catalogue")
		return nil
	}
	for _, t := range stored {
		s.stored[t.TeamName] = t
	}

	log.Info().Msg("getting github team references in components")
	s.comps, _ = x.components(ctx)

	log.Info().Msg("retrieving github teams terraform data")
	tf, tfKnown := s.terraformTeams(ctx)
	s.terraform = make(map[string]bool, len(tf))
	for _, t := range tf {
		s.terraform[t.Name] = true
	}

	for _, name := range s.names() {
		s.results.Add(name, s.sync(logging.WithField(ctx, "team", name), name))
	}

	if tfKnown {
		s.prune(ctx, stored)
	} else {
		log.Warn().Msg("terraform team definitions unavailable, not removing terraform managed teams")
	}

	x.report.Results = s.results.All()
	x.report.Summary = teamsSummary(x.report)
	x.notify(ctx, x.report.Summary)
	return nil
}

// terraformTeams reads the Terraform team definitions. The second result is
// false when they could not be read.
func (s *teamSync) terraformTeams(ctx context.Context) ([]facts.TerraformTeam, bool) {
	log := logging.FromContext(ctx)
	repo, err := s.svc.GitHub.Repository(ctx, constants.TeamsRepo)
	if err != nil {
		log.Error().Err(err).Msg("error fetching teams data from github")
		return nil, false
	}
	content, err := repo.File(ctx, constants.TeamsTerraformPath)
	if err != nil {
		log.Error().Err(err).Msg("error fetching teams data from github")
		return nil, false
	}
	teams := facts.ParseTerraformTeams(string(content))
	log.Info().Int("teams", len(teams)).Msg("number of teams in terraform file")
	return teams, true
}

// names is every team in Terraform or referenced by a component access list.
func (s *teamSync) names() []string {
	set := map[string]bool{}
	for name := range s.terraform {
		set[name] = true
	}
	for _, c := range s.comps {
		for _, name := range c.Teams() {
			if name != "" {
				set[name] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *teamSync) sync(ctx context.Context, name string) dispatch.Flags {
	log := logging.FromContext(ctx)
	flags := dispatch.Flags{}

	team, err := s.svc.GitHub.Team(ctx, name)
	switch {
	case errors.IsNotFound(err):
		log.Info().Msg("team not found in github, deleting from the service catalogue")
		s.remove(ctx, name, flags)
		return flags
	case err != nil:
		log.Error().Err(err).Msg("unable to get team details from github")
		flags.Set(FlagTeamFailure)
		return flags
	}
	s.found[name] = true

	data, err := s.teamData(ctx, name, team)
	if err != nil {
		log.Error().Err(err).Msg("unable to list github team members")
		flags.Set(FlagTeamFailure)
		return flags
	}
	if data.TerraformManaged {
		flags.Set(FlagTerraformManaged)
	}

	stored, ok := s.stored[name]
	if !ok {
		log.Info().Msg("team not found, adding to the service catalogue")
		if _, err := s.svc.Catalogue.AddTeam(ctx, data); err != nil {
			log.Error().Err(err).Msg("unable to add team to the service catalogue")
			flags.Set(FlagTeamFailure)
			return flags
		}
		flags.Set(FlagTeamAdded)
		return flags
	}

	if equalTeamData(stored.GithubTeamData, data) {
		return flags
	}
	log.Info().Str("diff", cmp.Diff(stored.GithubTeamData, data, teamDataOptions)).Msg("updating team in the service catalogue")
	if err := s.svc.Catalogue.UpdateTeam(ctx, stored.DocumentID, data); err != nil {
		log.Error().Err(err).Msg("unable to update team in the service catalogue")
		flags.Set(FlagTeamFailure)
		return flags
	}
	flags.Set(FlagTeamUpdated)
	return flags
}

func (s *teamSync) teamData(ctx context.Context, name string, team github.Team) (catalogue.GithubTeamData, error) {
	members, err := s.svc.GitHub.TeamMembers(ctx, name)
	if err != nil {
		return catalogue.GithubTeamData{}, err
	}
	if members == nil {
		members = []string{}
	}
	return catalogue.GithubTeamData{
		GithubTeamID:     team.ID,
		TeamName:         name,
		ParentTeamName:   team.Parent,
		TeamDesc:         strings.TrimSpace(strings.ReplaceAll(team.Description, terraformNotice, "")),
		Members:          members,
		TerraformManaged: s.terraform[name],
	}, nil
}

// remove deletes a team GitHub no longer has, then strips it from every
// component that still references it.
func (s *teamSync) remove(ctx context.Context, name string, flags dispatch.Flags) {
	log := logging.FromContext(ctx)
	if stored, ok := s.stored[name]; ok {
		if err := s.svc.Catalogue.DeleteTeam(ctx, stored.DocumentID); err != nil {
			log.Error().Err(err).Msg("failed to delete team from the service catalogue")
			flags.Set(FlagTeamFailure)
			return
		}
		delete(s.stored, name)
		log.Info().Msg("team deleted from the service catalogue")
		flags.Set(FlagTeamDeleted)
	}
	s.removeReferences(ctx, name)
	flags.Set(FlagTeamReferencesRemoved)
}

func (s *teamSync) removeReferences(ctx context.Context, name string) {
	log := logging.FromContext(ctx)
	log.Info().Msg("removing team from all components in the service catalogue")
	for i := range s.comps {
		c := &s.comps[i]
		var u catalogue.ComponentUpdate
		for _, list := range []struct {
			teams *[]string
			field **[]string
		}{
			{&c.TeamsAdmin, &u.TeamsAdmin},
			{&c.TeamsMaintain, &u.TeamsMaintain},
			{&c.TeamsWrite, &u.TeamsWrite},
			{&c.BranchProtectionRestrictedTeams, &u.BranchProtectionRestrictedTeams},
		} {
			if !slices.Contains(*list.teams, name) {
				continue
			}
			kept := slices.DeleteFunc(slices.Clone(*list.teams), func(t string) bool { return t == name })
			*list.teams = kept
			*list.field = &kept
		}
		if u.Empty() {
			continue
		}
		if err := s.svc.Catalogue.UpdateComponent(ctx, c.DocumentID, u); err != nil {
			log.Error().Err(err).Str("component", c.Name).Msg("failed to remove team from component")
			continue
		}
		log.Info().Str("component", c.Name).Msg("team removed from component")
	}
}

// prune deletes Terraform managed teams that Terraform no longer declares
// and no component references.
func (s *teamSync) prune(ctx context.Context, stored []catalogue.GithubTeam) {
	log := logging.FromContext(ctx)
	log.Info().Msg("checking for teams to delete from the service catalogue")
	for _, t := range stored {
		if !t.TerraformManaged || s.terraform[t.TeamName] || s.found[t.TeamName] {
			continue
		}
		if _, ok := s.stored[t.TeamName]; !ok {
			continue
		}
		tlog := log.With().Str("team", t.TeamName).Logger()
		tlog.Info().Msg("terraform managed team is no longer in terraform, deleting from the service catalogue")
		if err := s.svc.Catalogue.DeleteTeam(ctx, t.DocumentID); err != nil {
			tlog.Error().Err(err).Msg("failed to delete team from the service catalogue")
			continue
		}
		delete(s.stored, t.TeamName)
		s.results.Add(t.TeamName, dispatch.Flags{FlagTeamDeleted: true})
	}
}
