package github

import (
	"context"

	gh "github.com/google/go-github/v66/github"
)

// Team is an organisation team.
type Team struct {
	ID          int64
	Slug        string
	Name        string
	Description string
	Parent      string
}

// Team fetches an organisation team by slug. A missing team is reported as
// errors.ErrNotFound.
func (c *Client) Team(ctx context.Context, slug string) (Team, error) {
	api, err := c.client()
	if err != nil {
		return Team{}, err
	}
	t, resp, err := api.Teams.GetTeamBySlug(ctx, c.cfg.Org, slug)
	c.observe(resp)
	if err != nil {
		return Team{}, wrap(err, "orgs/"+c.cfg.Org+"/teams/"+slug)
	}
	return Team{
		ID:          t.GetID(),
		Slug:        t.GetSlug(),
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parent:      t.GetParent().GetName(),
	}, nil
}

// TeamMembers lists the logins of a team's members.
func (c *Client) TeamMembers(ctx context.Context, slug string) ([]string, error) {
	api, err := c.client()
	if err != nil {
		return nil, err
	}
	users, err := paginate(c, func(opts gh.ListOptions) ([]*gh.User, *gh.Response, error) {
		return api.Teams.ListTeamMembersBySlug(ctx, c.cfg.Org, slug, &gh.TeamListTeamMembersOptions{ListOptions: opts})
	})
	if err != nil {
		return nil, wrap(err, "orgs/"+c.cfg.Org+"/teams/"+slug+"/members")
	}
	members := make([]string, 0, len(users))
	for _, u := range users {
		members = append(members, u.GetLogin())
	}
	return members, nil
}
