// Package job provides the commands that run the discovery jobs.
package job

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/appcontext"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/cmd/output"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/jobs"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

type help struct {
	short   string
	long    string
	example string
}

var helps = map[jobs.Kind]help{
	jobs.Discovery: {
		short: "Discover repositories, environments and products of every component",
		long: `Discovery reads every component in the service catalogue, inspects its
GitHub repository, and writes back repository metadata, helm environments,
versions, trivy results and alert channels. Products get their Slack channel
names refreshed and duplicate Application Insights cloud role names are
reported.

Without --force only components whose main branch or helm configuration
changed since the last run are fully processed.`,
		example: `  hmpps-github-discovery discovery           # Incremental run
  hmpps-github-discovery discovery --force   # Full run`,
	},
	jobs.Component: {
		short: "Discover a single component",
		long: `Component runs the full discovery path for one component. No scheduled
job record is written and no summary is sent.`,
		example: `  hmpps-github-discovery component hmpps-template-kotlin`,
	},
	jobs.Security: {
		short: "Collect code scanning alerts of every component",
	},
	jobs.Teams: {
		short: "Synchronise GitHub teams into the service catalogue",
		long: `Teams upserts every team defined in Terraform or referenced by a
component, removes teams deleted from GitHub together with their component
references, and deletes Terraform managed teams no longer defined there.

With --serve the job repeats every REFRESH_INTERVAL_HOURS and a health
endpoint is served on HEALTH_ADDR.`,
		example: `  hmpps-github-discovery teams
  hmpps-github-discovery teams --serve`,
	},
	jobs.Products: {
		short: "Refresh the Slack channel names of products",
	},
	jobs.Workflows: {
		short: "Collect non-core GitHub Actions used by every component",
	},
}

// NewCommand creates the command running kind.
func NewCommand(app appcontext.Interface, kind jobs.Kind) *cobra.Command {
	h := helps[kind]
	cmd := &cobra.Command{
		Use:     kind.String(),
		GroupID: "jobs",
		Short:   h.short,
		Long:    h.long,
		Example: h.example,
		Args:    cobra.NoArgs,
	}

	var force, serve bool
	switch kind {
	case jobs.Discovery:
		cmd.Flags().BoolVarP(&force, "force", "f", false, "process every component in full")
	case jobs.Component:
		cmd.Use = "component <component_name>"
		cmd.Args = cobra.ExactArgs(1)
	case jobs.Teams:
		cmd.Flags().BoolVar(&serve, "serve", false, "repeat the job and serve a health endpoint")
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		req := jobs.Request{Kind: kind, Force: force}
		if kind == jobs.Component {
			req.Component = args[0]
		}
		if serve {
			return Serve(cmd.Context(), app, cmd.OutOrStdout(), req)
		}
		return Run(cmd.Context(), app, cmd.OutOrStdout(), req)
	}
	return cmd
}

// Run runs one job and writes its report to w. The report is written even
// when the job fails.
func Run(ctx context.Context, app appcontext.Interface, w io.Writer, req jobs.Request) error {
	format, err := output.ParseFormat(app.OutputFormat())
	if err != nil {
		return err
	}
	runner, err := app.Runner()
	if err != nil {
		return err
	}

	ctx = logging.WithLogger(ctx, app.Logger())
	report, runErr := runner.Run(ctx, req)
	if report != nil {
		if err := output.FormatReport(w, report, output.DetectFormat(format)); err != nil {
			return err
		}
	}
	return runErr
}
