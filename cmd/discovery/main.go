// Package main provides the entry point for the hmpps-github-discovery CLI.
package main

import (
	"context"
	"os"

	"github.com/ministryofjustice/hmpps-github-discovery/cmd/discovery/app"
)

// Version information populated by the release build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	application, err := app.New(version, commit, date, builtBy)
	if err != nil {
		app.ExitOnError(err)
	}

	// Create context with signal handling for graceful shutdown
	ctx, cancel := app.ContextWithSignals(context.Background())
	defer cancel()

	if err := application.Execute(ctx, os.Args[1:]); err != nil {
		cancel()
		app.ExitOnError(err)
	}
}
