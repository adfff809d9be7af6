package facts

import (
	"context"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

// AlertRouting resolves an alert severity label to a Slack channel.
type AlertRouting interface {
	ChannelForSeverity(label string) (string, bool)
}

// AlertBinding is the alerting configuration of one environment.
type AlertBinding struct {
	SeverityLabel string
	// Channel is nil when no receiver matches the label.
	Channel *string
}

// ResolveAlerts binds an environment to its alert channel. It reports false
// when routing is nil (Alertmanager unavailable) or no severity label is set,
// in which case nothing should be written.
func ResolveAlerts(ctx context.Context, h *Helm, env HelmEnvironment, routing AlertRouting) (AlertBinding, bool) {
	if routing == nil {
		return AlertBinding{}, false
	}
	label, ok := h.AlertSeverity(env)
	if !ok {
		logging.FromContext(ctx).Info().Str("environment", env.Name).Msg("alert severity label not found in values files")
		return AlertBinding{}, false
	}

	binding := AlertBinding{SeverityLabel: label}
	if channel, ok := routing.ChannelForSeverity(label); ok {
		binding.Channel = &channel
	} else {
		logging.FromContext(ctx).Warn().
			Str("environment", env.Name).
			Str("severity", label).
			Msg("alerts slack channel not found for severity label")
	}
	return binding, true
}
