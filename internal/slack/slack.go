// Package slack posts run summaries and alerts, and resolves channel names
// for the products job.
package slack

import (
	"context"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/constants"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

const service = "slack"

// Config configures a Client. Either channel may be empty, in which case
// messages for it are dropped.
type Config struct {
	Token         string
	NotifyChannel string
	AlertChannel  string
	// APIURL overrides the Web API base URL. It must end in a slash.
	APIURL string `validate:"omitempty,url"`
	// RequestsPerSecond paces Web API calls. Zero uses the default.
	RequestsPerSecond float64
}

// Client wraps the Slack Web API. Calls are paced to stay inside Slack's
// per-method rate tiers.
type Client struct {
	api     *slack.Client
	cfg     Config
	limiter *rate.Limiter
}

// New creates a Slack client.
func New(cfg Config) *Client {
	var opts []slack.Option
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = constants.SlackRequestsPerSecond
	}
	return &Client{
		api:     slack.New(cfg.Token, opts...),
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Enabled reports whether a token is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.Token != ""
}

// TestConnection checks the token.
func (c *Client) TestConnection(ctx context.Context) error {
	if !c.Enabled() {
		return errors.NewConfigError(service, "no bot token configured", nil)
	}
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return wrap(err, "auth.test")
	}
	logging.FromContext(ctx).Info().Str("team", resp.Team).Str("user", resp.User).Msg("connected to the Slack API")
	return nil
}

// Notify posts to the notification channel.
func (c *Client) Notify(ctx context.Context, text string) error {
	return c.post(ctx, c.cfg.NotifyChannel, text)
}

// Alert posts to the alert channel.
func (c *Client) Alert(ctx context.Context, text string) error {
	return c.post(ctx, c.cfg.AlertChannel, text)
}

func (c *Client) post(ctx context.Context, channel, text string) error {
	log := logging.FromContext(ctx)
	if !c.Enabled() || channel == "" {
		log.Debug().Str("text", text).Msg("slack channel not configured, message not sent")
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, _, err := c.api.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return wrap(err, "chat.postMessage")
	}
	log.Debug().Str("channel", channel).Msg("slack message sent")
	return nil
}

// ChannelName returns the name of a channel.
func (c *Client) ChannelName(ctx context.Context, id string) (string, error) {
	if !c.Enabled() {
		return "", errors.NewConfigError(service, "no bot token configured", nil)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	ch, err := c.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: id})
	if err != nil {
		return "", wrap(err, "conversations.info")
	}
	return ch.Name, nil
}

// wrap maps Slack errors onto the shared taxonomy.
func wrap(err error, method string) error {
	var rateErr *slack.RateLimitedError
	if errors.As(err, &rateErr) {
		return &errors.APIError{Service: service, StatusCode: 429, Message: rateErr.Error(), Endpoint: method, Err: err}
	}
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		switch slackErr.Err {
		case "channel_not_found":
			return errors.NewNotFoundError("slack channel", method)
		case "invalid_auth", "not_authed", "token_revoked":
			return &errors.APIError{Service: service, StatusCode: 401, Message: slackErr.Err, Endpoint: method, Err: err}
		}
		return &errors.APIError{Service: service, StatusCode: 400, Message: slackErr.Err, Endpoint: method, Err: err}
	}
	return errors.WrapAPI(service, method, err)
}
