// Package alertmanager reads the Alertmanager routing configuration used to
// map an alert severity label to a Slack channel.
package alertmanager

import (
	"context"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/transport"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/constants"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

const service = "alertmanager"

// Client fetches the Alertmanager status document.
type Client struct {
	http     *transport.Client
	endpoint string
}

// New creates a client for the status endpoint, e.g.
// http://alertmanager:8080/alertmanager/status.
func New(endpoint string, opts ...transport.Option) *Client {
	opts = append([]transport.Option{transport.WithTimeout(constants.AlertmanagerTimeout)}, opts...)
	return &Client{
		http:     transport.New(service, nil, "", opts...),
		endpoint: endpoint,
	}
}

// Config is the subset of the Alertmanager configuration needed to resolve
// alert channels. It is read-only once fetched and safe to share between
// workers.
type Config struct {
	Route     Route      `yaml:"route"`
	Receivers []Receiver `yaml:"receivers"`
}

// Route is the top-level routing tree.
type Route struct {
	Receiver string     `yaml:"receiver"`
	Routes   []SubRoute `yaml:"routes"`
}

// SubRoute maps label matches to a receiver.
type SubRoute struct {
	Match    map[string]string `yaml:"match"`
	Receiver string            `yaml:"receiver"`
}

// Receiver is a named notification target.
type Receiver struct {
	Name         string        `yaml:"name"`
	SlackConfigs []SlackConfig `yaml:"slack_configs"`
}

// SlackConfig is a Slack notification target.
type SlackConfig struct {
	Channel string `yaml:"channel"`
}

type status struct {
	Config struct {
		Original string `json:"original"`
	} `json:"config"`
}

// TestConnection fetches and parses the configuration.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.Fetch(ctx)
	return err
}

// Fetch reads the status endpoint and parses the embedded configuration. The
// configuration is returned with its newlines escaped, so they are restored
// before parsing.
func (c *Client) Fetch(ctx context.Context) (*Config, error) {
	var st status
	if err := c.http.GetJSON(ctx, c.endpoint, &st); err != nil {
		return nil, err
	}
	if st.Config.Original == "" {
		return nil, errors.NewParseError("yaml", c.endpoint, "status has no config.original", nil)
	}
	cfg, err := Parse(strings.ReplaceAll(st.Config.Original, `\n`, "\n"))
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().
		Int("routes", len(cfg.Route.Routes)).
		Int("receivers", len(cfg.Receivers)).
		Msg("successfully fetched Alertmanager data")
	return cfg, nil
}

// Parse parses an Alertmanager YAML configuration.
func Parse(text string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(text), &cfg); err != nil {
		return nil, errors.WrapParse("yaml", "alertmanager config", err)
	}
	return &cfg, nil
}

// ChannelForSeverity returns the channel of the first slack config of the
// receiver routed to for the severity label. It reports false when no route
// matches or the receiver has no Slack channel.
func (c *Config) ChannelForSeverity(label string) (string, bool) {
	if c == nil {
		return "", false
	}
	receiver := ""
	for _, r := range c.Route.Routes {
		if r.Match["severity"] == label {
			receiver = r.Receiver
			break
		}
	}
	if receiver == "" {
		return "", false
	}
	for _, r := range c.Receivers {
		if r.Name != receiver {
			continue
		}
		if len(r.SlackConfigs) == 0 || r.SlackConfigs[0].Channel == "" {
			return "", false
		}
		return r.SlackConfigs[0].Channel, true
	}
	return "", false
}
