package app

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/catalogue"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/circleci"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/github"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/slack"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/constants"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
)

// Config holds the application configuration loaded from environment
// variables, .env files and an optional config file.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Upstreams
	Catalogue            catalogue.Config
	GitHub               github.Config
	CircleCI             circleci.Config
	AlertmanagerEndpoint string `validate:"omitempty,url"`
	Slack                slack.Config

	// Jobs
	MaxThreads      int
	PushgatewayURL  string `validate:"omitempty,url"`
	RefreshInterval time.Duration
	HealthAddr      string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables
// 3. .env files
// 4. Config file (--config or ./.hmpps-github-discovery.yaml)
// 5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "unable to read "+configFile, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".hmpps-github-discovery")
		// Read config file (ignore error if not found)
		_ = v.ReadInConfig()
	}

	config := &Config{
		ConfigFile: v.ConfigFileUsed(),

		Catalogue: catalogue.Config{
			Endpoint: v.GetString("service_catalogue_api_endpoint"),
			APIKey:   v.GetString("service_catalogue_api_key"),
			Filter:   v.GetString("sc_filter"),
		},
		GitHub: github.Config{
			AppID:          v.GetInt64("github_app_id"),
			InstallationID: v.GetInt64("github_app_installation_id"),
			PrivateKey:     v.GetString("github_app_private_key"),
			Org:            v.GetString("github_org"),
			APIURL:         v.GetString("github_api_url"),
		},
		CircleCI: circleci.Config{
			Endpoint: v.GetString("circleci_api_endpoint"),
			Token:    v.GetString("circleci_token"),
		},
		AlertmanagerEndpoint: v.GetString("alertmanager_endpoint"),
		Slack: slack.Config{
			Token:         v.GetString("slack_bot_token"),
			NotifyChannel: v.GetString("slack_notify_channel"),
			AlertChannel:  v.GetString("slack_alert_channel"),
			APIURL:        v.GetString("slack_api_url"),
		},

		MaxThreads:      min(v.GetInt("max_threads"), constants.MaxWorkers),
		PushgatewayURL:  v.GetString("pushgateway_url"),
		RefreshInterval: time.Duration(v.GetFloat64("refresh_interval_hours") * float64(time.Hour)),
		HealthAddr:      v.GetString("health_addr"),

		// LOG_LEVEL is left empty when unset so the -v/-q shortcuts apply
		LogLevel:  os.Getenv("LOG_LEVEL"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("github_org", constants.DefaultGitHubOrg)
	v.SetDefault("github_api_url", constants.DefaultGitHubAPIURL)
	v.SetDefault("circleci_api_endpoint", constants.DefaultCircleCIEndpoint)
	v.SetDefault("alertmanager_endpoint", constants.DefaultAlertmanagerEndpoint)
	v.SetDefault("max_threads", constants.MaxWorkers)
	v.SetDefault("refresh_interval_hours", constants.DefaultRefreshInterval.Hours())
	v.SetDefault("health_addr", constants.DefaultHealthAddr)
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the settings every job needs: the service catalogue and
// the optional job settings. Upstreams only some jobs use are checked when
// their clients are built.
func (c *Config) Validate() error {
	if err := validate.Struct(c.Catalogue); err != nil {
		return errors.NewConfigError("service catalogue", "SERVICE_CATALOGUE_API_ENDPOINT and SERVICE_CATALOGUE_API_KEY are required", err)
	}
	if err := validate.StructPartial(c, "AlertmanagerEndpoint", "PushgatewayURL"); err != nil {
		return errors.NewConfigError("config", "invalid settings", err)
	}
	return nil
}

// loadEnvFiles loads environment variables from .env files.
func loadEnvFiles() {
	// Variables already set are never overridden, so the process
	// environment wins over .env, which wins over .env.local
	envFiles := []string{
		".env",
		".env.local",
	}

	for _, envFile := range envFiles {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
