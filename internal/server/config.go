package server

import (
	"time"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/constants"
)

// Config holds server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// HTTP timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            constants.DefaultHealthAddr,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}
