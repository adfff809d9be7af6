// Package output renders job reports on stdout.
package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Format is a report output format.
type Format string

const (
	// FormatTable prints the run summary and the flagged items.
	FormatTable Format = "table"
	// FormatWide is FormatTable with every processed item listed.
	FormatWide Format = "wide"
	// FormatJSON prints the whole report as indented JSON.
	FormatJSON Format = "json"
	// FormatYAML prints the whole report as YAML.
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format value. The empty string means detect.
func ParseFormat(s string) (Format, error) {
	format := Format(strings.ToLower(s))
	switch format {
	case FormatTable, FormatWide, FormatJSON, FormatYAML, "":
		return format, nil
	}
	return "", fmt.Errorf("invalid format %q: must be one of: table, wide, json, yaml", s)
}

// DetectFormat returns format when set. Otherwise reports are tables on a
// terminal and JSON when stdout is piped, which is how the scheduled jobs
// hand their report to the log collector.
func DetectFormat(format Format) Format {
	if format != "" {
		return format
	}
	fd := os.Stdout.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return FormatTable
	}
	return FormatJSON
}
