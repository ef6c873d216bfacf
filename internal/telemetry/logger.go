// Package telemetry builds the logger and metrics collector shared by the
// simulator, the batch runner and the CLI.
package telemetry

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// NewLogger builds a leveled logger writing to w. Format is text, json or
// logfmt.
func NewLogger(w io.Writer, level, format string) (*log.Logger, error) {
	lvl := log.InfoLevel
	if level != "" {
		parsed, err := log.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	var formatter log.Formatter
	switch strings.ToLower(format) {
	case "", "text":
		formatter = log.TextFormatter
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Formatter:       formatter,
		ReportTimestamp: formatter != log.TextFormatter,
		Prefix:          "foldsim",
	}), nil
}
