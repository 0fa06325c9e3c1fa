// Package version exposes build-time version information.
package version

import (
	"fmt"
	"runtime"
)

// These values are injected at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info returns version information as a map for logging and health reporting.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"go_version": runtime.Version(),
		"commit":     Commit,
		"build_date": BuildDate,
	}
}

// String returns a single-line version description.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s)", Version, Commit, BuildDate, runtime.Version())
}
