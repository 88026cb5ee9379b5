// Package version holds build version information.
package version

// Set via -ldflags at build time.
var (
	Version = "dev"
	Commit  = "local"
	Date    = "unknown"
)
