// Package version carries build metadata injected at link time.
package version

import "fmt"

// Set via -ldflags at build time, e.g.
// go build -ldflags "-X vlmodel/internal/version.Version=v1.2.0"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns a single-line human-readable version string.
func Info() string {
	return fmt.Sprintf("vlmodel %s (commit %s, built %s)", Version, Commit, Date)
}
