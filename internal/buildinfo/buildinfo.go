// Package buildinfo holds build-time variables injected via ldflags.
package buildinfo

import "fmt"

// Set with -ldflags "-X github.com/go-ports/notevault/internal/buildinfo.Version=...".
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// String is the long form printed by `notes --version`.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
