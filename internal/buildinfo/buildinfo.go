package buildinfo

import "fmt"

// Set at build time via -ldflags "-X ember/internal/buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns a compact build identifier.
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	return "dev"
}

// String describes the build for -version.
func String() string {
	return fmt.Sprintf("ember %s (commit %s, built %s)", Short(), Commit, Date)
}
