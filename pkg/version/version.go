package version

import "fmt"

// Name is the binary name reported by the version command.
const Name = "vshell"

var (
	// Version is the semantic version or git describe result.
	Version = "dev"
	// GitCommit is the short git commit hash for this build.
	GitCommit = "unknown"
	// BuildDate is the RFC3339 timestamp when the binary was built.
	BuildDate = "unknown"
)

// String returns a human readable version summary such as
// "vshell dev (commit unknown, built unknown)".
func String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", Name, Version, GitCommit, BuildDate)
}
