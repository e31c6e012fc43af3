// Package version holds build metadata, overridden at link time with
// -ldflags "-X github.com/cdtdelta/4n6graph/internal/version.Version=...".
package version

var (
	Version = "0.1.0-dev"
	Commit  = "unknown"
)

// String returns the version with the commit appended when known.
func String() string {
	if Commit == "" || Commit == "unknown" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
