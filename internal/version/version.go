// Package version holds build metadata injected via ldflags.
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// UserAgent identifies idxmigrate on outbound search-service requests.
func UserAgent() string {
	return "idxmigrate/" + Version + " (" + Commit + ")"
}
