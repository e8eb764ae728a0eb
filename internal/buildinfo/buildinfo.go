// Package buildinfo carries the version identity stamped into release
// binaries with -ldflags. Development builds fall back to "dev".
package buildinfo

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns the most specific identifier available: the release
// version, else the commit, else "dev".
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	return "dev"
}

// Full returns version, commit, and build date on one line, for verbose
// startup banners.
func Full() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
