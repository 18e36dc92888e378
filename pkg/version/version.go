// Package version holds build-time metadata set via -ldflags.
package version

var (
	version  = "dev"
	branch   = "unknown"
	date     = "unknown"
	revision = "unknown"
)

// Version returns the build version string.
func Version() string {
	return version
}

// Branch returns the git branch the binary was built from.
func Branch() string {
	return branch
}

// Date returns the build date.
func Date() string {
	return date
}

// Revision returns the git commit hash the binary was built from.
func Revision() string {
	return revision
}
