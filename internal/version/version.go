// Package version carries build metadata injected via ldflags.
package version

var (
	// Version is the semantic release version.
	Version = "0.1.0-dev"
	// Commit is the git revision the binary was built from.
	Commit = ""
	// BuildDate is the build timestamp.
	BuildDate = ""
)
