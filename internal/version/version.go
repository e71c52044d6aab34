// Package version holds the build version, overridden at link time via
// -ldflags "-X github.com/hupe1980/councilmesh/internal/version.Version=...".
package version

// Version is the semantic version of the councilmesh binary.
var Version = "dev"
