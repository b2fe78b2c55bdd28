// Package version exposes the build version reported by the CLI.
package version

import (
	"runtime/debug"
)

// Version is overridable with -ldflags at release time; otherwise the
// VCS revision embedded by the Go toolchain is appended to it.
var Version = "dev"

// GetInfo returns the version string, with the short VCS revision
// appended when one is available.
func GetInfo() string {
	rev := revision()
	if rev == "" {
		return Version
	}
	if len(rev) > 7 {
		rev = rev[:7]
	}
	return Version + " (" + rev + ")"
}

func revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}
