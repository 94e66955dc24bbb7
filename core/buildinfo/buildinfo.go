// Package buildinfo carries version metadata stamped at link time:
//
//	-X 'github.com/m3rciful/vitalsbot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/vitalsbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/vitalsbot/core/buildinfo.Date=2025-08-30T12:00:00Z'
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// String renders the build for `version` output and startup logs.
// When the linker flags were not set, the VCS stamp recorded by the Go
// toolchain is used instead.
func String() string {
	commit, date := Commit, Date
	if commit == "local" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					if len(s.Value) > 7 {
						commit = s.Value[:7]
					} else if s.Value != "" {
						commit = s.Value
					}
				case "vcs.time":
					if date == "" {
						date = s.Value
					}
				}
			}
		}
	}
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s (commit %s, built %s)", Version, commit, date)
}
