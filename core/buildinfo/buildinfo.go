// Package buildinfo reports the version of the running binary.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// Release builds set these with -ldflags, for example
//
//	-X 'github.com/m3rciful/lovematch/core/buildinfo.Version=v1.2.3'
//
// Commit and Date fall back to the VCS stamp the Go toolchain embeds.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "" && len(s.Value) >= 7 {
				Commit = s.Value[:7]
			}
		case "vcs.time":
			if Date == "" {
				Date = s.Value
			}
		}
	}
}

// String renders build metadata on one line for the version command.
func String() string {
	commit := Commit
	if commit == "" {
		commit = "local"
	}
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, commit)
	}
	return fmt.Sprintf("%s (%s, built %s)", Version, commit, Date)
}
