// Package buildinfo carries version details stamped in at link time with
// -ldflags "-X stopboard.app/internal/buildinfo.Version=...".
package buildinfo

import (
	"runtime/debug"
	"sync"
)

var (
	Version    = "dev"
	CommitHash = ""
	Branch     = ""
	BuildTime  = ""
	Dirty      = ""
)

var fromModule = sync.OnceFunc(func() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if CommitHash == "" {
				CommitHash = s.Value
			}
		case "vcs.time":
			if BuildTime == "" {
				BuildTime = s.Value
			}
		case "vcs.modified":
			if Dirty == "" {
				Dirty = s.Value
			}
		}
	}
})

// ShortCommit returns the first seven characters of CommitHash, or "unknown".
func ShortCommit() string {
	fromModule()
	if len(CommitHash) >= 7 {
		return CommitHash[:7]
	}
	return "unknown"
}

// Resolve fills unset values from the module build information. Values set
// through ldflags are left untouched.
func Resolve() {
	fromModule()
}
