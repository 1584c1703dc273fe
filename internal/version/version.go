// Package version reports which containerdisk build is running.
package version

import (
	"runtime"
	"runtime/debug"
)

// Devel is reported for builds without an injected release version.
const Devel = "devel"

// version is set by the mage build via -ldflags -X.
var version string

// Info identifies the containerdisk binary.
type Info struct {
	Version   string
	Commit    string
	Dirty     bool
	GoVersion string
	Deps      []*debug.Module
}

// String renders Info on one line, e.g. "v0.3.0 (1a2b3c4d5e6f-dirty, go1.22.1)".
func (i Info) String() string {
	s := i.Version + " ("
	if i.Commit != "" {
		s += i.Commit
		if i.Dirty {
			s += "-dirty"
		}
		s += ", "
	}

	return s + i.GoVersion + ")"
}

// Get collects the release version and the VCS stamp of the running binary.
func Get() Info {
	info := Info{Version: version, GoVersion: runtime.Version()}

	if bi, ok := debug.ReadBuildInfo(); ok {
		info.Deps = bi.Deps
		if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				info.Commit = shortCommit(s.Value)
			case "vcs.modified":
				info.Dirty = s.Value == "true"
			}
		}
	}
	if info.Version == "" {
		info.Version = Devel
	}

	return info
}

func shortCommit(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}

	return rev
}
