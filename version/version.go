package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

const shortCommitLen = 7

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
	Dirty     bool   `json:"dirty"`
}

// Get returns the build info, filling gaps from the embedded VCS settings.
func Get() Info {
	return fromBuild(Info{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}, readBuildInfo)
}

var readBuildInfo = debug.ReadBuildInfo

func fromBuild(info Info, read func() (*debug.BuildInfo, bool)) Info {
	if bi, ok := read(); ok {
		info.GoVersion = bi.GoVersion
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			case "vcs.modified":
				info.Dirty = s.Value == "true"
			}
		}
	}
	if len(info.GitCommit) > shortCommitLen {
		info.GitCommit = info.GitCommit[:shortCommitLen]
	}
	return info
}

// IsRelease reports whether the build carries a stamped, clean version.
func (i Info) IsRelease() bool {
	return i.Version != "dev" && !i.Dirty
}

// Short returns version-commit, with a -dirty suffix for modified trees.
func (i Info) Short() string {
	parts := []string{i.Version}
	if i.GitCommit != "" {
		parts = append(parts, i.GitCommit)
	}
	if i.Dirty {
		parts = append(parts, "dirty")
	}
	return strings.Join(parts, "-")
}

// String is the line printed by `speechgate version`.
func (i Info) String() string {
	s := fmt.Sprintf("speechgate %s", i.Short())
	if i.BuildTime != "" {
		s += fmt.Sprintf(" (built %s)", i.BuildTime)
	}
	if i.GoVersion != "" {
		s += " " + i.GoVersion
	}
	return s
}
