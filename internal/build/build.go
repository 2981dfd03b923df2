// Package build exposes build specific information.
package build

import (
	"runtime/debug"
	"strconv"
)

var gitRevision string

func init() {
	var (
		revision string
		dirty    bool
	)

	info, _ := debug.ReadBuildInfo()
	if info != nil {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				revision = s.Value
			case "vcs.modified":
				dirty, _ = strconv.ParseBool(s.Value)
			}
		}
	}

	gitRevision = revision
	if dirty {
		gitRevision += "-dirty"
	}
}

// GitRevision retrieves the revision of the current build. If the build
// contains uncommitted changes the revision is suffixed with "-dirty".
func GitRevision() string {
	return gitRevision
}
