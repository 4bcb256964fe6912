package utils

import (
	"runtime/debug"
	"strings"
)

// set with -ldflags "-X github.com/gnomegl/gitgraph/internal/utils.version=..."
var version string

// GetVersion returns the release version without its "v" prefix. Builds
// without ldflags fall back to the module version, "dev" for local builds.
func GetVersion() string {
	v := version
	if v == "" {
		v = "dev"
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	return strings.TrimPrefix(v, "v")
}
