// Package version exposes the ghgfocus build version.
package version

import "runtime/debug"

// Set at build time with
//
//	-ldflags "-X github.com/rshade/ghgfocus/pkg/version.version=v1.2.3 -X github.com/rshade/ghgfocus/pkg/version.commit=abc123"
//
//nolint:gochecknoglobals // Overridden by the linker.
var (
	version = "dev"
	commit  = ""
)

// GetVersion returns the build version. Untagged builds fall back to the
// module version recorded by the Go toolchain.
func GetVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

// GetCommit returns the VCS revision of the build, if known.
func GetCommit() string {
	if commit != "" {
		return commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return ""
}
