// Package version reports the sheetagent build.
package version

import "runtime/debug"

// version is overridden with -ldflags "-X .../pkg/version.version=v1.2.3".
var version = "dev"

// Version returns the ldflags version, else the module version recorded by
// `go install`, else "dev".
func Version() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Sum != "" {
		return info.Main.Version
	}
	return version
}

// String renders the version with the VCS revision when the binary carries one.
func String() string {
	v := Version()
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	var rev string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return v
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if dirty {
		rev += "-dirty"
	}
	return v + " (" + rev + ")"
}

// Set assigns the version when ldflags are not provided. Empty values are
// ignored.
func Set(v string) {
	if v != "" {
		version = v
	}
}
