package backup

import "runtime/debug"

const develRevision = "dev"

// Revision identifies the build that produced an archive. It prefers the
// module version and falls back to the VCS revision stamped by the toolchain.
func Revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return develRevision
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			if len(setting.Value) > 12 {
				return setting.Value[:12]
			}
			return setting.Value
		}
	}
	return develRevision
}
