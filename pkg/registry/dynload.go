package registry

import (
	"os"
	"path/filepath"
	"regexp"
)

// soPattern, dylibPattern, and dllPattern match the platform plugin naming
// conventions: libwaav_plugin_<name>.so, libwaav_plugin_<name>.dylib, and
// waav_plugin_<name>.dll respectively.
var (
	soPattern    = regexp.MustCompile(`^libwaav_plugin_([a-zA-Z0-9_-]+)\.so$`)
	dylibPattern = regexp.MustCompile(`^libwaav_plugin_([a-zA-Z0-9_-]+)\.dylib$`)
	dllPattern   = regexp.MustCompile(`^waav_plugin_([a-zA-Z0-9_-]+)\.dll$`)
)

// readPluginDir lists the regular files directly inside dir. A missing
// directory is treated as empty rather than an error, since plugin
// directories are optional configuration.
func readPluginDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// matchPluginFilename checks path's base name against the three platform
// naming conventions and returns the embedded plugin name and kind. ok is
// false for files that don't match any convention (ignored by the scanner).
func matchPluginFilename(path string) (name string, kind pluginKind, ok bool) {
	base := filepath.Base(path)
	if m := soPattern.FindStringSubmatch(base); m != nil {
		return m[1], pluginKindSO, true
	}
	if m := dylibPattern.FindStringSubmatch(base); m != nil {
		return m[1], pluginKindDylib, true
	}
	if m := dllPattern.FindStringSubmatch(base); m != nil {
		return m[1], pluginKindDLL, true
	}
	return "", 0, false
}
