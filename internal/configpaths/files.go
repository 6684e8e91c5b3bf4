// Package configpaths resolves where gimbaldac looks for its files.
package configpaths

import (
	"errors"
	"os"
	"path/filepath"
)

const (
	appName   = "gimbaldac"
	systemDir = "/etc/gimbaldac"
)

// DefaultConfigDir returns the per-user configuration directory.
func DefaultConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", appName), nil
	}
	return "", errors.New("HOME not set")
}

// DefaultConfigPath returns the default daemon config path for the given format.
func DefaultConfigPath(format string) (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config."+Ext(format)), nil
}

// Ext returns the file extension used for format.
func Ext(format string) string {
	switch format {
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	default:
		return "json"
	}
}

// EnsureDir ensures the directory for a given file path exists.
func EnsureDir(filePath string) error {
	return os.MkdirAll(filepath.Dir(filePath), 0o755)
}

// DaemonConfigCandidates lists daemon config locations in priority order:
// working directory, user config directory, then the system directory.
func DaemonConfigCandidates() []string {
	var out []string
	add := func(dir, base string) {
		for _, ext := range []string{".yaml", ".yml", ".json", ".toml"} {
			out = append(out, filepath.Join(dir, base+ext))
		}
	}

	if wd, err := os.Getwd(); err == nil {
		add(wd, appName)
	}
	if dir, err := DefaultConfigDir(); err == nil {
		add(dir, "config")
	}
	add(systemDir, "config")
	return out
}

// FindDaemonConfig returns userPath when set, otherwise the first existing
// candidate. It returns "" when nothing is found.
func FindDaemonConfig(userPath string) (string, error) {
	if userPath != "" {
		if _, err := os.Stat(userPath); err != nil {
			return "", err
		}
		return userPath, nil
	}
	for _, p := range DaemonConfigCandidates() {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", nil
}

// CLICandidatePaths builds candidate paths, per format, for files holding
// command line flag defaults of the tool named base (e.g. "ctl").
func CLICandidatePaths(base string) (jsonPaths, yamlPaths, tomlPaths []string) {
	add := func(dir string) {
		jsonPaths = append(jsonPaths, filepath.Join(dir, base+".json"))
		yamlPaths = append(yamlPaths, filepath.Join(dir, base+".yaml"), filepath.Join(dir, base+".yml"))
		tomlPaths = append(tomlPaths, filepath.Join(dir, base+".toml"))
	}

	if dir, err := DefaultConfigDir(); err == nil {
		add(dir)
	}
	add(systemDir)
	return
}
