package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultAppName names the config and data directories.
const DefaultAppName = "kalend"

// Paths holds the resolved per-user locations for one app name.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	LogDir     string
}

// Options defines optional settings for path resolution.
type Options struct {
	AppName string
	DevMode bool
}

// BaseDirs holds the per-user roots the app directories hang off.
type BaseDirs struct {
	Config string
	Data   string
	State  string
}

// envOverrides lists, per GOOS, which environment variables replace each base dir.
var envOverrides = map[string]struct{ config, data, state string }{
	"linux":   {config: "XDG_CONFIG_HOME", data: "XDG_DATA_HOME", state: "XDG_STATE_HOME"},
	"windows": {config: "APPDATA", data: "LOCALAPPDATA", state: "LOCALAPPDATA"},
}

// DefaultPaths returns the paths for DefaultAppName.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: DefaultAppName})
}

// DefaultPathsWithOptions resolves paths from the current user and environment.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = DefaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	base := BaseDirs{Config: configDir, Data: configDir}
	if runtime.GOOS == "linux" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("user home dir: %w", err)
		}
		base.Data = filepath.Join(home, ".local", "share")
		base.State = filepath.Join(home, ".local", "state")
	}

	env := map[string]string{}
	for _, keys := range envOverrides {
		for _, key := range []string{keys.config, keys.data, keys.state} {
			env[key] = os.Getenv(key)
		}
	}
	return PathsFor(runtime.GOOS, env, base, appName)
}

// PathsFor resolves app paths for goos from explicit base dirs and environment.
// An empty state base falls back to the data dir.
func PathsFor(goos string, env map[string]string, base BaseDirs, appName string) (Paths, error) {
	if base.Config == "" || base.Data == "" {
		return Paths{}, errors.New("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errors.New("empty app name")
	}

	if keys, ok := envOverrides[goos]; ok {
		base.Config = firstNonEmpty(env[keys.config], base.Config)
		base.Data = firstNonEmpty(env[keys.data], base.Data)
		base.State = firstNonEmpty(env[keys.state], base.State)
	}
	base.State = firstNonEmpty(base.State, base.Data)

	dataDir := filepath.Join(base.Data, appName)
	return Paths{
		ConfigPath: filepath.Join(base.Config, appName, "config.toml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
		LogDir:     filepath.Join(base.State, appName, "log"),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
