package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Logging   LoggingConfig   `toml:"logging"`
	Calendar  CalendarConfig  `toml:"calendar"`
	Gestures  GesturesConfig  `toml:"gestures"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Identity  IdentityConfig  `toml:"identity"`
	Server    ServerConfig    `toml:"server"`
	Keys      KeyConfig       `toml:"keys"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type CalendarConfig struct {
	WeekStart   string `toml:"week_start"`   // monday | sunday | ...
	DefaultView string `toml:"default_view"` // month | week | day
}

type GesturesConfig struct {
	Timeout Duration `toml:"timeout"`
}

type ReconcileConfig struct {
	Timeout Duration `toml:"timeout"`
}

type IdentityConfig struct {
	UserID      string `toml:"user_id"`
	DisplayName string `toml:"display_name"`
}

type ServerConfig struct {
	HTTPBind    string   `toml:"http_bind"`
	APIEndpoint string   `toml:"api_endpoint"`
	MCPEndpoint string   `toml:"mcp_endpoint"`
	CORSOrigins []string `toml:"cors_origins"`
}

// KeyConfig holds terminal calendar key overrides; blank values keep the built-in keys.
type KeyConfig struct {
	PrevWeek  string `toml:"prev_week"`
	NextWeek  string `toml:"next_week"`
	Today     string `toml:"today"`
	CycleMode string `toml:"cycle_mode"`
	NextScope string `toml:"next_scope"`
	Details   string `toml:"details"`
	Reload    string `toml:"reload"`
}

// Duration decodes TOML strings such as "30s" into a time.Duration.
type Duration time.Duration

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalText encodes the duration with time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText decodes a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".kalend/log",
			},
		},
		Calendar: CalendarConfig{
			WeekStart:   "monday",
			DefaultView: "week",
		},
		Gestures: GesturesConfig{
			Timeout: Duration(30 * time.Second),
		},
		Reconcile: ReconcileConfig{
			Timeout: Duration(10 * time.Second),
		},
		Identity: IdentityConfig{
			UserID: "local",
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:7420",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if _, err := c.WeekStart(); err != nil {
		return err
	}
	switch strings.TrimSpace(strings.ToLower(c.Calendar.DefaultView)) {
	case "", "month", "week", "day":
	default:
		return fmt.Errorf("invalid calendar.default_view: %q", c.Calendar.DefaultView)
	}
	if c.Gestures.Timeout.Std() <= 0 {
		return errors.New("gestures.timeout must be > 0")
	}
	if c.Reconcile.Timeout.Std() <= 0 {
		return errors.New("reconcile.timeout must be > 0")
	}
	if strings.TrimSpace(c.Identity.UserID) == "" {
		return errors.New("identity.user_id is required")
	}
	for name, endpoint := range map[string]string{
		"server.api_endpoint": c.Server.APIEndpoint,
		"server.mcp_endpoint": c.Server.MCPEndpoint,
	} {
		if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
			return fmt.Errorf("%s must start with '/': %q", name, endpoint)
		}
	}
	for _, origin := range c.Server.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("invalid server.cors_origins entry: %q", origin)
		}
	}
	return nil
}

// WeekStart returns the configured first day of calendar rows.
func (c Config) WeekStart() (time.Weekday, error) {
	raw := strings.TrimSpace(strings.ToLower(c.Calendar.WeekStart))
	if raw == "" {
		return time.Monday, nil
	}
	for day := time.Sunday; day <= time.Saturday; day++ {
		name := strings.ToLower(day.String())
		if raw == name || raw == name[:3] {
			return day, nil
		}
	}
	return time.Monday, fmt.Errorf("invalid calendar.week_start: %q", c.Calendar.WeekStart)
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
