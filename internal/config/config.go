package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	BaseURL             string   `toml:"base_url"`
	Token               string   `toml:"token"`
	PollInterval        Duration `toml:"poll_interval"`
	ArchivePoll         bool     `toml:"archive_poll"`
	ArchivePollInterval Duration `toml:"archive_poll_interval"`
	ArchiveLimit        int      `toml:"archive_limit"`
	TailDelay           Duration `toml:"tail_delay"`
	TailIdleCeiling     int      `toml:"tail_idle_ceiling"`
	RequestTimeout      Duration `toml:"request_timeout"`
	RequestsPerSecond   float64  `toml:"requests_per_second"` // 0 = unlimited
	ArchiveDB           string   `toml:"archive_db"`
	LogFile             string   `toml:"log_file"`
	Debug               bool     `toml:"debug"`
}

// Duration reads TOML strings such as "5s" or "1m30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the configuration used when no file is present.
func Defaults(home string) *Config {
	dir := filepath.Join(home, ".config", "vmon")
	return &Config{
		BaseURL:             "http://localhost:3000/api/analytics",
		PollInterval:        Duration{5 * time.Second},
		ArchivePollInterval: Duration{5 * time.Second},
		ArchiveLimit:        20,
		TailDelay:           Duration{3 * time.Second},
		TailIdleCeiling:     100,
		RequestTimeout:      Duration{10 * time.Second},
		ArchiveDB:           filepath.Join(dir, "replays.db"),
		LogFile:             filepath.Join(dir, "vmon.log"),
	}
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return LoadFile(filepath.Join(home, ".config", "vmon", "config.toml"), home)
}

// LoadFile overlays cfgPath (if it exists) and the environment on the defaults.
func LoadFile(cfgPath, home string) (*Config, error) {
	cfg := Defaults(home)

	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	if v := os.Getenv("VMON_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("VMON_TOKEN"); v != "" {
		cfg.Token = v
	}

	// expand ~ in paths
	cfg.ArchiveDB = expandHome(cfg.ArchiveDB, home)
	cfg.LogFile = expandHome(cfg.LogFile, home)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgPath, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required"))
	}
	if c.PollInterval.Duration <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if c.ArchivePollInterval.Duration <= 0 {
		errs = append(errs, errors.New("archive_poll_interval must be positive"))
	}
	if c.TailDelay.Duration < 0 {
		errs = append(errs, errors.New("tail_delay must not be negative"))
	}
	if c.TailIdleCeiling <= 0 {
		errs = append(errs, errors.New("tail_idle_ceiling must be positive"))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests_per_second must not be negative"))
	}
	return errors.Join(errs...)
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
