package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marcelocantos/neoshell/internal/rules"
)

// Config holds the global neoshell configuration.
type Config struct {
	Workspace       string                       `yaml:"workspace"`
	Shell           string                       `yaml:"shell"`
	ShellDelegation bool                         `yaml:"shell_delegation"`
	Timeout         string                       `yaml:"timeout"`
	LogLevel        string                       `yaml:"log_level"`
	Audit           AuditConfig                  `yaml:"audit"`
	Rules           map[string]rules.CommandRule `yaml:"rules"`
	Guard           GuardConfig                  `yaml:"guard"`
}

// AuditConfig controls audit log settings. An empty path disables the log.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// GuardConfig points at an optional Starlark guard script.
type GuardConfig struct {
	Script string `yaml:"script"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Workspace:       "workspace",
		Shell:           "/bin/sh",
		ShellDelegation: true,
		LogLevel:        "info",
		Audit: AuditConfig{
			Path: filepath.Join(home, ".local", "share", "neoshell", "audit.jsonl"),
		},
	}
}

// Load reads the config from the standard location
// (~/.config/neoshell/config.yaml). If the file doesn't exist, returns the
// default config.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config from the given path. A missing file yields the
// defaults; fields absent from the file keep their default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	cfg.Workspace = expandHome(cfg.Workspace)
	cfg.Audit.Path = expandHome(cfg.Audit.Path)
	cfg.Guard.Script = expandHome(cfg.Guard.Script)
	return cfg, nil
}

// Validate checks the fields that have a constrained format.
func (c *Config) Validate() error {
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// TimeoutDuration parses the configured timeout. Empty or "0" means none.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" || c.Timeout == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout: %s is negative", c.Timeout)
	}
	return d, nil
}

// Level parses log_level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// BuildGuard compiles the configured rules and script into a RuleSet.
// Hardcoded safety rules are always included.
func (c *Config) BuildGuard() (*rules.RuleSet, error) {
	rs := rules.Compile(c.Rules)
	if c.Guard.Script != "" {
		s, err := rules.LoadScript(c.Guard.Script)
		if err != nil {
			return nil, err
		}
		rs.SetScript(s)
	}
	return rs, nil
}

// ConfigPath returns the standard config file path.
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "neoshell", "config.yaml")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
