// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when no --config flag is
// given.
const EnvironmentVariable = "PRINTSHOP_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local machines.
	Development Environment = "development"
	// Staging is for pre-production rehearsal.
	Staging Environment = "staging"
	// Production is for the live shop.
	Production Environment = "production"
)

// Config is the print shop configuration.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Listen configures the TCP listener.
	Listen ListenConfig `yaml:"listen"`

	// Paths configures file and directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Session bounds each peer connection.
	Session SessionConfig `yaml:"session"`

	// Render configures print preview rendering.
	Render RenderConfig `yaml:"render"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Listen  *ListenConfig  `yaml:"listen,omitempty"`
	Paths   *PathsConfig   `yaml:"paths,omitempty"`
	Session *SessionConfig `yaml:"session,omitempty"`
	Render  *RenderConfig  `yaml:"render,omitempty"`
	Log     *LogConfig     `yaml:"log,omitempty"`
}

// ListenConfig configures the TCP listener.
type ListenConfig struct {
	// Address is host:port. Default: 0.0.0.0:8888
	Address string `yaml:"address"`
}

// PathsConfig configures file and directory locations.
type PathsConfig struct {
	// Root is the base directory for shop data.
	Root string `yaml:"root"`

	// Database is the SQLite file.
	Database string `yaml:"database"`

	// Templates holds tshirt_<color>.jpeg for every shirt color.
	Templates string `yaml:"templates"`

	// Artifacts receives rendered print previews.
	Artifacts string `yaml:"artifacts"`

	// Font is a TrueType/OpenType font for print text. Empty selects
	// the built-in bitmap face.
	Font string `yaml:"font"`

	// Identity is the age X25519 identity that seals coupon secrets.
	Identity string `yaml:"identity"`
}

// SessionConfig bounds each peer connection.
type SessionConfig struct {
	// IdleTimeout closes a connection that sends nothing for this
	// long. Default: 5m
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxLineLength is the longest accepted input line in bytes.
	// Default: 1024
	MaxLineLength int `yaml:"max_line_length"`

	// CouponAttempts is the number of codes a peer may try per
	// payment. Default: 3
	CouponAttempts int `yaml:"coupon_attempts"`
}

// RenderConfig configures print preview rendering.
type RenderConfig struct {
	// Concurrency bounds simultaneous renders. Default: 2
	Concurrency int `yaml:"concurrency"`

	// FontSize in points. Ignored by the built-in face. Default: 48
	FontSize float64 `yaml:"font_size"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is a slog level name: debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`
}

// Default returns the default configuration. It is the base the config
// file is merged over, not a fallback: a config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "printshop")

	return &Config{
		Environment: Development,
		Listen: ListenConfig{
			Address: "0.0.0.0:8888",
		},
		Paths: PathsConfig{
			Root:      defaultRoot,
			Database:  filepath.Join(defaultRoot, "tshirt.db"),
			Templates: filepath.Join(defaultRoot, "templates"),
			Artifacts: filepath.Join(defaultRoot, "artifacts"),
			Identity:  filepath.Join(defaultRoot, "identity.age"),
		},
		Session: SessionConfig{
			IdleTimeout:    5 * time.Minute,
			MaxLineLength:  1024,
			CouponAttempts: 3,
		},
		Render: RenderConfig{
			Concurrency: 2,
			FontSize:    48,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the PRINTSHOP_CONFIG environment
// variable. There is no discovery: if the variable is not set, Load
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your printshop.yaml config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// Resolve loads flagPath when it is set and falls back to Load
// otherwise. This is the entry point the binaries use.
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	return Load()
}

// LoadFile loads configuration from a specific file path. Environment
// variables do not override values; the only expansion performed is
// ${VAR} substitution in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the section matching Environment.
// Production without its own section gets a shorter idle timeout.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{
				Session: &SessionConfig{IdleTimeout: 2 * time.Minute},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Listen != nil && overrides.Listen.Address != "" {
		c.Listen.Address = overrides.Listen.Address
	}

	if overrides.Paths != nil {
		overrideString(&c.Paths.Root, overrides.Paths.Root)
		overrideString(&c.Paths.Database, overrides.Paths.Database)
		overrideString(&c.Paths.Templates, overrides.Paths.Templates)
		overrideString(&c.Paths.Artifacts, overrides.Paths.Artifacts)
		overrideString(&c.Paths.Font, overrides.Paths.Font)
		overrideString(&c.Paths.Identity, overrides.Paths.Identity)
	}

	if overrides.Session != nil {
		if overrides.Session.IdleTimeout != 0 {
			c.Session.IdleTimeout = overrides.Session.IdleTimeout
		}
		if overrides.Session.MaxLineLength != 0 {
			c.Session.MaxLineLength = overrides.Session.MaxLineLength
		}
		if overrides.Session.CouponAttempts != 0 {
			c.Session.CouponAttempts = overrides.Session.CouponAttempts
		}
	}

	if overrides.Log != nil {
		overrideString(&c.Log.Level, overrides.Log.Level)
	}

	if overrides.Render != nil {
		if overrides.Render.Concurrency != 0 {
			c.Render.Concurrency = overrides.Render.Concurrency
		}
		if overrides.Render.FontSize != 0 {
			c.Render.FontSize = overrides.Render.FontSize
		}
	}
}

func overrideString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
// ${PRINTSHOP_ROOT} refers to the expanded paths.root.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"PRINTSHOP_ROOT": c.Paths.Root,
		"HOME":           os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["PRINTSHOP_ROOT"] = c.Paths.Root

	c.Paths.Database = expandVars(c.Paths.Database, vars)
	c.Paths.Templates = expandVars(c.Paths.Templates, vars)
	c.Paths.Artifacts = expandVars(c.Paths.Artifacts, vars)
	c.Paths.Font = expandVars(c.Paths.Font, vars)
	c.Paths.Identity = expandVars(c.Paths.Identity, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, preferring
// vars over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name := parts[1]
		defaultValue := parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if _, _, err := net.SplitHostPort(c.Listen.Address); err != nil {
		errs = append(errs, fmt.Errorf("listen.address %q: %w", c.Listen.Address, err))
	}

	required := []struct {
		name  string
		value string
	}{
		{"paths.root", c.Paths.Root},
		{"paths.database", c.Paths.Database},
		{"paths.templates", c.Paths.Templates},
		{"paths.artifacts", c.Paths.Artifacts},
		{"paths.identity", c.Paths.Identity},
	}
	for _, field := range required {
		if field.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", field.name))
		}
	}
	if c.Paths.Database == ":memory:" {
		errs = append(errs, fmt.Errorf("paths.database must be a file"))
	}

	if c.Session.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session.idle_timeout must be positive"))
	}
	if c.Session.MaxLineLength < 16 || c.Session.MaxLineLength > 64*1024 {
		errs = append(errs, fmt.Errorf("session.max_line_length must be between 16 and 65536, got %d", c.Session.MaxLineLength))
	}
	if c.Session.CouponAttempts < 1 {
		errs = append(errs, fmt.Errorf("session.coupon_attempts must be at least 1"))
	}

	if c.Render.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("render.concurrency must be at least 1"))
	}
	if c.Render.FontSize <= 0 {
		errs = append(errs, fmt.Errorf("render.font_size must be positive"))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the data directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		filepath.Dir(c.Paths.Database),
		c.Paths.Templates,
		c.Paths.Artifacts,
	}

	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("config: creating %s: %w", path, err)
		}
	}
	return nil
}
