// Package config loads the settings shared by the signup binaries.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

const (
	appDir       = ".signup"
	fileName     = "config.yaml"
	envPrefix    = "SIGNUP_"
	defaultLevel = "info"
)

// Log levels accepted in the config file.
var Levels = []any{"trace", "debug", "info", "warn", "error"}

// Config holds settings for the server and the terminal client
type Config struct {
	Server ServerConfig `yaml:"server" json:"server"`
	Client ClientConfig `yaml:"client" json:"client"`
	Log    LogConfig    `yaml:"log" json:"log"`
}

// ServerConfig configures the account service.
type ServerConfig struct {
	Addr             string        `yaml:"addr" json:"addr"`
	DSN              string        `yaml:"dsn" json:"dsn"`
	PasswordCost     int           `yaml:"password_cost" json:"password_cost"`
	SimulatedLatency time.Duration `yaml:"simulated_latency" json:"simulated_latency"` // Upper bound of the random delay added to API calls
	Debug            bool          `yaml:"debug" json:"debug"`
}

// ClientConfig configures the terminal client.
type ClientConfig struct {
	BaseURL             string        `yaml:"base_url" json:"base_url"`
	StoragePath         string        `yaml:"storage_path" json:"storage_path"` // SQLite file backing the device storage
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	AvailabilityTTL     time.Duration `yaml:"availability_ttl" json:"availability_ttl"`
	AvailabilityTimeout time.Duration `yaml:"availability_timeout" json:"availability_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Defaults returns the built in settings.
func Defaults() *Config {
	storage := "signup.db"
	if dir := Dir(); dir != "" {
		storage = filepath.Join(dir, "device.db")
	}

	return &Config{
		Server: ServerConfig{
			Addr:         ":3000",
			DSN:          "file:signup-server.db?cache=shared",
			PasswordCost: 10,
		},
		Client: ClientConfig{
			BaseURL:             "http://localhost:3000",
			StoragePath:         storage,
			Timeout:             30 * time.Second,
			AvailabilityTTL:     60 * time.Second,
			AvailabilityTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: defaultLevel,
		},
	}
}

// Dir is the per-user config directory, or "" when there is no home.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, appDir)
}

// DefaultPath is the config file used when none is given.
func DefaultPath() string {
	if dir := Dir(); dir != "" {
		return filepath.Join(dir, fileName)
	}
	return fileName
}

// Load reads path over the defaults, applies SIGNUP_* environment overrides
// and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse config").
				WithMetadata(map[string]any{"path": path})
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read config").
			WithMetadata(map[string]any{"path": path})
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides settings from SIGNUP_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError(name, v, err)
		}
		*dst = d
		return nil
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError(name, v, err)
		}
		*dst = b
		return nil
	}

	str("SERVER_ADDR", &c.Server.Addr)
	str("DB_DSN", &c.Server.DSN)
	str("API_URL", &c.Client.BaseURL)
	str("STORAGE_PATH", &c.Client.StoragePath)
	str("LOG_LEVEL", &c.Log.Level)
	c.Log.Level = strings.ToLower(c.Log.Level)

	if v, ok := lookup(envPrefix + "PASSWORD_COST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("PASSWORD_COST", v, err)
		}
		c.Server.PasswordCost = n
	}

	for name, dst := range map[string]*time.Duration{
		"SIMULATED_LATENCY":    &c.Server.SimulatedLatency,
		"CLIENT_TIMEOUT":       &c.Client.Timeout,
		"AVAILABILITY_TTL":     &c.Client.AvailabilityTTL,
		"AVAILABILITY_TIMEOUT": &c.Client.AvailabilityTimeout,
	} {
		if err := dur(name, dst); err != nil {
			return err
		}
	}

	return boolean("SERVER_DEBUG", &c.Server.Debug)
}

// Validate checks every section.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Client),
		validation.Field(&c.Log),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration")
	}
	return nil
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.DSN, validation.Required),
		validation.Field(&s.PasswordCost, validation.Min(4), validation.Max(31)),
		validation.Field(&s.SimulatedLatency, validation.Min(time.Duration(0))),
	)
}

func (c ClientConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.StoragePath, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.AvailabilityTTL, validation.Required),
		validation.Field(&c.AvailabilityTimeout, validation.Min(time.Duration(0))),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.Required, validation.In(Levels...)),
	)
}

// Save writes the config as YAML to path, creating the directory.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create config directory")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write config")
	}
	return nil
}

func envError(name, value string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid environment override").
		WithMetadata(map[string]any{
			"variable": envPrefix + name,
			"value":    value,
		})
}
