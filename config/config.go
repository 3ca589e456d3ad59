// Package config loads the settings shared by flatwire tools: id
// allocation, callback defaults, logging and metrics.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/reoring/flatwire/callback"
)

// ID allocation modes.
const (
	IDsRandom     = "random"
	IDsSequential = "sequential"
)

// Config is the runtime configuration read from YAML.
type Config struct {
	IDs       IDs       `yaml:"ids"`
	Callbacks Callbacks `yaml:"callbacks"`
	Log       Log       `yaml:"log"`
	Metrics   Metrics   `yaml:"metrics"`
}

// IDs selects how handles declared without an id are named.
type IDs struct {
	Mode   string `yaml:"mode"`
	Prefix string `yaml:"prefix"`
}

// Callbacks holds defaults applied to every declared callback.
type Callbacks struct {
	PreventInitialCall bool `yaml:"prevent_initial_call"`
}

// Log configures the zap logger. Level is a zap level name; Format is json
// or console.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Metrics configures the protocol metrics.
type Metrics struct {
	Namespace string `yaml:"namespace"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		IDs:     IDs{Mode: IDsRandom},
		Log:     Log{Level: "info", Format: "json"},
		Metrics: Metrics{Namespace: "flatwire"},
	}
}

// Load reads YAML from r over the defaults. Unknown keys are rejected. An
// empty document yields the defaults.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFile loads path, then applies environment overrides. An empty path
// yields the defaults with overrides applied.
func LoadFile(path string) (Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}
	cfg, err := Load(bytes.NewReader(data))
	if err != nil {
		return Config{}, err
	}
	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnvOverrides applies FLATWIRE_IDS_MODE, FLATWIRE_IDS_PREFIX,
// FLATWIRE_LOG_LEVEL, FLATWIRE_LOG_FORMAT and
// FLATWIRE_PREVENT_INITIAL_CALL.
func ApplyEnvOverrides(cfg *Config) error {
	if v := env("FLATWIRE_IDS_MODE"); v != "" {
		cfg.IDs.Mode = v
	}
	if v, ok := os.LookupEnv("FLATWIRE_IDS_PREFIX"); ok {
		cfg.IDs.Prefix = strings.TrimSpace(v)
	}
	if v := env("FLATWIRE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := env("FLATWIRE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := env("FLATWIRE_PREVENT_INITIAL_CALL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: FLATWIRE_PREVENT_INITIAL_CALL: %w", err)
		}
		cfg.Callbacks.PreventInitialCall = b
	}
	return nil
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.IDs.Mode {
	case IDsRandom, IDsSequential:
	default:
		return fmt.Errorf("config: ids.mode must be %q or %q, got %q", IDsRandom, IDsSequential, c.IDs.Mode)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// IDAllocator builds the allocator selected by ids.mode.
func (c Config) IDAllocator() callback.IDAllocator {
	if c.IDs.Mode == IDsSequential {
		return callback.SequentialIDs(c.IDs.Prefix)
	}
	return callback.RandomIDs()
}

// CallbackOptions returns the callback options implied by the settings.
func (c Config) CallbackOptions() []callback.Option {
	return []callback.Option{
		callback.WithIDs(c.IDAllocator()),
		callback.PreventInitialCall(c.Callbacks.PreventInitialCall),
	}
}

// Logger builds a zap logger writing to stderr.
func (c Config) Logger() (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
