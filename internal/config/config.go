// Package config loads the settings of the crudy command line tool.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable, e.g. CRUDY_BASE_URL.
const EnvPrefix = "CRUDY"

const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

type Config struct {
	// BaseURL is the collection endpoint the resource commands operate on.
	BaseURL    string            `koanf:"base_url"    envconfig:"BASE_URL"    validate:"omitempty,url"`
	Timeout    time.Duration     `koanf:"timeout"     envconfig:"TIMEOUT"     validate:"gt=0"`
	Retry      bool              `koanf:"retry"       envconfig:"RETRY"`
	LogLevel   string            `koanf:"log_level"   envconfig:"LOG_LEVEL"   validate:"oneof=debug info warn error"`
	LogFormat  string            `koanf:"log_format"  envconfig:"LOG_FORMAT"  validate:"oneof=json console"`
	AuthScheme string            `koanf:"auth_scheme" envconfig:"AUTH_SCHEME"`
	AuthToken  string            `koanf:"auth_token"  envconfig:"AUTH_TOKEN"`
	Headers    map[string]string `koanf:"headers"     envconfig:"HEADERS"`
}

// Load builds the configuration from, in increasing priority: defaults, the
// YAML file at path (skipped when path is empty) and CRUDY_* environment
// variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Only variables that are set override; there are no envconfig defaults.
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func defaults() map[string]any {
	return map[string]any{
		"timeout":    "30s",
		"retry":      true,
		"log_level":  "info",
		"log_format": LogFormatConsole,
	}
}

func (c *Config) Validate() error {
	err := validator.New().Struct(c)

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("%s failed %q validation (value %v)", fe.Field(), fe.Tag(), fe.Value())
	}

	return err
}
