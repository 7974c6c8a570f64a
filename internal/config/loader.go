// Package config provides configuration loading, defaults, and validation for
// the LandQuant-Intelligence platform.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	apperrors "github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

// envPrefix is the environment variable prefix used by all platform settings.
const envPrefix = "LANDQUANT"

// newViper builds a pre-configured Viper instance with the platform's standard
// settings: YAML file type, LANDQUANT_ env prefix, automatic env binding, and
// a key replacer that maps "." → "_" so that nested keys like "postgres.host"
// resolve to "LANDQUANT_POSTGRES_HOST".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Load reads the YAML file at configPath, merges any LANDQUANT_* environment
// variable overrides, applies platform defaults for unset fields, and
// validates the result.  It returns a fully-populated *Config or a
// configuration error that callers must treat as fatal.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfiguration,
			fmt.Sprintf("failed to read config file %q", configPath))
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from LANDQUANT_* environment variables,
// with no config file required.  This is the preferred loading strategy for
// containerised deployments.
//
// Environment variable naming convention:
//
//	LANDQUANT_<SECTION>_<FIELD>   e.g.  LANDQUANT_POSTGRES_HOST,
//	                                    LANDQUANT_WORKER_CONCURRENCY
func LoadFromEnv() (*Config, error) {
	v := newViper()
	// No config file — rely solely on env vars and defaults.
	return unmarshalAndFinalize(v)
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfiguration,
			"failed to unmarshal configuration").WithDetail(err.Error())
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfiguration,
			"configuration validation failed").WithDetail(err.Error())
	}

	return cfg, nil
}

// Watch monitors configPath for changes and invokes onChange with the newly
// parsed Config whenever the file is modified on disk.  It is intended for
// hot-reloading non-critical settings such as log level and mismatch
// thresholds; callers are responsible for applying only the safe subset of
// changes at runtime.
//
// Watch is non-blocking; it starts a background goroutine managed by viper.
// If the changed file fails to parse or validate, onChange is not called so
// the application never observes an invalid snapshot.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)

	// Initial read — errors are ignored here; callers should call Load first.
	_ = v.ReadInConfig()

	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
}

// MustLoad is a convenience wrapper around Load that panics on any error.
// It is intended for use in main() where a config-load failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
