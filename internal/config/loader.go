package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// ConfigPaths holds the path to the optional main configuration file.
type ConfigPaths struct {
	Main string // path to hustlexpd.toml; empty means "file optional"
}

// DefaultConfigPaths returns the conventional configuration file location.
func DefaultConfigPaths() ConfigPaths {
	return ConfigPaths{Main: "hustlexpd.toml"}
}

// LoadConfig layers defaults, an optional TOML file, and HUSTLEXP_-prefixed
// environment variables into a validated Config, mirroring the teacher's
// viper-based loader.
func LoadConfig(paths ConfigPaths) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if paths.Main != "" {
		v.SetConfigFile(paths.Main)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: reading %s: %w", paths.Main, err)
			}
		}
	}

	v.SetEnvPrefix("HUSTLEXP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// DATABASE_URL is a de facto standard outside the HUSTLEXP_ namespace
	// (platforms like Heroku/Render inject it directly); honor it as an
	// override of database.url when set.
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		v.Set("database.url", dsn)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDefaultConfig loads configuration using conventional paths, for
// callers (tests, short-lived commands) that don't need a custom location.
func LoadDefaultConfig() (*Config, error) {
	return LoadConfig(DefaultConfigPaths())
}
