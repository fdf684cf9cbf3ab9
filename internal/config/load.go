package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from archie-config.{yaml,json} in $HOME or the
// working directory, applies ARCHIE_* environment overrides, and falls back to
// Default() values for anything unset. A missing config file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("archie-config")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ARCHIE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// An explicit weights table in the file replaces the defaults wholesale;
	// a partially specified table would silently zero the missing intents.
	if len(cfg.Router.Weights) == 0 {
		cfg.Router.Weights = DefaultWeights()
	}
	if key := v.GetString("embedding.api_key"); key != "" {
		cfg.Embedding.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
