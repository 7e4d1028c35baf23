// Package config loads isochk's runtime configuration: cluster nodes, the
// nemesis schedule path, and defaults for the generator, from a TOML file
// and ISOCHK_-prefixed environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	Nodes           []string      `mapstructure:"nodes"`
	NemesisSchedule string        `mapstructure:"nemesis_schedule"`
	TxCount         int           `mapstructure:"tx_count"`
	ObjectCount     int           `mapstructure:"object_count"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	Verbose         bool          `mapstructure:"verbose"`
}

func defaults() Config {
	return Config{
		TxCount:        100,
		ObjectCount:    10,
		ConnectTimeout: 30 * time.Second,
	}
}

// Load reads configPath (if non-empty) plus ISOCHK_-prefixed environment
// variables into a Config, environment taking precedence. A missing
// configPath is not an error: isochk runs from flags and env alone.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ISOCHK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	def := defaults()
	v.SetDefault("tx_count", def.TxCount)
	v.SetDefault("object_count", def.ObjectCount)
	v.SetDefault("connect_timeout", def.ConnectTimeout)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
