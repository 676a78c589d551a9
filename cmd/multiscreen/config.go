package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds tool configuration. Values come from
// ~/.config/multiscreen/config.toml and MULTISCREEN_* environment
// variables; flags override both.
type Config struct {
	File     string `mapstructure:"file"`
	Engine   string `mapstructure:"engine"`
	StoreDir string `mapstructure:"store_dir"`
	Channel  string `mapstructure:"channel"`
	Verbose  bool   `mapstructure:"verbose"`
}

// Load reads configuration from file and env. Env var overrides use prefix
// MULTISCREEN_.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("file", "show.screens")
	v.SetDefault("engine", "expr")
	v.SetDefault("store_dir", filepath.Join(os.Getenv("HOME"), ".local", "share", "multiscreen"))
	v.SetDefault("channel", "screens")
	v.SetDefault("verbose", false)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("MULTISCREEN_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "multiscreen"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("MULTISCREEN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// missing config file is fine, defaults and env carry it
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
