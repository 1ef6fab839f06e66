package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds tool settings that are not part of a project definition
type Config struct {
	CacheDir    string `mapstructure:"cache_dir"`
	Offline     bool   `mapstructure:"offline"`
	Parallelism int    `mapstructure:"parallelism"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	JavaHome    string `mapstructure:"java_home"`
	GPGKey      string `mapstructure:"gpg_key"`
	OSVURL      string `mapstructure:"osv_url"`
	MetricsFile string `mapstructure:"metrics_file"`
	NoColor     bool   `mapstructure:"no_color"`
}

// defaultCacheDir is ~/.cauldron/repository, or relative to the working directory without a home
func defaultCacheDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cauldron", "repository")
	}
	return filepath.Join(".cauldron", "repository")
}

func configDefaults() map[string]any {
	return map[string]any{
		"cache_dir":    defaultCacheDir(),
		"offline":      false,
		"parallelism":  0,
		"log_level":    "info",
		"log_format":   "text",
		"java_home":    "",
		"gpg_key":      "",
		"osv_url":      "",
		"metrics_file": "",
		"no_color":     false,
	}
}

// LoadConfig merges defaults, the config file, .env, CAULDRON_* variables and flags,
// in increasing order of precedence
func LoadConfig(cmd *cobra.Command, projectDir, configFile string) (*Config, error) {
	// .env only fills variables that are not already set
	if err := godotenv.Load(filepath.Join(projectDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for key, value := range configDefaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".cauldron")
		v.AddConfigPath(projectDir)
		if userConfig, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(userConfig, "cauldron"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("cauldron")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	for _, name := range []string{"offline", "parallelism", "log-level", "log-format", "java-home", "gpg-key", "metrics-file", "no-color", "cache-dir"} {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			if err := v.BindPFlag(strings.ReplaceAll(name, "-", "_"), flag); err != nil {
				return nil, err
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &c, nil
}
