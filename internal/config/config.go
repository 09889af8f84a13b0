// Package config loads lognorm settings from flags, environment, .env and
// an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/atikulmunna/lognorm/internal/logger"
)

const envPrefix = "LOGNORM"

var ErrInvalidOutput = errors.New("invalid output format")

// Config holds runtime options for the CLI and the HTTP server.
type Config struct {
	Output       string       `mapstructure:"output"` // text|json
	Levels       []string     `mapstructure:"levels"`
	DropUnparsed bool         `mapstructure:"drop_unparsed"`
	Stats        bool         `mapstructure:"stats"`
	LogLevel     string       `mapstructure:"log_level"`
	LogFormat    string       `mapstructure:"log_format"`
	Reader       ReaderConfig `mapstructure:"reader"`
	Server       ServerConfig `mapstructure:"server"`
}

type ReaderConfig struct {
	JoinContinuations bool `mapstructure:"join_continuations"`
	MaxLineBytes      int  `mapstructure:"max_line_bytes"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output", "text")
	v.SetDefault("levels", []string{})
	v.SetDefault("drop_unparsed", false)
	v.SetDefault("stats", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("reader.join_continuations", true)
	v.SetDefault("reader.max_line_bytes", 1024*1024)
	v.SetDefault("server.addr", ":8080")
}

// Init points v at the config file (or the default search path) and reads
// it. A missing default file is not an error; an explicit one is.
func Init(v *viper.Viper, cfgFile string) error {
	// Local development overrides; a missing .env is fine.
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")
	v.SetConfigName(".lognorm")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Load unmarshals and validates the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Levels = splitLevels(cfg.Levels)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch strings.ToLower(c.Output) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q (want text or json)", ErrInvalidOutput, c.Output)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Reader.MaxLineBytes <= 0 {
		return fmt.Errorf("reader.max_line_bytes must be positive, got %d", c.Reader.MaxLineBytes)
	}
	return nil
}

// LevelSet returns the level filter as an uppercase lookup set. An empty
// set means no filtering.
func (c Config) LevelSet() map[string]bool {
	set := make(map[string]bool, len(c.Levels))
	for _, l := range c.Levels {
		set[strings.ToUpper(l)] = true
	}
	return set
}

// splitLevels accepts both list values and comma-separated strings as they
// arrive from flags or environment variables.
func splitLevels(in []string) []string {
	var out []string
	for _, item := range in {
		for _, l := range strings.Split(item, ",") {
			if l = strings.TrimSpace(l); l != "" {
				out = append(out, strings.ToUpper(l))
			}
		}
	}
	return out
}
