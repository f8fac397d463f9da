// Package config provides configuration management for tunearr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultCheckInterval   = time.Hour
	defaultDelayMin        = 60 * time.Second
	defaultDelayMax        = 120 * time.Second
	defaultAudioQuality    = "320"
	defaultExtractTimeout  = 10 * time.Minute
	defaultListTimeout     = 2 * time.Minute
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	// DownloadDir is where completed MP3 files are stored.
	DownloadDir string `mapstructure:"download_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// MonitorConfig holds playlist scan scheduling and rate-limit configuration.
type MonitorConfig struct {
	// CheckInterval is how often playlists are re-scanned for new tracks.
	CheckInterval time.Duration `mapstructure:"check_interval"`

	// Cron optionally replaces the interval ticker with a cron schedule.
	// Standard 5-field format, e.g. "0 */6 * * *" for every 6 hours.
	Cron string `mapstructure:"cron"`

	// DelayEnabled turns on the randomized inter-download politeness delay.
	DelayEnabled bool `mapstructure:"delay_enabled"`

	// DelayMin and DelayMax bound the uniformly random delay between
	// consecutive downloads within one scan.
	DelayMin time.Duration `mapstructure:"delay_min"`
	DelayMax time.Duration `mapstructure:"delay_max"`

	// ValidateOnStartup runs a download validation pass on boot, resetting
	// records whose files have gone missing back to pending.
	ValidateOnStartup bool `mapstructure:"validate_on_startup"`
}

// ExtractorConfig holds media extraction tool configuration.
type ExtractorConfig struct {
	// BinaryPath is the path to the yt-dlp binary (empty = $PATH lookup).
	BinaryPath string `mapstructure:"binary_path"`

	// AudioQuality is the target MP3 bitrate in kbit/s.
	AudioQuality string `mapstructure:"audio_quality"`

	// ListTimeout bounds a playlist listing invocation.
	ListTimeout time.Duration `mapstructure:"list_timeout"`

	// ExtractTimeout bounds a single download/transcode invocation.
	ExtractTimeout time.Duration `mapstructure:"extract_timeout"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with TUNEARR_ and use underscores
// for nesting. Example: TUNEARR_MONITOR_CHECK_INTERVAL=30m.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/tunearr")
		v.AddConfigPath("$HOME/.tunearr")
	}

	v.SetEnvPrefix("TUNEARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file so defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.dsn", "tunearr.db")
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.download_dir", "./downloads")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Monitor defaults
	v.SetDefault("monitor.check_interval", defaultCheckInterval)
	v.SetDefault("monitor.cron", "")
	v.SetDefault("monitor.delay_enabled", true)
	v.SetDefault("monitor.delay_min", defaultDelayMin)
	v.SetDefault("monitor.delay_max", defaultDelayMax)
	v.SetDefault("monitor.validate_on_startup", true)

	// Extractor defaults
	v.SetDefault("extractor.binary_path", "yt-dlp")
	v.SetDefault("extractor.audio_quality", defaultAudioQuality)
	v.SetDefault("extractor.list_timeout", defaultListTimeout)
	v.SetDefault("extractor.extract_timeout", defaultExtractTimeout)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Storage.DownloadDir == "" {
		return fmt.Errorf("storage.download_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Monitor.CheckInterval < time.Minute && c.Monitor.Cron == "" {
		return fmt.Errorf("monitor.check_interval must be at least 1m")
	}
	if c.Monitor.DelayEnabled {
		if c.Monitor.DelayMin < 0 || c.Monitor.DelayMax < 0 {
			return fmt.Errorf("monitor delay bounds must be non-negative")
		}
		if c.Monitor.DelayMin > c.Monitor.DelayMax {
			return fmt.Errorf("monitor.delay_min must not exceed monitor.delay_max")
		}
	}

	if c.Extractor.BinaryPath == "" {
		return fmt.Errorf("extractor.binary_path is required")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
