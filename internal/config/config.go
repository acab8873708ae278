// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	AdminToken  string   `mapstructure:"admintoken"`

	// Remote store settings. Both must be present and non-placeholder for
	// the remote backend to be selected; otherwise the local store is used.
	RemoteEndpoint  string `mapstructure:"remoteendpoint"`
	RemoteAccessKey string `mapstructure:"remoteaccesskey"`

	// File paths
	StoragePath  string `mapstructure:"storagepath"`
	DatabaseName string `mapstructure:"-"` // Derived from other settings

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Event log settings
	EventCap          int `mapstructure:"eventcap"`
	SessionGapSeconds int `mapstructure:"sessiongapseconds"`

	// Insight thresholds. Configurable, but the defaults are part of the
	// behavioral contract and should not normally change.
	InsightMinSampleInflow int     `mapstructure:"insightminsampleinflow"`
	InsightConversionFloor float64 `mapstructure:"insightconversionfloor"`
}

var (
	cfg  *Config
	once sync.Once
)

// placeholderMarkers are substrings that identify a remote credential that
// was copied from an example env file and never filled in.
var placeholderMarkers = []string{"your-", "changeme", "placeholder", "xxxx"}

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		// Set defaults
		v.SetDefault("appname", "pagewatch")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("admintoken", "")
		v.SetDefault("remoteendpoint", "")
		v.SetDefault("remoteaccesskey", "")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("eventcap", 1000)
		v.SetDefault("sessiongapseconds", 1800)
		v.SetDefault("insightminsampleinflow", 50)
		v.SetDefault("insightconversionfloor", 1.0)

		// Bind environment variables
		v.BindEnv("appname", "PAGEWATCH_APP_NAME")
		v.BindEnv("appport", "PAGEWATCH_APP_PORT")
		v.BindEnv("environment", "PAGEWATCH_ENV")
		v.BindEnv("loglevel", "PAGEWATCH_LOG_LEVEL")
		v.BindEnv("admintoken", "PAGEWATCH_ADMIN_TOKEN")
		v.BindEnv("remoteendpoint", "PAGEWATCH_REMOTE_ENDPOINT")
		v.BindEnv("remoteaccesskey", "PAGEWATCH_REMOTE_ACCESS_KEY")
		v.BindEnv("storagepath", "PAGEWATCH_STORAGE_PATH")
		v.BindEnv("logsdir", "PAGEWATCH_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "PAGEWATCH_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "PAGEWATCH_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "PAGEWATCH_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("eventcap", "PAGEWATCH_EVENT_CAP")
		v.BindEnv("sessiongapseconds", "PAGEWATCH_SESSION_GAP_SECONDS")
		v.BindEnv("insightminsampleinflow", "PAGEWATCH_INSIGHT_MIN_SAMPLE_INFLOW")
		v.BindEnv("insightconversionfloor", "PAGEWATCH_INSIGHT_CONVERSION_FLOOR")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		// Validate
		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		// Set derived values
		cfg.DatabaseName = cfg.GetDatabasePath()
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.EventCap <= 0 {
		return fmt.Errorf("invalid event cap: %d", c.EventCap)
	}

	return nil
}

// GetDatabasePath returns the local store database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.StoragePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// HasRemoteConfig reports whether the remote store credentials are present
// and look usable. Placeholder values left over from an example env file do
// not count as configured.
func (c *Config) HasRemoteConfig() bool {
	return isUsableCredential(c.RemoteEndpoint) && isUsableCredential(c.RemoteAccessKey)
}

func isUsableCredential(value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	lower := strings.ToLower(value)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port.
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetLogLevel returns the log level as a string.
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
