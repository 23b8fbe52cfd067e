// Package config loads and watches the collector configuration.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	meridian "github.com/meridianlive/meridian-go"
)

// Duration is a time.Duration that unmarshals from Go duration strings
// ("90s", "5m") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all configuration for the collector daemon.
type Config struct {
	Platform  PlatformConfig  `yaml:"platform"`
	Collector CollectorConfig `yaml:"collector"`
	Storage   StorageConfig   `yaml:"storage"`
	Health    HealthConfig    `yaml:"health"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PlatformConfig configures the SDK client. An empty refresh token falls
// back to the SDK's environment and credentials-file resolution.
type PlatformConfig struct {
	BaseURL         string   `yaml:"base_url"`
	RefreshToken    string   `yaml:"refresh_token"`
	CredentialsFile string   `yaml:"credentials_file"`
	RateLimit       float64  `yaml:"rate_limit"`
	RateBurst       int      `yaml:"rate_burst"`
	Timeout         Duration `yaml:"timeout"`
	Debug           bool     `yaml:"debug"`
}

// CollectorConfig configures what is collected and when.
type CollectorConfig struct {
	Schedule                string                  `yaml:"schedule"`
	Window                  Duration                `yaml:"window"`
	Interval                Duration                `yaml:"interval"`
	Facilities              []string                `yaml:"facilities"`
	Metrics                 []meridian.DeviceMetric `yaml:"metrics"`
	MaxConcurrentFacilities int                     `yaml:"max_concurrent_facilities"`
	MaxPointBatch           int                     `yaml:"max_point_batch"`
	StrictResolution        bool                    `yaml:"strict_resolution"`
}

// Filter returns the read filter described by the collector section.
func (c CollectorConfig) Filter() meridian.Filter {
	return meridian.Filter{Facilities: c.Facilities, Metrics: c.Metrics}
}

// StorageConfig selects the archive backends. Every backend is optional
// but at least one must be configured.
type StorageConfig struct {
	Postgres *DatabaseConfig `yaml:"postgres"`
	MySQL    *DatabaseConfig `yaml:"mysql"`
	SQLite   *SQLiteConfig   `yaml:"sqlite"`
	MQTT     *MQTTConfig     `yaml:"mqtt"`
}

// Empty reports whether no backend is configured.
func (s StorageConfig) Empty() bool {
	return s.Postgres == nil && s.MySQL == nil && s.SQLite == nil && s.MQTT == nil
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`
}

type HealthConfig struct {
	Address string `yaml:"address"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration file, expands environment variables,
// applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into a map first so env expansion sees normalized YAML.
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw config: %w", err)
	}
	data, err = yaml.Marshal(rawConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Platform.BaseURL == "" {
		config.Platform.BaseURL = meridian.DefaultBaseURL
	}
	if config.Collector.Schedule == "" {
		config.Collector.Schedule = "*/5 * * * *"
	}
	if config.Collector.Window == 0 {
		config.Collector.Window = Duration(5 * time.Minute)
	}
	if config.Collector.Interval == 0 {
		config.Collector.Interval = Duration(time.Minute)
	}
	if config.Health.Address == "" {
		config.Health.Address = ":8081"
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
}

// Validate reports the first problem that would keep the collector from
// starting.
func (c *Config) Validate() error {
	if _, err := cron.ParseStandard(c.Collector.Schedule); err != nil {
		return fmt.Errorf("collector: invalid schedule %q: %v", c.Collector.Schedule, err)
	}
	if c.Collector.Window <= 0 {
		return fmt.Errorf("collector: window must be positive, got %s", c.Collector.Window.Std())
	}
	if c.Collector.Interval <= 0 || c.Collector.Interval.Std()%time.Second != 0 {
		return fmt.Errorf("collector: interval must be a positive whole number of seconds, got %s", c.Collector.Interval.Std())
	}
	if err := c.Collector.Filter().Validate(); err != nil {
		return fmt.Errorf("collector: %w", err)
	}
	if c.Storage.Empty() {
		return fmt.Errorf("storage: at least one backend is required")
	}
	return nil
}

// debounceDelay coalesces the bursts of write events editors produce when
// saving a file.
const debounceDelay = 2 * time.Second

// Watch invokes onChange with a freshly loaded configuration whenever the
// file changes. A change that fails to load is logged and ignored, leaving
// the previous configuration in effect. The watch runs for the lifetime of
// the process.
func Watch(path string, logger *logrus.Logger, onChange func(*Config)) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	var mu sync.Mutex
	var pending *time.Timer
	v.OnConfigChange(func(event fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()
		if pending != nil {
			pending.Stop()
		}
		pending = time.AfterFunc(debounceDelay, func() {
			config, err := Load(path)
			if err != nil {
				logger.WithError(err).Warn("ignoring invalid configuration change")
				return
			}
			logger.WithField("path", event.Name).Info("configuration reloaded")
			onChange(config)
		})
	})
	v.WatchConfig()
	return nil
}
