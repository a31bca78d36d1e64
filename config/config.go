// Package config loads the processor settings from a config file and GOENGINE_ prefixed environment variables
package config

import (
	"errors"
	"strings"
	"time"

	pkgErrors "github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/hellofresh/goengine-core"
	"github.com/hellofresh/goengine-core/commanding"
	"github.com/hellofresh/goengine-core/eventing"
	"github.com/hellofresh/goengine-core/retry"
)

// EnvPrefix is the prefix of the environment variables that override the config
const EnvPrefix = "GOENGINE"

type (
	// Config the settings of the command and event processors and their backends
	Config struct {
		Command  CommandConfig  `mapstructure:"command"`
		Event    EventConfig    `mapstructure:"event"`
		Retry    RetryConfig    `mapstructure:"retry"`
		Postgres PostgresConfig `mapstructure:"postgres"`
		AMQP     AMQPConfig     `mapstructure:"amqp"`
		Metrics  MetricsConfig  `mapstructure:"metrics"`
	}

	// CommandConfig the settings of the command processor
	CommandConfig struct {
		BatchSize          int           `mapstructure:"batch_size"`
		IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
		ScanInterval       time.Duration `mapstructure:"scan_interval"`
		PausePollInterval  time.Duration `mapstructure:"pause_poll_interval"`
		DuplicateCacheSize int           `mapstructure:"duplicate_cache_size"`
	}

	// EventConfig the settings of the event processor
	EventConfig struct {
		ProcessorName       string        `mapstructure:"processor_name"`
		BatchSize           int           `mapstructure:"batch_size"`
		IdleTimeout         time.Duration `mapstructure:"idle_timeout"`
		ScanInterval        time.Duration `mapstructure:"scan_interval"`
		WaitingRefreshAfter time.Duration `mapstructure:"waiting_refresh_after"`
	}

	// RetryConfig the backoff used for dispatch and checkpoint retries
	RetryConfig struct {
		MinDelay time.Duration `mapstructure:"min_delay"`
		MaxDelay time.Duration `mapstructure:"max_delay"`
	}

	// PostgresConfig the checkpoint store settings
	PostgresConfig struct {
		DSN               string `mapstructure:"dsn"`
		CheckpointTable   string `mapstructure:"checkpoint_table"`
		CorrectionChannel string `mapstructure:"correction_channel"`
	}

	// AMQPConfig the event transport settings
	AMQPConfig struct {
		DSN          string `mapstructure:"dsn"`
		Queue        string `mapstructure:"queue"`
		PublishQueue string `mapstructure:"publish_queue"`
		Prefetch     int    `mapstructure:"prefetch"`
	}

	// MetricsConfig the prometheus endpoint settings, an empty Addr disables the endpoint
	MetricsConfig struct {
		Addr string `mapstructure:"addr"`
	}
)

// Load reads the config file at path and applies the environment variable overrides.
// When path is empty a goengine config file in the working directory is used if it exists.
func Load(path string, logger goengine.Logger) (*Config, error) {
	if logger == nil {
		logger = goengine.NopLogger
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("goengine")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, pkgErrors.Wrap(err, "goengine: failed to read config")
		}

		logger.Warn("no config file found, using defaults and environment", nil)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, pkgErrors.Wrap(err, "goengine: failed to decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("command.batch_size", commanding.DefaultBatchSize)
	v.SetDefault("command.idle_timeout", commanding.DefaultIdleTimeout)
	v.SetDefault("command.scan_interval", commanding.DefaultScanInterval)
	v.SetDefault("command.pause_poll_interval", commanding.DefaultPausePollInterval)
	v.SetDefault("command.duplicate_cache_size", commanding.DefaultDuplicateCacheSize)

	v.SetDefault("event.processor_name", "default")
	v.SetDefault("event.batch_size", eventing.DefaultBatchSize)
	v.SetDefault("event.idle_timeout", eventing.DefaultIdleTimeout)
	v.SetDefault("event.scan_interval", eventing.DefaultScanInterval)
	v.SetDefault("event.waiting_refresh_after", eventing.DefaultWaitingRefreshAfter)

	v.SetDefault("retry.min_delay", retry.DefaultBackoff.Min)
	v.SetDefault("retry.max_delay", retry.DefaultBackoff.Max)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.checkpoint_table", "published_versions")
	v.SetDefault("postgres.correction_channel", "checkpoint_corrections")

	v.SetDefault("amqp.dsn", "")
	v.SetDefault("amqp.queue", "")
	v.SetDefault("amqp.publish_queue", "")
	v.SetDefault("amqp.prefetch", 100)

	v.SetDefault("metrics.addr", "")
}

// Validate returns an InvalidArgumentError for the first setting that is out of range
func (c *Config) Validate() error {
	switch {
	case c.Command.BatchSize <= 0:
		return goengine.InvalidArgumentError("command.batch_size")
	case c.Command.IdleTimeout <= 0:
		return goengine.InvalidArgumentError("command.idle_timeout")
	case c.Command.ScanInterval <= 0:
		return goengine.InvalidArgumentError("command.scan_interval")
	case c.Command.PausePollInterval <= 0:
		return goengine.InvalidArgumentError("command.pause_poll_interval")
	case c.Command.DuplicateCacheSize <= 0:
		return goengine.InvalidArgumentError("command.duplicate_cache_size")
	case strings.TrimSpace(c.Event.ProcessorName) == "":
		return goengine.InvalidArgumentError("event.processor_name")
	case c.Event.BatchSize <= 0:
		return goengine.InvalidArgumentError("event.batch_size")
	case c.Event.IdleTimeout <= 0:
		return goengine.InvalidArgumentError("event.idle_timeout")
	case c.Event.ScanInterval <= 0:
		return goengine.InvalidArgumentError("event.scan_interval")
	case c.Event.WaitingRefreshAfter <= 0:
		return goengine.InvalidArgumentError("event.waiting_refresh_after")
	case c.Retry.MinDelay <= 0:
		return goengine.InvalidArgumentError("retry.min_delay")
	case c.Retry.MaxDelay < c.Retry.MinDelay:
		return goengine.InvalidArgumentError("retry.max_delay")
	case strings.TrimSpace(c.Postgres.CheckpointTable) == "":
		return goengine.InvalidArgumentError("postgres.checkpoint_table")
	case c.AMQP.Prefetch <= 0:
		return goengine.InvalidArgumentError("amqp.prefetch")
	}

	return nil
}

// CommandOptions returns the options of a commanding.Processor
func (c *Config) CommandOptions() commanding.Options {
	return commanding.Options{
		BatchSize:          c.Command.BatchSize,
		IdleTimeout:        c.Command.IdleTimeout,
		ScanInterval:       c.Command.ScanInterval,
		PausePollInterval:  c.Command.PausePollInterval,
		DuplicateCacheSize: c.Command.DuplicateCacheSize,
	}
}

// EventOptions returns the options of a eventing.Processor
func (c *Config) EventOptions() eventing.Options {
	return eventing.Options{
		BatchSize:           c.Event.BatchSize,
		IdleTimeout:         c.Event.IdleTimeout,
		ScanInterval:        c.Event.ScanInterval,
		WaitingRefreshAfter: c.Event.WaitingRefreshAfter,
	}
}

// RetryBackoff returns the backoff of a retry.Retrier
func (c *Config) RetryBackoff() retry.Backoff {
	return retry.Backoff{
		Min: c.Retry.MinDelay,
		Max: c.Retry.MaxDelay,
	}
}
