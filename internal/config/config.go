// Package config holds the settings of the taskpool command and binds them
// to command-line flags, environment variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/memduhb/custom-thread-pool/internal/logger"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to environment variable names, e.g.
// TASKPOOL_POOL_WORKERS overrides pool.workers.
const EnvPrefix = "TASKPOOL"

type Config struct {
	Pool    PoolConfig    `yaml:"pool"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Demo    DemoConfig    `yaml:"demo"`
}

type PoolConfig struct {
	// Name labels logs and metrics. A random name is used when empty.
	Name    string `yaml:"name"`
	Workers int    `yaml:"workers"`
}

type LoggingConfig struct {
	Severity string `yaml:"severity"`
	Format   string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// DemoConfig shapes the synthetic workload submitted by the driver.
type DemoConfig struct {
	Tasks        int           `yaml:"tasks"`
	Producers    int           `yaml:"producers"`
	TaskDuration time.Duration `yaml:"task-duration"`
	// SubmitRate caps submissions per second across all producers; 0 means
	// no limit.
	SubmitRate float64 `yaml:"submit-rate"`
}

type flagBinding struct {
	key  string
	flag string
}

var bindings = []flagBinding{
	{"pool.name", "name"},
	{"pool.workers", "workers"},
	{"logging.severity", "log-severity"},
	{"logging.format", "log-format"},
	{"metrics.enabled", "metrics"},
	{"metrics.address", "metrics-address"},
	{"demo.tasks", "tasks"},
	{"demo.producers", "producers"},
	{"demo.task-duration", "task-duration"},
	{"demo.submit-rate", "submit-rate"},
}

// BindFlags registers the configuration flags on flagSet and returns a
// viper instance bound to them and to the environment.
func BindFlags(flagSet *pflag.FlagSet) (*viper.Viper, error) {
	flagSet.StringP("name", "", "", "Name of the thread pool, used in logs and metrics. Random when empty.")
	flagSet.IntP("workers", "w", 4, "Number of worker goroutines.")
	flagSet.StringP("log-severity", "", "info", "Logging severity, one of [trace, debug, info, warning, error, off].")
	flagSet.StringP("log-format", "", logger.FormatText, "Log format, one of [text, json].")
	flagSet.BoolP("metrics", "", false, "Serve Prometheus metrics.")
	flagSet.StringP("metrics-address", "", ":2112", "Listen address of the metrics endpoint.")
	flagSet.IntP("tasks", "n", 100, "Number of demo tasks to submit.")
	flagSet.IntP("producers", "p", 1, "Number of goroutines submitting demo tasks.")
	flagSet.DurationP("task-duration", "", 500*time.Millisecond, "How long each demo task sleeps.")
	flagSet.Float64P("submit-rate", "", 0, "Maximum demo submissions per second, 0 for unlimited.")

	v := viper.New()
	for _, b := range bindings {
		if err := v.BindPFlag(b.key, flagSet.Lookup(b.flag)); err != nil {
			return nil, fmt.Errorf("binding flag %q: %w", b.flag, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Load reads configFile, if set, into v and decodes the merged settings.
// Flags explicitly set on the command line take precedence over
// environment variables, which take precedence over the file.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error while reading the config file: %w", err)
		}
	}

	var c Config
	err := v.Unmarshal(&c, viper.DecodeHook(DecodeHook()), func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		return nil, fmt.Errorf("error while unmarshaling the config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// DecodeHook will be called by Viper while constructing the config object.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Pool.Workers <= 0 {
		errs = append(errs, fmt.Errorf("pool.workers must be positive, got %d", c.Pool.Workers))
	}
	if _, err := logger.ParseSeverity(c.Logging.Severity); err != nil {
		errs = append(errs, fmt.Errorf("logging.severity: %w", err))
	}
	switch strings.ToLower(c.Logging.Format) {
	case logger.FormatText, logger.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errs = append(errs, errors.New("metrics.address is required when metrics are enabled"))
	}
	if c.Demo.Tasks < 0 {
		errs = append(errs, fmt.Errorf("demo.tasks must not be negative, got %d", c.Demo.Tasks))
	}
	if c.Demo.Producers <= 0 {
		errs = append(errs, fmt.Errorf("demo.producers must be positive, got %d", c.Demo.Producers))
	}
	if c.Demo.TaskDuration < 0 {
		errs = append(errs, fmt.Errorf("demo.task-duration must not be negative, got %s", c.Demo.TaskDuration))
	}
	if c.Demo.SubmitRate < 0 {
		errs = append(errs, fmt.Errorf("demo.submit-rate must not be negative, got %g", c.Demo.SubmitRate))
	}

	return errors.Join(errs...)
}

// WriteYAML writes c in the config file format accepted by Load.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
