// Package config provides configuration management for the dupdetect command.
// It supports loading configuration from YAML files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/dupdetect/pkg/duplicates"
)

// OutputFormat defines the supported output formats for command results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Default configuration values.
const (
	DefaultTimeout      = 30 * time.Minute
	DefaultOutputFormat = OutputFormatText
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "auto"
	DefaultConfigDir    = ".dupdetect"
	DefaultConfigFile   = "config.yaml"
	DefaultLockTTL      = 30 * time.Minute
)

// RunLogConfig controls the detection_runs ledger.
type RunLogConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RedisConfig holds the optional Redis connection used for the run lock
// and run-completed events.
type RedisConfig struct {
	// Addr is host:port. Empty disables Redis.
	Addr     string        `yaml:"addr,omitempty"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	LockTTL  time.Duration `yaml:"lock_ttl,omitempty"`

	// PublishEvents publishes a run-completed event after each run.
	PublishEvents bool `yaml:"publish_events,omitempty"`
}

// Enabled reports whether Redis is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// CLIConfig holds the dupdetect configuration settings.
type CLIConfig struct {
	// Detection holds thresholds and policies for the heuristics.
	Detection duplicates.Config

	// Timeout bounds a whole command.
	Timeout time.Duration

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat

	// LogLevel is debug, info, warn or error.
	LogLevel string

	// LogFormat is auto, json or console.
	LogFormat string

	// MetricsFile, when set, receives Prometheus text-format metrics after a run.
	MetricsFile string

	RunLog RunLogConfig
	Redis  RedisConfig

	// Debug forces debug logging.
	Debug bool
}

// configFile mirrors CLIConfig with durations as strings.
type configFile struct {
	CrossOrgThreshold        *float64      `yaml:"cross_org_threshold,omitempty"`
	SameGroupThreshold       *float64      `yaml:"same_group_threshold,omitempty"`
	DateTolerance            string        `yaml:"date_tolerance,omitempty"`
	AssumeOverlapWhenMissing *bool         `yaml:"assume_overlap_when_missing,omitempty"`
	CrossOrgIncludeUnowned   *bool         `yaml:"cross_org_include_unowned,omitempty"`
	CrossReferenceType       string        `yaml:"cross_reference_type,omitempty"`
	BatchSize                int           `yaml:"batch_size,omitempty"`
	Timeout                  string        `yaml:"timeout,omitempty"`
	OutputFormat             OutputFormat  `yaml:"output_format,omitempty"`
	LogLevel                 string        `yaml:"log_level,omitempty"`
	LogFormat                string        `yaml:"log_format,omitempty"`
	MetricsFile              string        `yaml:"metrics_file,omitempty"`
	RunLog                   *RunLogConfig `yaml:"run_log,omitempty"`
	Redis                    *redisFile    `yaml:"redis,omitempty"`
	Debug                    bool          `yaml:"debug,omitempty"`
}

type redisFile struct {
	Addr          string `yaml:"addr,omitempty"`
	Password      string `yaml:"password,omitempty"`
	DB            int    `yaml:"db,omitempty"`
	LockTTL       string `yaml:"lock_ttl,omitempty"`
	PublishEvents bool   `yaml:"publish_events,omitempty"`
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		Detection:    duplicates.DefaultConfig(),
		Timeout:      DefaultTimeout,
		OutputFormat: DefaultOutputFormat,
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		RunLog:       RunLogConfig{Enabled: true},
		Redis:        RedisConfig{LockTTL: DefaultLockTTL},
	}
}

// ConfigDir returns the configuration directory path.
// Uses $DUPDETECT_CONFIG_DIR if set, otherwise ~/.dupdetect
func ConfigDir() (string, error) {
	if dir := os.Getenv("DUPDETECT_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.dupdetect/config.yaml or $DUPDETECT_CONFIG_DIR/config.yaml)
// 3. Environment variables (DUPDETECT_*)
//
// Command flags are applied by the caller and validated again.
func LoadConfig() (*CLIConfig, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.CrossOrgThreshold != nil {
		cfg.Detection.CrossOrgThreshold = *fileCfg.CrossOrgThreshold
	}
	if fileCfg.SameGroupThreshold != nil {
		cfg.Detection.SameGroupThreshold = *fileCfg.SameGroupThreshold
	}
	if fileCfg.DateTolerance != "" {
		d, err := ParseDuration(fileCfg.DateTolerance)
		if err != nil {
			return fmt.Errorf("parsing date_tolerance: %w", err)
		}
		cfg.Detection.DateTolerance = d
	}
	if fileCfg.AssumeOverlapWhenMissing != nil {
		cfg.Detection.AssumeOverlapWhenMissing = *fileCfg.AssumeOverlapWhenMissing
	}
	if fileCfg.CrossOrgIncludeUnowned != nil {
		cfg.Detection.CrossOrgIncludeUnowned = *fileCfg.CrossOrgIncludeUnowned
	}
	if fileCfg.CrossReferenceType != "" {
		cfg.Detection.CrossReferenceType = fileCfg.CrossReferenceType
	}
	if fileCfg.BatchSize != 0 {
		cfg.Detection.BatchSize = fileCfg.BatchSize
	}
	if fileCfg.Timeout != "" {
		timeout, err := ParseDuration(fileCfg.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		cfg.Timeout = timeout
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.LogFormat != "" {
		cfg.LogFormat = fileCfg.LogFormat
	}
	if fileCfg.MetricsFile != "" {
		cfg.MetricsFile = fileCfg.MetricsFile
	}
	if fileCfg.RunLog != nil {
		cfg.RunLog = *fileCfg.RunLog
	}
	if r := fileCfg.Redis; r != nil {
		cfg.Redis.Addr = r.Addr
		cfg.Redis.Password = r.Password
		cfg.Redis.DB = r.DB
		cfg.Redis.PublishEvents = r.PublishEvents
		if r.LockTTL != "" {
			ttl, err := ParseDuration(r.LockTTL)
			if err != nil {
				return fmt.Errorf("parsing redis.lock_ttl: %w", err)
			}
			cfg.Redis.LockTTL = ttl
		}
	}
	cfg.Debug = fileCfg.Debug

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
// Malformed numeric values are errors rather than silently ignored.
func loadFromEnv(cfg *CLIConfig) error {
	if v := os.Getenv("DUPDETECT_CROSS_ORG_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DUPDETECT_CROSS_ORG_THRESHOLD: %w", err)
		}
		cfg.Detection.CrossOrgThreshold = f
	}

	if v := os.Getenv("DUPDETECT_SAME_GROUP_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DUPDETECT_SAME_GROUP_THRESHOLD: %w", err)
		}
		cfg.Detection.SameGroupThreshold = f
	}

	if v := os.Getenv("DUPDETECT_DATE_TOLERANCE"); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DUPDETECT_DATE_TOLERANCE: %w", err)
		}
		cfg.Detection.DateTolerance = d
	}

	if v := os.Getenv("DUPDETECT_ASSUME_OVERLAP_WHEN_MISSING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DUPDETECT_ASSUME_OVERLAP_WHEN_MISSING: %w", err)
		}
		cfg.Detection.AssumeOverlapWhenMissing = b
	}

	if v := os.Getenv("DUPDETECT_CROSS_ORG_INCLUDE_UNOWNED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DUPDETECT_CROSS_ORG_INCLUDE_UNOWNED: %w", err)
		}
		cfg.Detection.CrossOrgIncludeUnowned = b
	}

	if v := os.Getenv("DUPDETECT_CROSS_REFERENCE_TYPE"); v != "" {
		cfg.Detection.CrossReferenceType = v
	}

	if v := os.Getenv("DUPDETECT_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DUPDETECT_BATCH_SIZE: %w", err)
		}
		cfg.Detection.BatchSize = n
	}

	if v := os.Getenv("DUPDETECT_TIMEOUT"); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DUPDETECT_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}

	if v := os.Getenv("DUPDETECT_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if v := os.Getenv("DUPDETECT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("DUPDETECT_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	if v := os.Getenv("DUPDETECT_METRICS_FILE"); v != "" {
		cfg.MetricsFile = v
	}

	if v := os.Getenv("DUPDETECT_RUN_LOG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DUPDETECT_RUN_LOG: %w", err)
		}
		cfg.RunLog.Enabled = b
	}

	if v := os.Getenv("DUPDETECT_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}

	if v := os.Getenv("DUPDETECT_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("DUPDETECT_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DUPDETECT_REDIS_DB: %w", err)
		}
		cfg.Redis.DB = n
	}

	if v := os.Getenv("DUPDETECT_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	return nil
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if err := c.Detection.Validate(); err != nil {
		return err
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level: %q (must be debug, info, warn, or error)", c.LogLevel)
	}

	switch c.LogFormat {
	case "auto", "json", "console":
	default:
		return fmt.Errorf("invalid log_format: %q (must be auto, json, or console)", c.LogFormat)
	}

	if c.Redis.Enabled() && c.Redis.LockTTL <= 0 {
		return fmt.Errorf("redis.lock_ttl must be positive")
	}

	return nil
}

// EffectiveLogLevel returns debug when Debug is set.
func (c *CLIConfig) EffectiveLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// ParseDuration extends time.ParseDuration with a whole-day "d" suffix,
// e.g. "90d".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// formatDuration renders whole days with the "d" suffix.
func formatDuration(d time.Duration) string {
	const day = 24 * time.Hour
	if d > 0 && d%day == 0 {
		return fmt.Sprintf("%dd", d/day)
	}
	return d.String()
}

// WriteYAML writes the effective configuration in config file form.
// The Redis password is masked.
func (c *CLIConfig) WriteYAML(w io.Writer) error {
	cross := c.Detection.CrossOrgThreshold
	same := c.Detection.SameGroupThreshold
	assume := c.Detection.AssumeOverlapWhenMissing
	unowned := c.Detection.CrossOrgIncludeUnowned
	runLog := c.RunLog

	fileCfg := configFile{
		CrossOrgThreshold:        &cross,
		SameGroupThreshold:       &same,
		DateTolerance:            formatDuration(c.Detection.DateTolerance),
		AssumeOverlapWhenMissing: &assume,
		CrossOrgIncludeUnowned:   &unowned,
		CrossReferenceType:       c.Detection.CrossReferenceType,
		BatchSize:                c.Detection.BatchSize,
		Timeout:                  formatDuration(c.Timeout),
		OutputFormat:             c.OutputFormat,
		LogLevel:                 c.LogLevel,
		LogFormat:                c.LogFormat,
		MetricsFile:              c.MetricsFile,
		RunLog:                   &runLog,
		Debug:                    c.Debug,
	}
	if c.Redis.Enabled() {
		password := ""
		if c.Redis.Password != "" {
			password = "********"
		}
		fileCfg.Redis = &redisFile{
			Addr:          c.Redis.Addr,
			Password:      password,
			DB:            c.Redis.DB,
			LockTTL:       formatDuration(c.Redis.LockTTL),
			PublishEvents: c.Redis.PublishEvents,
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&fileCfg); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return enc.Close()
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
