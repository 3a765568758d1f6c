// Package cmd provides the dupdetect subcommands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/dupdetect/config"
	"github.com/otherjamesbrown/dupdetect/credentials"
	"github.com/otherjamesbrown/dupdetect/pkg/db"
	"github.com/otherjamesbrown/dupdetect/pkg/logging"
)

// rootFlags holds the root command's persistent flags.
type rootFlags struct {
	timeout   time.Duration
	output    string
	debug     bool
	logLevel  string
	logFormat string
}

var globalFlags rootFlags

// AddRootFlags binds the persistent flags shared by every subcommand.
func AddRootFlags(root *cobra.Command) {
	root.PersistentFlags().DurationVar(&globalFlags.timeout, "timeout", 0, "overall command timeout (e.g., 10m)")
	root.PersistentFlags().StringVarP(&globalFlags.output, "output", "o", "", "output format: text, json, yaml")
	root.PersistentFlags().BoolVar(&globalFlags.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVar(&globalFlags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&globalFlags.logFormat, "log-format", "", "log format: auto, json, console")
}

// applyFlags overlays flag values onto cfg and validates the result.
func applyFlags(cfg *config.CLIConfig, f rootFlags) error {
	if f.timeout != 0 {
		cfg.Timeout = f.timeout
	}
	if f.output != "" {
		cfg.OutputFormat = config.OutputFormat(f.output)
	}
	if f.debug {
		cfg.Debug = true
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.logFormat != "" {
		cfg.LogFormat = f.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating flags: %w", err)
	}
	return nil
}

// loadWithFlags loads configuration and applies the root flags.
func loadWithFlags(load func() (*config.CLIConfig, error)) (*config.CLIConfig, error) {
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := applyFlags(cfg, globalFlags); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the command logger. Logs always go to w (stderr in
// production) so stdout carries only the report.
func newLogger(cfg *config.CLIConfig, w io.Writer) logging.Logger {
	lc := logging.DefaultConfig()
	lc.Level = logging.Level(cfg.EffectiveLogLevel())
	lc.Format = logging.Format(cfg.LogFormat)
	lc.Output = w
	return logging.NewLogger(lc)
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// resolveDBConfig reads DATABASE_URL or DB_* and fills in a keyring
// password when none is configured.
func resolveDBConfig() (*db.Config, error) {
	dbCfg := db.ConfigFromEnv()
	if !dbCfg.NeedsPassword() {
		return dbCfg, nil
	}

	pw, err := credentials.Lookup(credentials.DefaultProvider(), dbCfg.User, dbCfg.Host)
	if err != nil {
		// No keyring on headless hosts; fall back to trust or peer auth.
		if errors.Is(err, credentials.ErrKeyringUnavailable) {
			return dbCfg, nil
		}
		return nil, fmt.Errorf("looking up database password: %w", err)
	}
	dbCfg.Password = pw
	return dbCfg, nil
}

// connectToDatabase establishes the pgx pool used for detection storage.
func connectToDatabase(ctx context.Context, _ *config.CLIConfig) (*pgxpool.Pool, error) {
	dbCfg, err := resolveDBConfig()
	if err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", dbCfg.Redacted(), err)
	}
	return pool, nil
}

// connectToRedis establishes the Redis connection used for the run lock and events.
func connectToRedis(ctx context.Context, cfg *config.CLIConfig) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
	}

	return client, nil
}

// formatDurationMs formats milliseconds as a human-readable duration.
func formatDurationMs(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%.1fm", float64(ms)/60000)
}
