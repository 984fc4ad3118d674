package main

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hannes/kiji-autolabel/config"
)

var (
	// Global flags
	verbose    bool
	configPath string
	envFile    string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger

	sentryEnabled bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kiji-autolabel",
	Short: "Build PII training data from template and rendered text",
	Long: `kiji-autolabel recovers entity spans from pairs of template lines
("Call [phone] now") and the lines rendered from them ("Call 555-1234 now"),
writes them as JSONL training examples and splits the result into
train, validation and test sets.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(dotEnvPaths()...); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Verbose = true
		}

		logger, err = newLogger(cfg.Logging.Verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if cfg.SentryDSN != "" {
			if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
				logger.Warn("failed to initialize sentry", zap.Error(err))
			} else {
				sentryEnabled = true
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func dotEnvPaths() []string {
	if envFile != "" {
		return []string{envFile}
	}
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if debug {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zcfg.Build()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", ".env file to load (default: ./.env when present)")

	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		reportFatal(err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// reportFatal logs a command failure and forwards it to Sentry when enabled.
func reportFatal(err error) {
	if logger != nil {
		logger.Error("command failed", zap.Error(err))
		_ = logger.Sync()
	}
	if sentryEnabled {
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
	}
}

// commandLogger returns the configured logger, or a no-op logger when a
// command runs without the root pre-run (tests).
func commandLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// commandConfig returns the loaded configuration, or the defaults when a
// command runs without the root pre-run (tests).
func commandConfig() *config.Config {
	if cfg == nil {
		return config.DefaultConfig()
	}
	return cfg
}
