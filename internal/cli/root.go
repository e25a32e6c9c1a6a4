// Package cli implements the glucose-share command line
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mrcode/glucose-share/internal/config"
	"github.com/mrcode/glucose-share/internal/dexcom"
	"github.com/mrcode/glucose-share/internal/models"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "glucose-share",
	Short: "Glucose Share - a Dexcom Share glucose proxy",
	Long: `Glucose Share signs in to Dexcom Share and republishes the latest
CGM readings as a small JSON API, a badge image and an Alexa skill endpoint.

Credentials come from the config file or the DEXCOM_SHARE_USERNAME,
DEXCOM_SHARE_PASSWORD and DEXCOM_SHARE_SERVER environment variables.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is <config dir>/glucose-share/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(readingsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(regionsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(autostartCmd)
	rootCmd.AddCommand(versionCmd)
}

// parseLevel maps a level name to a slog level
func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q (expected: debug|info|warn|error)", name)
	}
}

// newLogger creates the colored stderr logger
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
	})), nil
}

// setup loads settings and builds the logger for a command
func setup(cmd *cobra.Command) (*models.Settings, *slog.Logger, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	level := settings.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	logger, err := newLogger(cmd.ErrOrStderr(), level)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	return settings, logger, nil
}

var errCredentialsNotSet = &dexcom.ConfigurationError{
	Message: "credentials not set: add username and password to the config file " +
		"or set DEXCOM_SHARE_USERNAME and DEXCOM_SHARE_PASSWORD",
}

// newClient builds the Dexcom client from settings
func newClient(settings *models.Settings, logger *slog.Logger) (*dexcom.Client, error) {
	if !settings.IsConfigured() {
		return nil, errCredentialsNotSet
	}

	region, err := dexcom.ParseRegion(settings.Region)
	if err != nil {
		return nil, err
	}

	return dexcom.NewClient(
		dexcom.Credentials{
			Username: settings.Username,
			Password: settings.Password,
			Region:   region,
		},
		dexcom.WithLogger(logger),
		dexcom.WithBenchmarks(settings.Benchmarks),
	)
}
