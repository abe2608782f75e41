// Command zipsync keeps the zip code location targeting of advertising
// campaigns in line with a pricing feed.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zipsync/zipsync/internal/config"
	"github.com/zipsync/zipsync/internal/telemetry"
)

var (
	configFile string
	verbose    bool
	jsonOutput bool

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "zipsync",
	Short: "Synchronize campaign zip code targeting with the pricing feed",
	Long: `zipsync reads the pricing feed, keeps the zip codes priced above the
threshold, maps them to location criteria and converges the location
targeting of every active campaign on that set.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg = loaded

		logger, err = newLogger(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if cfg.File != "" {
			logger.Debug("configuration loaded", zap.String("file", cfg.File))
		}

		if err := telemetry.Init(cmd.Context(), telemetry.Options{
			Enabled:     cfg.Telemetry.Enabled,
			Stdout:      cfg.Telemetry.Stdout,
			ServiceName: "zipsync",
			Version:     Version,
		}); err != nil {
			logger.Warn("telemetry disabled", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		flush(cmd.Context())
	},
}

// flush shuts telemetry down and syncs the logger. Cobra skips
// PersistentPostRun when a command fails, so main calls it again; both
// steps are idempotent.
func flush(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := telemetry.Shutdown(ctx); err != nil {
		logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	_ = logger.Sync()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./zipsync.yaml or ~/.config/zipsync/zipsync.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

// newLogger builds the process logger. Logs go to stderr so command output
// on stdout stays machine readable.
func newLogger(lc config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Format == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.Development = false
	}
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		flush(context.Background())
		if jsonOutput {
			_ = outputJSON(os.Stderr, map[string]string{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
