// Package cli contains the Cobra command tree for regress.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/raysh454/regress/internal/app"
	"github.com/raysh454/regress/internal/config"
	"github.com/raysh454/regress/internal/logging"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagConfig   string
	flagDatabase string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "regress",
	Short: "Content regression detection for published documents",
	Long: `regress records structural metrics every time a document is saved and
warns when an edit drops internal links, loses a large share of its words or
breaks the heading outline compared to the document's own history.

Run 'regress serve' to expose the save hook and regression API over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/regress/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDatabase, "db", "", "SQLite database path (overrides database_path)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides log_level)")
}

// loadConfig reads the config file and applies persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flagDatabase != "" {
		cfg.DatabasePath = flagDatabase
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, nil
}

// openApp loads config and wires the application. Logs go to stderr so
// command output on stdout stays machine readable.
func openApp(cmd *cobra.Command) (*app.Application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(cmd.ErrOrStderr(), "regress", logging.ParseLevel(cfg.LogLevel))
	return app.NewApplication(cfg, logger)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
