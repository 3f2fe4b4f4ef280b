package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/raysh454/regress/internal/analyzer"
	"github.com/raysh454/regress/internal/baseline"
	"github.com/raysh454/regress/internal/detector"
	"github.com/raysh454/regress/internal/regression"
	"github.com/raysh454/regress/internal/snapshot"
	"github.com/raysh454/regress/internal/utils"
)

// EnvPrefix prefixes environment overrides: REGRESS_DETECTOR_LINK_DROP_PERCENT.
const EnvPrefix = "REGRESS"

// Config is the top-level regress configuration.
type Config struct {
	LogLevel     string `mapstructure:"log_level"`
	DatabasePath string `mapstructure:"database_path"`

	// SnapshotRollingCount is the per-document history size N.
	SnapshotRollingCount int `mapstructure:"snapshot_rolling_count"`

	Server     Server          `mapstructure:"server"`
	Regression Regression      `mapstructure:"regression"`
	Analyzer   analyzer.Config `mapstructure:"analyzer"`
	Detector   detector.Config `mapstructure:"detector"`
}

// Server configures the HTTP surface.
type Server struct {
	ListenAddr string `mapstructure:"listen_addr"`
	// AdminToken guards batch endpoints. Empty disables them.
	AdminToken      string        `mapstructure:"admin_token"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Regression holds engine switches that are not detector thresholds.
type Regression struct {
	Enabled         bool          `mapstructure:"enabled"`
	DocumentTypes   []string      `mapstructure:"document_types"`
	BaselinePolicy  string        `mapstructure:"baseline_policy"`
	StorageTimeout  time.Duration `mapstructure:"storage_timeout"`
	BatchWorkers    int           `mapstructure:"batch_workers"`
	DocumentTimeout time.Duration `mapstructure:"document_timeout"`
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("database_path", filepath.Join(DefaultConfigDir, DefaultDBName))
	v.SetDefault("snapshot_rolling_count", DefaultRollingCount)

	v.SetDefault("server.listen_addr", DefaultListenAddr)
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)

	v.SetDefault("regression.enabled", DefaultRegression.Enabled)
	v.SetDefault("regression.document_types", DefaultRegression.DocumentTypes)
	v.SetDefault("regression.baseline_policy", DefaultRegression.BaselinePolicy)
	v.SetDefault("regression.storage_timeout", DefaultRegression.StorageTimeout)
	v.SetDefault("regression.batch_workers", DefaultRegression.BatchWorkers)
	v.SetDefault("regression.document_timeout", DefaultRegression.DocumentTimeout)

	v.SetDefault("analyzer.site_url", "")
	v.SetDefault("analyzer.exclude_shortcodes", true)
	v.SetDefault("analyzer.exclude_nofollow_links", false)

	v.SetDefault("detector.link_drop_enabled", DefaultDetector.LinkDropEnabled)
	v.SetDefault("detector.link_drop_percent", DefaultDetector.LinkDropPercent)
	v.SetDefault("detector.link_drop_absolute", DefaultDetector.LinkDropAbsolute)
	v.SetDefault("detector.word_count_enabled", DefaultDetector.WordCountEnabled)
	v.SetDefault("detector.word_count_drop_percent", DefaultDetector.WordCountDropPercent)
	v.SetDefault("detector.word_count_min_age_days", DefaultDetector.WordCountMinAgeDays)
	v.SetDefault("detector.compare_average", DefaultDetector.CompareAverage)
	v.SetDefault("detector.heading_missing_h1", DefaultDetector.HeadingMissingH1)
	v.SetDefault("detector.heading_multiple_h1", DefaultDetector.HeadingMultipleH1)
	v.SetDefault("detector.heading_skipped_level", DefaultDetector.HeadingSkippedLevel)
}

// Load reads configuration from the given path (or the default location),
// applies REGRESS_* environment overrides and returns a Config with all
// defaults applied. A missing config file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		v.AddConfigPath(expandPath(DefaultConfigDir))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.DatabasePath = expandPath(cfg.DatabasePath)

	if cfg.Analyzer.SiteURL != "" {
		site, err := utils.Canonicalize(cfg.Analyzer.SiteURL, "https")
		if err != nil {
			return nil, fmt.Errorf("invalid analyzer.site_url: %w", err)
		}
		cfg.Analyzer.SiteURL = site
	}
	return &cfg, nil
}

// SnapshotConfig returns the snapshot store settings.
func (c *Config) SnapshotConfig() snapshot.Config {
	return snapshot.Config{
		Capacity: c.SnapshotRollingCount,
		Path:     c.DatabasePath,
	}
}

// RegressionConfig assembles the engine Config and clamps it. The second
// return value lists every value that had to be adjusted.
func (c *Config) RegressionConfig() (regression.Config, []string) {
	cfg := regression.Config{
		Enabled:         c.Regression.Enabled,
		DocumentTypes:   c.Regression.DocumentTypes,
		BaselinePolicy:  baseline.Policy(c.Regression.BaselinePolicy),
		StorageTimeout:  c.Regression.StorageTimeout,
		BatchWorkers:    c.Regression.BatchWorkers,
		DocumentTimeout: c.Regression.DocumentTimeout,
		Analyzer:        c.Analyzer,
		Detector:        c.Detector,
	}
	return cfg.Normalize()
}

// DBPath returns the full path to the default SQLite database.
func DBPath() string {
	return filepath.Join(expandPath(DefaultConfigDir), DefaultDBName)
}
