// Package config provides configuration loading and defaults for regress.
package config

import (
	"time"

	"github.com/raysh454/regress/internal/detector"
	"github.com/raysh454/regress/internal/regression"
	"github.com/raysh454/regress/internal/snapshot"
)

// DefaultConfigDir is the default location for regress configuration.
const DefaultConfigDir = "~/.config/regress"

// DefaultDBName is the filename for the SQLite database.
const DefaultDBName = "regress.db"

// DefaultLogLevel is used when log_level is unset.
const DefaultLogLevel = "info"

// DefaultListenAddr is the HTTP listen address for `regress serve`.
const DefaultListenAddr = ":8080"

// DefaultRollingCount is the number of snapshots kept per document.
const DefaultRollingCount = snapshot.DefaultCapacity

// DefaultRegression holds the engine-level defaults.
var DefaultRegression = Regression{
	Enabled:         true,
	DocumentTypes:   []string{},
	BaselinePolicy:  "oldest",
	StorageTimeout:  regression.DefaultStorageTimeout,
	BatchWorkers:    regression.DefaultBatchWorkers,
	DocumentTimeout: regression.DefaultDocumentTimeout,
}

// DefaultDetector holds the default thresholds and check switches.
var DefaultDetector = detector.DefaultConfig()

// DefaultShutdownTimeout bounds graceful HTTP shutdown.
const DefaultShutdownTimeout = 10 * time.Second
