// Package snapshot persists the rolling, bounded history of Metrics per
// document and owns its eviction policy.
package snapshot

import (
	"context"
	"errors"

	"github.com/raysh454/regress/internal/model"
)

const (
	// DefaultCapacity is the number of snapshots kept per document.
	DefaultCapacity = 5
	// MinCapacity keeps at least the previous snapshot around to compare against.
	MinCapacity = 1
)

var (
	ErrEmptyDocumentID = errors.New("snapshot: document id is empty")
	ErrNonMonotonic    = errors.New("snapshot: timestamp is not after the latest snapshot")
)

// Store is the contract for snapshot history backends. Implementations are
// safe for concurrent use and serialize Append and Reset per document id;
// documents never block each other.
type Store interface {
	// Append adds metrics at the end of the document's history, evicting the
	// oldest entries until the history fits the capacity. Appending metrics
	// whose ContentHash equals the latest stored hash is a no-op.
	Append(ctx context.Context, documentID string, metrics model.Metrics) error

	// History returns the retained snapshots, oldest first. An unknown
	// document has an empty history.
	History(ctx context.Context, documentID string) ([]model.Metrics, error)

	// Latest returns the newest snapshot or nil when the history is empty.
	Latest(ctx context.Context, documentID string) (*model.Metrics, error)

	// Reset clears the document's history.
	Reset(ctx context.Context, documentID string) error

	// Documents lists ids that currently have history.
	Documents(ctx context.Context) ([]string, error)

	// Capacity is the per-document history bound.
	Capacity() int

	Close() error
}

// Config controls store construction.
type Config struct {
	// Capacity is the rolling window size N. Values below MinCapacity are raised.
	Capacity int `json:"capacity" mapstructure:"snapshot_rolling_count"`

	// Path is the SQLite database file. ":memory:" keeps it in memory.
	Path string `json:"path,omitempty" mapstructure:"path"`
}

func normalizeCapacity(n int) int {
	if n == 0 {
		return DefaultCapacity
	}
	if n < MinCapacity {
		return MinCapacity
	}
	return n
}

// checkAppend applies the rules shared by every backend to a candidate
// append. skip reports a duplicate-content no-op.
func checkAppend(latest *model.Metrics, m model.Metrics) (skip bool, err error) {
	if latest == nil {
		return false, nil
	}
	if latest.ContentHash == m.ContentHash {
		return true, nil
	}
	if !m.Timestamp.After(latest.Timestamp) {
		return false, ErrNonMonotonic
	}
	return false, nil
}
