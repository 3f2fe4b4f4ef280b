// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/raysh454/regress/internal/logging"
	"github.com/raysh454/regress/internal/model"
	"github.com/raysh454/regress/internal/snapshot"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// WarnCount returns the number of warnings logged so far.
func (l *DummyLogger) WarnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Warns)
}

// ─── Snapshot store ────────────────────────────────────────────────────

// ErrDummyStorage is returned by FlakyStore for failing documents.
var ErrDummyStorage = errors.New("dummy storage failure")

// FlakyStore wraps a snapshot.Store and injects failures or delays for
// selected document ids.
type FlakyStore struct {
	snapshot.Store

	mu sync.Mutex
	// FailIDs makes every call for these documents return ErrDummyStorage.
	FailIDs map[string]bool
	// SlowIDs delays calls for these documents until ctx is done or Delay passes.
	SlowIDs map[string]bool
	Delay   time.Duration
	// FailAppendIDs makes only Append fail for these documents.
	FailAppendIDs map[string]bool

	Appends int
}

// NewFlakyStore wraps a fresh in-memory store.
func NewFlakyStore(capacity int) *FlakyStore {
	return &FlakyStore{
		Store:         snapshot.NewMemoryStore(capacity),
		FailIDs:       map[string]bool{},
		SlowIDs:       map[string]bool{},
		FailAppendIDs: map[string]bool{},
		Delay:         time.Second,
	}
}

// SetFailing toggles injected failures for id.
func (f *FlakyStore) SetFailing(id string, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailIDs[id] = failing
}

func (f *FlakyStore) inject(ctx context.Context, id string) error {
	f.mu.Lock()
	fail, slow, delay := f.FailIDs[id], f.SlowIDs[id], f.Delay
	f.mu.Unlock()

	if fail {
		return ErrDummyStorage
	}
	if slow {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// SetFailingAppend makes Append fail for id while reads keep working.
func (f *FlakyStore) SetFailingAppend(id string, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailAppendIDs[id] = failing
}

func (f *FlakyStore) Append(ctx context.Context, id string, m model.Metrics) error {
	if err := f.inject(ctx, id); err != nil {
		return err
	}
	f.mu.Lock()
	failAppend := f.FailAppendIDs[id]
	f.mu.Unlock()
	if failAppend {
		return ErrDummyStorage
	}
	f.mu.Lock()
	f.Appends++
	f.mu.Unlock()
	return f.Store.Append(ctx, id, m)
}

func (f *FlakyStore) History(ctx context.Context, id string) ([]model.Metrics, error) {
	if err := f.inject(ctx, id); err != nil {
		return nil, err
	}
	return f.Store.History(ctx, id)
}

func (f *FlakyStore) Latest(ctx context.Context, id string) (*model.Metrics, error) {
	if err := f.inject(ctx, id); err != nil {
		return nil, err
	}
	return f.Store.Latest(ctx, id)
}

func (f *FlakyStore) Reset(ctx context.Context, id string) error {
	if err := f.inject(ctx, id); err != nil {
		return err
	}
	return f.Store.Reset(ctx, id)
}

// ─── Clock ─────────────────────────────────────────────────────────────

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
