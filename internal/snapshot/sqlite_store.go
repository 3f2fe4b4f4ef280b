package snapshot

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/regress/internal/database"
	"github.com/raysh454/regress/internal/lockmap"
	"github.com/raysh454/regress/internal/logging"
	"github.com/raysh454/regress/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStore persists histories in SQLite. Each Append is one transaction
// (insert plus eviction), so an interrupted process leaves either the old
// or the new history, never a partial one.
type SQLiteStore struct {
	db       *sql.DB
	ownsDB   bool
	capacity int
	logger   logging.Logger
	docLocks lockmap.Map
}

// OpenSQLiteStore opens the database at cfg.Path and returns a store that
// owns it.
func OpenSQLiteStore(cfg Config, logger logging.Logger) (*SQLiteStore, error) {
	db, err := database.Open(cfg.Path)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLiteStore(db, cfg.Capacity, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewSQLiteStore applies the snapshot schema to db and returns a store on
// top of it. The caller keeps ownership of db.
func NewSQLiteStore(db *sql.DB, capacity int, logger logging.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("snapshot: nil db")
	}
	if logger == nil {
		return nil, errors.New("snapshot: nil logger provided")
	}
	if err := database.ApplySchema(db, schemaFS, "schema.sql"); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &SQLiteStore{
		db:       db,
		capacity: normalizeCapacity(capacity),
		logger:   logger.With(logging.Field{Key: "component", Value: "snapshot_store"}),
	}
	s.logger.Info("SQLite snapshot store initialized", logging.Field{Key: "capacity", Value: s.capacity})
	return s, nil
}

// Ensure SQLiteStore implements Store at compile-time.
var _ Store = (*SQLiteStore)(nil)

func (s *SQLiteStore) Capacity() int { return s.capacity }

func (s *SQLiteStore) Append(ctx context.Context, documentID string, metrics model.Metrics) error {
	if documentID == "" {
		return ErrEmptyDocumentID
	}
	unlock, err := s.docLocks.Lock(ctx, documentID)
	if err != nil {
		return err
	}
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	latest, err := queryLatest(ctx, tx, documentID)
	if err != nil {
		return err
	}
	skip, err := checkAppend(latest, metrics)
	if err != nil {
		return err
	}
	if skip {
		s.logger.Debug("skipping duplicate snapshot", logging.Field{Key: "document_id", Value: documentID})
		return nil
	}

	snapshotID := metrics.SnapshotID
	if snapshotID == "" {
		snapshotID = uuid.NewString()
	}
	outline, err := json.Marshal(nonNilOutline(metrics.HeadingOutline))
	if err != nil {
		return fmt.Errorf("marshal heading outline: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (snapshot_id, document_id, taken_at, word_count, internal_link_count,
			heading_outline, content_hash, analysis_failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshotID, documentID, metrics.Timestamp.UnixNano(), metrics.WordCount, metrics.InternalLinkCount,
		string(outline), metrics.ContentHash, database.BoolToInt(metrics.AnalysisFailed),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	// Evict from the front until the history fits.
	res, err := tx.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE document_id = ?
		  AND snapshot_id NOT IN (
			SELECT snapshot_id FROM snapshots
			WHERE document_id = ?
			ORDER BY taken_at DESC
			LIMIT ?
		  )`,
		documentID, documentID, s.capacity,
	)
	if err != nil {
		return fmt.Errorf("evict snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if evicted, _ := res.RowsAffected(); evicted > 0 {
		s.logger.Debug("evicted snapshots",
			logging.Field{Key: "document_id", Value: documentID},
			logging.Field{Key: "count", Value: evicted})
	}
	return nil
}

func (s *SQLiteStore) History(ctx context.Context, documentID string) ([]model.Metrics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_id, document_id, taken_at, word_count, internal_link_count,
			heading_outline, content_hash, analysis_failed
		FROM snapshots
		WHERE document_id = ?
		ORDER BY taken_at ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var history []model.Metrics
	for rows.Next() {
		m, err := scanMetrics(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}

func (s *SQLiteStore) Latest(ctx context.Context, documentID string) (*model.Metrics, error) {
	return queryLatest(ctx, s.db, documentID)
}

func (s *SQLiteStore) Reset(ctx context.Context, documentID string) error {
	if documentID == "" {
		return ErrEmptyDocumentID
	}
	unlock, err := s.docLocks.Lock(ctx, documentID)
	if err != nil {
		return err
	}
	defer unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE document_id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("reset history: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Info("reset snapshot history",
		logging.Field{Key: "document_id", Value: documentID},
		logging.Field{Key: "removed", Value: n})
	return nil
}

func (s *SQLiteStore) Documents(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT document_id FROM snapshots ORDER BY document_id`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database when the store opened it.
func (s *SQLiteStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryLatest(ctx context.Context, q queryer, documentID string) (*model.Metrics, error) {
	row := q.QueryRowContext(ctx, `
		SELECT snapshot_id, document_id, taken_at, word_count, internal_link_count,
			heading_outline, content_hash, analysis_failed
		FROM snapshots
		WHERE document_id = ?
		ORDER BY taken_at DESC
		LIMIT 1`, documentID)
	m, err := scanMetrics(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMetrics(sc scanner) (model.Metrics, error) {
	var (
		m       model.Metrics
		takenAt int64
		outline string
		failed  int
	)
	err := sc.Scan(&m.SnapshotID, &m.DocumentID, &takenAt, &m.WordCount, &m.InternalLinkCount,
		&outline, &m.ContentHash, &failed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return m, err
		}
		return m, fmt.Errorf("scan snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(outline), &m.HeadingOutline); err != nil {
		return m, fmt.Errorf("decode heading outline: %w", err)
	}
	m.HeadingOutline = nonNilOutline(m.HeadingOutline)
	m.Timestamp = time.Unix(0, takenAt).UTC()
	m.AnalysisFailed = failed != 0
	return m, nil
}

func nonNilOutline(outline []int) []int {
	if outline == nil {
		return []int{}
	}
	return outline
}
