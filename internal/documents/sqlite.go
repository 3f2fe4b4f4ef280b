package documents

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/regress/internal/database"
	"github.com/raysh454/regress/internal/logging"
	"github.com/raysh454/regress/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteSource is a minimal host adapter that keeps documents in the
// engine's own database.
type SQLiteSource struct {
	db     *sql.DB
	logger logging.Logger
	now    func() time.Time
}

// NewSQLiteSource applies the documents schema to db. The caller keeps
// ownership of db.
func NewSQLiteSource(db *sql.DB, logger logging.Logger) (*SQLiteSource, error) {
	if db == nil {
		return nil, errors.New("documents: nil db")
	}
	if logger == nil {
		return nil, errors.New("documents: nil logger provided")
	}
	if err := database.ApplySchema(db, schemaFS, "schema.sql"); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteSource{
		db:     db,
		logger: logger.With(logging.Field{Key: "component", Value: "documents"}),
		now:    time.Now,
	}, nil
}

var _ Source = (*SQLiteSource)(nil)

func (s *SQLiteSource) Get(ctx context.Context, id string) (model.Document, error) {
	doc := model.Document{ID: id}
	var published int64
	err := s.db.QueryRowContext(ctx, `
		SELECT document_type, content, published_at
		FROM documents WHERE document_id = ?`, id).Scan(&doc.Type, &doc.Markup, &published)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, ErrNotFound
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("query document: %w", err)
	}
	if published != 0 {
		doc.PublishedAt = time.Unix(0, published).UTC()
	}
	return doc, nil
}

// Put upserts doc. A zero PublishedAt keeps the stored publish time, so
// later saves do not erase what the first save recorded.
func (s *SQLiteSource) Put(ctx context.Context, doc model.Document) error {
	if doc.ID == "" {
		return ErrEmptyID
	}
	var published int64
	if !doc.PublishedAt.IsZero() {
		published = doc.PublishedAt.UnixNano()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (document_id, document_type, content, published_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			document_type = excluded.document_type,
			content = excluded.content,
			published_at = CASE WHEN excluded.published_at = 0
				THEN documents.published_at ELSE excluded.published_at END,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Type, doc.Markup, published, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	s.logger.Debug("stored document",
		logging.Field{Key: "document_id", Value: doc.ID},
		logging.Field{Key: "bytes", Value: len(doc.Markup)})
	return nil
}

func (s *SQLiteSource) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document_id FROM documents ORDER BY document_id`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
