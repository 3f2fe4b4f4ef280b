package settings

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/regress/internal/database"
	"github.com/raysh454/regress/internal/logging"
	"github.com/raysh454/regress/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteRepository stores settings next to the snapshot history.
type SQLiteRepository struct {
	db     *sql.DB
	logger logging.Logger
	now    func() time.Time
}

// NewSQLiteRepository applies the settings schema to db. The caller keeps
// ownership of db.
func NewSQLiteRepository(db *sql.DB, logger logging.Logger) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("settings: nil db")
	}
	if logger == nil {
		return nil, errors.New("settings: nil logger provided")
	}
	if err := database.ApplySchema(db, schemaFS, "schema.sql"); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteRepository{
		db:     db,
		logger: logger.With(logging.Field{Key: "component", Value: "settings"}),
		now:    time.Now,
	}, nil
}

var _ Repository = (*SQLiteRepository)(nil)

func (r *SQLiteRepository) Get(ctx context.Context, documentID string) (model.DocumentSettings, error) {
	s := model.DocumentSettings{DocumentID: documentID}
	var disabled, shortForm int
	err := r.db.QueryRowContext(ctx, `
		SELECT detection_disabled, is_short_form
		FROM document_settings WHERE document_id = ?`, documentID).Scan(&disabled, &shortForm)
	if errors.Is(err, sql.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("query settings: %w", err)
	}
	s.DetectionDisabled = disabled != 0
	s.IsShortForm = shortForm != 0
	return s, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, s model.DocumentSettings) error {
	if s.DocumentID == "" {
		return ErrEmptyDocumentID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO document_settings (document_id, detection_disabled, is_short_form, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			detection_disabled = excluded.detection_disabled,
			is_short_form = excluded.is_short_form,
			updated_at = excluded.updated_at`,
		s.DocumentID, database.BoolToInt(s.DetectionDisabled), database.BoolToInt(s.IsShortForm), r.now().UnixNano())
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	r.logger.Debug("saved document settings",
		logging.Field{Key: "document_id", Value: s.DocumentID},
		logging.Field{Key: "detection_disabled", Value: s.DetectionDisabled},
		logging.Field{Key: "is_short_form", Value: s.IsShortForm})
	return nil
}

func (r *SQLiteRepository) GetAcknowledgement(ctx context.Context, documentID string) (*model.Acknowledgement, error) {
	var (
		ack          = model.Acknowledgement{DocumentID: documentID}
		fingerprints string
		at           int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT content_hash, fingerprints, acknowledged_at
		FROM acknowledgements WHERE document_id = ?`, documentID).Scan(&ack.ContentHash, &fingerprints, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query acknowledgement: %w", err)
	}
	if err := json.Unmarshal([]byte(fingerprints), &ack.Fingerprints); err != nil {
		return nil, fmt.Errorf("decode fingerprints: %w", err)
	}
	ack.AcknowledgedAt = time.Unix(0, at).UTC()
	return &ack, nil
}

func (r *SQLiteRepository) SaveAcknowledgement(ctx context.Context, ack model.Acknowledgement) error {
	if ack.DocumentID == "" {
		return ErrEmptyDocumentID
	}
	if ack.Fingerprints == nil {
		ack.Fingerprints = []string{}
	}
	fingerprints, err := json.Marshal(ack.Fingerprints)
	if err != nil {
		return fmt.Errorf("encode fingerprints: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO acknowledgements (document_id, content_hash, fingerprints, acknowledged_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			fingerprints = excluded.fingerprints,
			acknowledged_at = excluded.acknowledged_at`,
		ack.DocumentID, ack.ContentHash, string(fingerprints), ack.AcknowledgedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save acknowledgement: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ClearAcknowledgement(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM acknowledgements WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("clear acknowledgement: %w", err)
	}
	return nil
}
