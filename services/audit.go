package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pjc-admin/statistiques-api/models"
)

// ExportAuditStore garde la trace des exports lancés
type ExportAuditStore interface {
	Record(ctx context.Context, entry models.ExportAuditEntry) error
	ListRecent(ctx context.Context, userID string, limit int) ([]models.ExportAuditEntry, error)
}

type PGAuditStore struct {
	db *sql.DB
}

func NewPGAuditStore(db *sql.DB) *PGAuditStore {
	return &PGAuditStore{db: db}
}

func (s *PGAuditStore) Record(ctx context.Context, e models.ExportAuditEntry) error {
	query := `
		INSERT INTO export_audit (id, user_id, format, annee, annual, filename, status, error, size_bytes, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.Format, e.Annee, e.Annual, e.Filename,
		string(e.Status), e.Error, e.SizeBytes, e.DurationMs, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record export %s: %w", e.ID, err)
	}
	return nil
}

func (s *PGAuditStore) ListRecent(ctx context.Context, userID string, limit int) ([]models.ExportAuditEntry, error) {
	query := `
		SELECT id, user_id, format, annee, annual, filename, status, COALESCE(error, ''), size_bytes, duration_ms, created_at
		FROM export_audit
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer rows.Close()

	entries := []models.ExportAuditEntry{}
	for rows.Next() {
		var e models.ExportAuditEntry
		var status string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Format, &e.Annee, &e.Annual, &e.Filename,
			&status, &e.Error, &e.SizeBytes, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Status = models.ExportStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// NoopAuditStore est utilisé quand aucune base n'est configurée
type NoopAuditStore struct{}

func (NoopAuditStore) Record(context.Context, models.ExportAuditEntry) error { return nil }

func (NoopAuditStore) ListRecent(context.Context, string, int) ([]models.ExportAuditEntry, error) {
	return []models.ExportAuditEntry{}, nil
}
