package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/tally/internal/domain"
)

type AuditNoteRepo struct {
	pool *pgxpool.Pool
}

func NewAuditNoteRepo(pool *pgxpool.Pool) *AuditNoteRepo {
	return &AuditNoteRepo{pool: pool}
}

func (r *AuditNoteRepo) Create(ctx context.Context, n *domain.AuditNote) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_notes (id, organization_id, audit_session_id, audit_asset_id, user_id, type, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.OrganizationID, n.AuditSessionID, n.AuditAssetID, n.UserID, n.Type, n.Content, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("auditNoteRepo.Create: %w", err)
	}

	return nil
}

func (r *AuditNoteRepo) ListBySession(ctx context.Context, orgID, sessionID uuid.UUID, limit, offset int) ([]*domain.AuditNote, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, organization_id, audit_session_id, audit_asset_id, user_id, type, content, created_at
		 FROM audit_notes WHERE organization_id = $1 AND audit_session_id = $2
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		orgID, sessionID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("auditNoteRepo.ListBySession: %w", err)
	}
	defer rows.Close()

	return scanAuditNotes(rows, "auditNoteRepo.ListBySession")
}

func scanAuditNotes(rows pgx.Rows, caller string) ([]*domain.AuditNote, error) {
	var notes []*domain.AuditNote
	for rows.Next() {
		var n domain.AuditNote

		if err := rows.Scan(
			&n.ID, &n.OrganizationID, &n.AuditSessionID, &n.AuditAssetID,
			&n.UserID, &n.Type, &n.Content, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		notes = append(notes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return notes, nil
}
