package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/tally/internal/domain"
)

type AuditAssetRepo struct {
	pool *pgxpool.Pool
}

func NewAuditAssetRepo(pool *pgxpool.Pool) *AuditAssetRepo {
	return &AuditAssetRepo{pool: pool}
}

const auditAssetColumns = `id, organization_id, audit_session_id, asset_id, expected, audit_status,
	scanned_by_id, scanned_at, created_at`

func (r *AuditAssetRepo) ListBySession(ctx context.Context, orgID, sessionID uuid.UUID) ([]*domain.AuditAsset, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+auditAssetColumns+`
		 FROM audit_assets WHERE organization_id = $1 AND audit_session_id = $2
		 ORDER BY created_at, id`,
		orgID, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("auditAssetRepo.ListBySession: %w", err)
	}
	defer rows.Close()

	var assets []*domain.AuditAsset
	for rows.Next() {
		a, err := scanAuditAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("auditAssetRepo.ListBySession: scan: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auditAssetRepo.ListBySession: rows: %w", err)
	}

	return assets, nil
}

func scanAuditAsset(row pgx.Row) (*domain.AuditAsset, error) {
	var a domain.AuditAsset

	err := row.Scan(
		&a.ID, &a.OrganizationID, &a.AuditSessionID, &a.AssetID, &a.Expected, &a.AuditStatus,
		&a.ScannedByID, &a.ScannedAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &a, nil
}
