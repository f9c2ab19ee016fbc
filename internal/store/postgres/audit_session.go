package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/tally/internal/domain"
)

type AuditSessionRepo struct {
	pool *pgxpool.Pool
}

func NewAuditSessionRepo(pool *pgxpool.Pool) *AuditSessionRepo {
	return &AuditSessionRepo{pool: pool}
}

const auditSessionColumns = `s.id, s.organization_id, s.name, s.description, s.type, s.target_id, s.status,
	s.expected_asset_count, s.found_asset_count, s.missing_asset_count, s.unexpected_asset_count,
	s.scope_meta, s.created_by_id, s.due_date, s.reminder_stage,
	s.started_at, s.completed_at, s.cancelled_at, s.created_at, s.updated_at,
	COALESCE((
		SELECT json_agg(json_build_object('user_id', a.user_id, 'role', a.role) ORDER BY a.created_at)
		FROM audit_assignments a WHERE a.audit_session_id = s.id
	), '[]'::json)`

func (r *AuditSessionRepo) Create(ctx context.Context, s *domain.AuditSession, assets []*domain.AuditAsset) error {
	scope, err := json.Marshal(s.ScopeMeta)
	if err != nil {
		return fmt.Errorf("auditSessionRepo.Create: marshal scope: %w", err)
	}

	err = inTx(ctx, r.pool, func(tx pgx.Tx) error {
		// The partial unique index on open sessions turns a concurrent second
		// insert for the same target into a no-op.
		tag, err := tx.Exec(ctx,
			`INSERT INTO audit_sessions (id, organization_id, name, description, type, target_id, status,
			     expected_asset_count, found_asset_count, missing_asset_count, unexpected_asset_count,
			     scope_meta, created_by_id, due_date, reminder_stage,
			     started_at, completed_at, cancelled_at, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
			 ON CONFLICT DO NOTHING`,
			s.ID, s.OrganizationID, s.Name, s.Description, s.Type, s.TargetID, s.Status,
			s.ExpectedAssetCount, s.FoundAssetCount, s.MissingAssetCount, s.UnexpectedAssetCount,
			scope, s.CreatedByID, s.DueDate, s.ReminderStage,
			s.StartedAt, s.CompletedAt, s.CancelledAt, s.CreatedAt, s.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrConflict
		}

		for _, a := range s.Assignments {
			_, err = tx.Exec(ctx,
				`INSERT INTO audit_assignments (audit_session_id, user_id, role, created_at)
				 VALUES ($1, $2, $3, $4)`,
				s.ID, a.UserID, nilIfEmpty(string(a.Role)), s.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("insert assignment: %w", err)
			}
		}

		if len(assets) == 0 {
			return nil
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"audit_assets"},
			[]string{"id", "organization_id", "audit_session_id", "asset_id", "expected", "audit_status", "created_at"},
			pgx.CopyFromSlice(len(assets), func(i int) ([]any, error) {
				a := assets[i]
				return []any{a.ID, a.OrganizationID, a.AuditSessionID, a.AssetID, a.Expected, string(a.AuditStatus), a.CreatedAt}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy assets: %w", err)
		}
		return nil
	})
	if errors.Is(err, domain.ErrConflict) || isUniqueViolation(err) {
		return fmt.Errorf("auditSessionRepo.Create: open audit exists for target %s: %w", s.TargetID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("auditSessionRepo.Create: %w", err)
	}

	return nil
}

func (r *AuditSessionRepo) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.AuditSession, error) {
	s, err := getAuditSession(ctx, r.pool, orgID, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("auditSessionRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("auditSessionRepo.GetByID: %w", err)
	}

	return s, nil
}

func (r *AuditSessionRepo) GetOpenByTarget(ctx context.Context, orgID uuid.UUID, t domain.AuditType, targetID uuid.UUID) (*domain.AuditSession, error) {
	s, err := scanAuditSession(r.pool.QueryRow(ctx,
		`SELECT `+auditSessionColumns+`
		 FROM audit_sessions s
		 WHERE s.organization_id = $1 AND s.type = $2 AND s.target_id = $3
		   AND s.status IN ('PENDING', 'ACTIVE')`,
		orgID, t, targetID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("auditSessionRepo.GetOpenByTarget: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("auditSessionRepo.GetOpenByTarget: %w", err)
	}

	return s, nil
}

func (r *AuditSessionRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID, f domain.AuditListFilter) ([]*domain.AuditSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+auditSessionColumns+`
		 FROM audit_sessions s
		 WHERE s.organization_id = $1
		   AND ($2 = '' OR s.status = $2)
		   AND ($3 = '' OR s.type = $3)
		 ORDER BY s.created_at DESC, s.id
		 LIMIT $4 OFFSET $5`,
		orgID, string(f.Status), string(f.Type), f.Limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("auditSessionRepo.ListByOrganization: %w", err)
	}
	defer rows.Close()

	return scanAuditSessions(rows, "auditSessionRepo.ListByOrganization")
}

func (r *AuditSessionRepo) Update(ctx context.Context, orgID, id uuid.UUID, fn func(s *domain.AuditSession) error) (*domain.AuditSession, error) {
	var out *domain.AuditSession

	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		s, err := updateLocked(ctx, tx, orgID, id, fn)
		out = s
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("auditSessionRepo.Update: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("auditSessionRepo.Update: %w", err)
	}

	return out, nil
}

func (r *AuditSessionRepo) Complete(ctx context.Context, orgID, id uuid.UUID, fn func(s *domain.AuditSession) error) (*domain.AuditSession, int64, error) {
	var (
		out    *domain.AuditSession
		marked int64
	)

	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		s, err := updateLocked(ctx, tx, orgID, id, fn)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE audit_assets SET audit_status = 'MISSING'
			 WHERE organization_id = $1 AND audit_session_id = $2
			   AND expected AND audit_status = 'PENDING'`,
			orgID, id,
		)
		if err != nil {
			return fmt.Errorf("mark missing: %w", err)
		}

		out, marked = s, tag.RowsAffected()
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, fmt.Errorf("auditSessionRepo.Complete: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("auditSessionRepo.Complete: %w", err)
	}

	return out, marked, nil
}

func (r *AuditSessionRepo) EditAssets(
	ctx context.Context,
	orgID, id uuid.UUID,
	assetIDs []uuid.UUID,
	fn func(s *domain.AuditSession, rows map[uuid.UUID]*domain.AuditAsset) (domain.AssetChanges, error),
) (*domain.AuditSession, error) {
	var out *domain.AuditSession

	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		s, err := lockAuditSession(ctx, tx, orgID, id)
		if err != nil {
			return err
		}

		rows, err := tx.Query(ctx,
			`SELECT `+auditAssetColumns+` FROM audit_assets
			 WHERE organization_id = $1 AND audit_session_id = $2 AND asset_id = ANY($3)
			 FOR UPDATE`,
			orgID, id, assetIDs,
		)
		if err != nil {
			return fmt.Errorf("load assets: %w", err)
		}
		existing := make(map[uuid.UUID]*domain.AuditAsset, len(assetIDs))
		for rows.Next() {
			a, err := scanAuditAsset(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("load assets: %w", err)
			}
			existing[a.AssetID] = a
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("load assets: %w", err)
		}

		changes, err := fn(s, existing)
		if err != nil {
			return err
		}
		if err := applyAssetChanges(ctx, tx, changes); err != nil {
			return err
		}
		if err := saveAuditSession(ctx, tx, s); err != nil {
			return err
		}

		out = s
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("auditSessionRepo.EditAssets: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("auditSessionRepo.EditAssets: %w", err)
	}

	return out, nil
}

func (r *AuditSessionRepo) RecordScan(
	ctx context.Context,
	orgID, id, assetID uuid.UUID,
	fn func(s *domain.AuditSession, row *domain.AuditAsset) (*domain.AuditAsset, error),
) (*domain.AuditSession, *domain.AuditAsset, error) {
	var (
		outSession *domain.AuditSession
		outRow     *domain.AuditAsset
	)

	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		s, err := lockAuditSession(ctx, tx, orgID, id)
		if err != nil {
			return err
		}

		existing, err := scanAuditAsset(tx.QueryRow(ctx,
			`SELECT `+auditAssetColumns+` FROM audit_assets
			 WHERE organization_id = $1 AND audit_session_id = $2 AND asset_id = $3
			 FOR UPDATE`,
			orgID, id, assetID,
		))
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			existing = nil
		case err != nil:
			return fmt.Errorf("load asset: %w", err)
		}

		row, err := fn(s, existing)
		if err != nil {
			return err
		}

		if existing == nil {
			_, err = tx.Exec(ctx,
				`INSERT INTO audit_assets (`+auditAssetColumns+`)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				row.ID, row.OrganizationID, row.AuditSessionID, row.AssetID, row.Expected,
				row.AuditStatus, row.ScannedByID, row.ScannedAt, row.CreatedAt,
			)
		} else {
			_, err = tx.Exec(ctx,
				`UPDATE audit_assets SET audit_status = $1, scanned_by_id = $2, scanned_at = $3
				 WHERE id = $4`,
				row.AuditStatus, row.ScannedByID, row.ScannedAt, row.ID,
			)
		}
		if err != nil {
			return fmt.Errorf("save asset: %w", err)
		}

		if err := saveAuditSession(ctx, tx, s); err != nil {
			return err
		}

		outSession, outRow = s, row
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("auditSessionRepo.RecordScan: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("auditSessionRepo.RecordScan: %w", err)
	}

	return outSession, outRow, nil
}

// ListDueForReminder mirrors domain.DueReminderStage in SQL so sessions that
// already hold their current stage never take up a slot in the page.
func (r *AuditSessionRepo) ListDueForReminder(ctx context.Context, now time.Time, limit int) ([]*domain.AuditSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+auditSessionColumns+`
		 FROM audit_sessions s
		 WHERE s.status IN ('PENDING', 'ACTIVE')
		   AND s.due_date IS NOT NULL
		   AND s.due_date <= $1::timestamptz + interval '24 hours'
		   AND s.reminder_stage < CASE
		         WHEN s.due_date <= $1::timestamptz THEN $2::smallint
		         WHEN s.due_date <= $1::timestamptz + interval '1 hour' THEN $3::smallint
		         WHEN s.due_date <= $1::timestamptz + interval '4 hours' THEN $4::smallint
		         ELSE $5::smallint
		       END
		 ORDER BY s.due_date, s.id
		 LIMIT $6`,
		now, domain.ReminderOverdue, domain.Reminder1h, domain.Reminder4h, domain.Reminder24h, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("auditSessionRepo.ListDueForReminder: %w", err)
	}
	defer rows.Close()

	return scanAuditSessions(rows, "auditSessionRepo.ListDueForReminder")
}

// SetReminderStage only moves the stage forward.
func (r *AuditSessionRepo) SetReminderStage(ctx context.Context, orgID, id uuid.UUID, stage domain.ReminderStage) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE audit_sessions SET reminder_stage = $1
		 WHERE organization_id = $2 AND id = $3 AND reminder_stage < $1`,
		stage, orgID, id,
	)
	if err != nil {
		return fmt.Errorf("auditSessionRepo.SetReminderStage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("auditSessionRepo.SetReminderStage: %w", domain.ErrNotFound)
	}

	return nil
}

func getAuditSession(ctx context.Context, q querier, orgID, id uuid.UUID) (*domain.AuditSession, error) {
	return scanAuditSession(q.QueryRow(ctx,
		`SELECT `+auditSessionColumns+`
		 FROM audit_sessions s WHERE s.organization_id = $1 AND s.id = $2`,
		orgID, id,
	))
}

// lockAuditSession takes the row lock before reading so every mutation of a
// session is serialized.
func lockAuditSession(ctx context.Context, tx pgx.Tx, orgID, id uuid.UUID) (*domain.AuditSession, error) {
	var locked uuid.UUID
	err := tx.QueryRow(ctx,
		`SELECT id FROM audit_sessions WHERE organization_id = $1 AND id = $2 FOR UPDATE`,
		orgID, id,
	).Scan(&locked)
	if err != nil {
		return nil, err
	}

	return getAuditSession(ctx, tx, orgID, id)
}

// updateLocked runs fn on the locked session and writes back the session
// and any assignment changes fn made.
func updateLocked(ctx context.Context, tx pgx.Tx, orgID, id uuid.UUID, fn func(s *domain.AuditSession) error) (*domain.AuditSession, error) {
	s, err := lockAuditSession(ctx, tx, orgID, id)
	if err != nil {
		return nil, err
	}
	before := append([]domain.AuditAssignment(nil), s.Assignments...)

	if err := fn(s); err != nil {
		return nil, err
	}
	if err := saveAuditSession(ctx, tx, s); err != nil {
		return nil, err
	}
	if err := syncAssignments(ctx, tx, s, before); err != nil {
		return nil, err
	}
	return s, nil
}

func saveAuditSession(ctx context.Context, q querier, s *domain.AuditSession) error {
	_, err := q.Exec(ctx,
		`UPDATE audit_sessions SET status = $1, expected_asset_count = $2,
		     found_asset_count = $3, missing_asset_count = $4, unexpected_asset_count = $5,
		     due_date = $6, reminder_stage = $7,
		     started_at = $8, completed_at = $9, cancelled_at = $10, updated_at = $11
		 WHERE organization_id = $12 AND id = $13`,
		s.Status, s.ExpectedAssetCount,
		s.FoundAssetCount, s.MissingAssetCount, s.UnexpectedAssetCount,
		s.DueDate, s.ReminderStage,
		s.StartedAt, s.CompletedAt, s.CancelledAt, s.UpdatedAt,
		s.OrganizationID, s.ID,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func syncAssignments(ctx context.Context, tx pgx.Tx, s *domain.AuditSession, before []domain.AuditAssignment) error {
	had := make(map[uuid.UUID]bool, len(before))
	for _, a := range before {
		had[a.UserID] = true
	}
	has := make(map[uuid.UUID]bool, len(s.Assignments))

	for _, a := range s.Assignments {
		has[a.UserID] = true
		if had[a.UserID] {
			continue
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO audit_assignments (audit_session_id, user_id, role, created_at)
			 VALUES ($1, $2, $3, $4)`,
			s.ID, a.UserID, nilIfEmpty(string(a.Role)), s.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
	}

	for _, a := range before {
		if has[a.UserID] {
			continue
		}
		_, err := tx.Exec(ctx,
			`DELETE FROM audit_assignments WHERE audit_session_id = $1 AND user_id = $2`,
			s.ID, a.UserID,
		)
		if err != nil {
			return fmt.Errorf("delete assignment: %w", err)
		}
	}

	return nil
}

func applyAssetChanges(ctx context.Context, tx pgx.Tx, c domain.AssetChanges) error {
	for _, a := range c.Insert {
		_, err := tx.Exec(ctx,
			`INSERT INTO audit_assets (`+auditAssetColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			a.ID, a.OrganizationID, a.AuditSessionID, a.AssetID, a.Expected,
			a.AuditStatus, a.ScannedByID, a.ScannedAt, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert asset: %w", err)
		}
	}
	for _, a := range c.Update {
		_, err := tx.Exec(ctx,
			`UPDATE audit_assets SET expected = $1, audit_status = $2, scanned_by_id = $3, scanned_at = $4
			 WHERE id = $5`,
			a.Expected, a.AuditStatus, a.ScannedByID, a.ScannedAt, a.ID,
		)
		if err != nil {
			return fmt.Errorf("update asset: %w", err)
		}
	}
	for _, a := range c.Delete {
		if _, err := tx.Exec(ctx, `DELETE FROM audit_assets WHERE id = $1`, a.ID); err != nil {
			return fmt.Errorf("delete asset: %w", err)
		}
	}
	return nil
}

func scanAuditSession(row pgx.Row) (*domain.AuditSession, error) {
	var (
		s           domain.AuditSession
		description *string
		scope       []byte
		assignments []byte
	)

	err := row.Scan(
		&s.ID, &s.OrganizationID, &s.Name, &description, &s.Type, &s.TargetID, &s.Status,
		&s.ExpectedAssetCount, &s.FoundAssetCount, &s.MissingAssetCount, &s.UnexpectedAssetCount,
		&scope, &s.CreatedByID, &s.DueDate, &s.ReminderStage,
		&s.StartedAt, &s.CompletedAt, &s.CancelledAt, &s.CreatedAt, &s.UpdatedAt,
		&assignments,
	)
	if err != nil {
		return nil, err
	}
	s.Description = derefStr(description)

	if err := json.Unmarshal(scope, &s.ScopeMeta); err != nil {
		return nil, fmt.Errorf("unmarshal scope: %w", err)
	}
	if err := s.ScopeMeta.ValidateFor(s.Type); err != nil {
		return nil, fmt.Errorf("decode scope: %w", err)
	}
	if err := json.Unmarshal(assignments, &s.Assignments); err != nil {
		return nil, fmt.Errorf("unmarshal assignments: %w", err)
	}

	return &s, nil
}

func scanAuditSessions(rows pgx.Rows, caller string) ([]*domain.AuditSession, error) {
	var sessions []*domain.AuditSession
	for rows.Next() {
		s, err := scanAuditSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return sessions, nil
}
