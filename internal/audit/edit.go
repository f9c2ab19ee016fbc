package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tally/internal/domain"
)

// AssetsAddedResult is the outcome of AddAssets.
type AssetsAddedResult struct {
	Session *domain.AuditSession `json:"session"`
	Added   []uuid.UUID          `json:"added"`
	Skipped int                  `json:"skipped"`
}

// AddAssets adds assets to the expected set of an open session. Assets that
// are already expected are skipped.
func (s *Service) AddAssets(ctx context.Context, actor Actor, id uuid.UUID, assetIDs []uuid.UUID) (*AssetsAddedResult, error) {
	if !actor.Role.Can(domain.EntityAudit, domain.ActionUpdate) {
		return nil, fmt.Errorf("audit.AddAssets: %w", domain.ErrForbidden)
	}

	var result domain.AssetsAdded
	session, err := s.sessions.EditAssets(ctx, actor.OrganizationID, id, assetIDs,
		func(session *domain.AuditSession, rows map[uuid.UUID]*domain.AuditAsset) (domain.AssetChanges, error) {
			if err := checkAssigned(actor, session); err != nil {
				return domain.AssetChanges{}, err
			}
			changes, r, err := session.AddExpectedAssets(rows, assetIDs, s.now())
			result = r
			return changes, err
		})
	if err != nil {
		return nil, fmt.Errorf("audit.AddAssets: %w", err)
	}

	log.Info().
		Str("audit_id", session.ID.String()).
		Int("added", len(result.Added)).
		Int("skipped", result.Skipped).
		Int("expected", session.ExpectedAssetCount).
		Msg("assets added to audit")

	if len(result.Added) > 0 {
		s.addNote(ctx, session, actor.UserID, nil, domain.NoteTypeUpdate, assetsAddedNote(len(result.Added), result.Skipped))
		s.publish(ctx, EventAssetsAdded, session, nil)
	}

	return &AssetsAddedResult{Session: session, Added: result.Added, Skipped: result.Skipped}, nil
}

// RemoveAssets takes assets out of an open session, scanned or not.
func (s *Service) RemoveAssets(ctx context.Context, actor Actor, id uuid.UUID, assetIDs []uuid.UUID) (*domain.AuditSession, error) {
	if !actor.Role.Can(domain.EntityAudit, domain.ActionUpdate) {
		return nil, fmt.Errorf("audit.RemoveAssets: %w", domain.ErrForbidden)
	}

	var removed []*domain.AuditAsset
	session, err := s.sessions.EditAssets(ctx, actor.OrganizationID, id, assetIDs,
		func(session *domain.AuditSession, rows map[uuid.UUID]*domain.AuditAsset) (domain.AssetChanges, error) {
			if err := checkAssigned(actor, session); err != nil {
				return domain.AssetChanges{}, err
			}
			changes, err := session.RemoveAssets(rows, assetIDs, s.now())
			removed = changes.Delete
			return changes, err
		})
	if err != nil {
		return nil, fmt.Errorf("audit.RemoveAssets: %w", err)
	}

	log.Info().
		Str("audit_id", session.ID.String()).
		Int("removed", len(removed)).
		Int("expected", session.ExpectedAssetCount).
		Msg("assets removed from audit")

	s.addNote(ctx, session, actor.UserID, nil, domain.NoteTypeUpdate, assetsRemovedNote(removed))
	s.publish(ctx, EventAssetsRemoved, session, nil)

	return session, nil
}

// RemoveScan undoes the scan of assetID. An expected asset is pending again;
// an unexpected one leaves the session.
func (s *Service) RemoveScan(ctx context.Context, actor Actor, id, assetID uuid.UUID) (*domain.AuditSession, error) {
	if !actor.Role.Can(domain.EntityAudit, domain.ActionUpdate) {
		return nil, fmt.Errorf("audit.RemoveScan: %w", domain.ErrForbidden)
	}

	var kept *domain.AuditAsset
	session, err := s.sessions.EditAssets(ctx, actor.OrganizationID, id, []uuid.UUID{assetID},
		func(session *domain.AuditSession, rows map[uuid.UUID]*domain.AuditAsset) (domain.AssetChanges, error) {
			if err := checkAssigned(actor, session); err != nil {
				return domain.AssetChanges{}, err
			}
			changes, err := session.RemoveScan(rows[assetID], s.now())
			if len(changes.Update) == 1 {
				kept = changes.Update[0]
			}
			return changes, err
		})
	if err != nil {
		return nil, fmt.Errorf("audit.RemoveScan: %w", err)
	}

	// A deleted row can no longer be referenced by the note.
	var rowID *uuid.UUID
	if kept != nil {
		rowID = &kept.ID
	}
	s.addNote(ctx, session, actor.UserID, rowID, domain.NoteTypeUpdate, scanRemovedNote(assetID))
	s.publish(ctx, EventScanRemoved, session, kept)

	return session, nil
}

// SetDueDate changes or clears the due date of an open session. Reminders
// start over for the new date.
func (s *Service) SetDueDate(ctx context.Context, actor Actor, id uuid.UUID, due *time.Time) (*domain.AuditSession, error) {
	if !actor.Role.Can(domain.EntityAudit, domain.ActionCreate) {
		return nil, fmt.Errorf("audit.SetDueDate: %w", domain.ErrForbidden)
	}

	var (
		previous *time.Time
		changed  bool
	)
	session, err := s.sessions.Update(ctx, actor.OrganizationID, id, func(session *domain.AuditSession) error {
		previous = session.DueDate
		var err error
		changed, err = session.SetDueDate(due, s.now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("audit.SetDueDate: %w", err)
	}

	if changed {
		s.addNote(ctx, session, actor.UserID, nil, domain.NoteTypeUpdate, dueDateNote(previous, session.DueDate))
		s.publish(ctx, EventAuditUpdated, session, nil)
	}

	return session, nil
}

// AddAssignee assigns a user to an open session.
func (s *Service) AddAssignee(ctx context.Context, actor Actor, id, userID uuid.UUID) (*domain.AuditSession, error) {
	if !actor.Role.Can(domain.EntityAudit, domain.ActionCreate) {
		return nil, fmt.Errorf("audit.AddAssignee: %w", domain.ErrForbidden)
	}

	session, err := s.sessions.Update(ctx, actor.OrganizationID, id, func(session *domain.AuditSession) error {
		return session.AddAssignee(userID, s.now())
	})
	if err != nil {
		return nil, fmt.Errorf("audit.AddAssignee: %w", err)
	}

	s.addNote(ctx, session, actor.UserID, nil, domain.NoteTypeUpdate, assigneeAddedNote(userID))
	s.publish(ctx, EventAuditUpdated, session, nil)

	return session, nil
}

// RemoveAssignee unassigns a user from an open session. The lead cannot be removed.
func (s *Service) RemoveAssignee(ctx context.Context, actor Actor, id, userID uuid.UUID) (*domain.AuditSession, error) {
	if !actor.Role.Can(domain.EntityAudit, domain.ActionCreate) {
		return nil, fmt.Errorf("audit.RemoveAssignee: %w", domain.ErrForbidden)
	}

	session, err := s.sessions.Update(ctx, actor.OrganizationID, id, func(session *domain.AuditSession) error {
		return session.RemoveAssignee(userID, s.now())
	})
	if err != nil {
		return nil, fmt.Errorf("audit.RemoveAssignee: %w", err)
	}

	s.addNote(ctx, session, actor.UserID, nil, domain.NoteTypeUpdate, assigneeRemovedNote(userID))
	s.publish(ctx, EventAuditUpdated, session, nil)

	return session, nil
}
