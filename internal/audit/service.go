// Package audit runs the audit session lifecycle: create, get-or-create,
// scans, count updates, completion and cancellation. Every operation is
// scoped to the caller's organization and checked against the caller's role.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tally/internal/domain"
	"github.com/gosuda/tally/internal/telemetry"
)

// getOrCreateAttempts bounds the read/insert loop of GetOrCreate. Losing the
// insert race once is enough to find the winner on the next read.
const getOrCreateAttempts = 3

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Actor identifies who performs an operation.
type Actor struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	Role           domain.Role
}

// Publisher fans out audit events. *ws.Hub satisfies this interface.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type Service struct {
	sessions domain.AuditSessionRepository
	assets   domain.AuditAssetRepository
	notes    domain.AuditNoteRepository
	events   Publisher
	now      func() time.Time
}

// NewService creates an audit service. events may be nil, in which case no
// events are published.
func NewService(sessions domain.AuditSessionRepository, assets domain.AuditAssetRepository, notes domain.AuditNoteRepository, events Publisher) *Service {
	return &Service{
		sessions: sessions,
		assets:   assets,
		notes:    notes,
		events:   events,
		now:      time.Now,
	}
}

// CreateParams is the start-audit input.
type CreateParams struct {
	Name               string
	Description        string
	Type               domain.AuditType
	TargetID           uuid.UUID
	ScopeMeta          domain.ScopeMeta
	AssigneeIDs        []uuid.UUID
	DueDate            *time.Time
	ExpectedAssetIDs   []uuid.UUID
	ExpectedAssetCount int
}

// Create starts a new audit session. It fails with ErrConflict when the
// target already has an open session.
func (s *Service) Create(ctx context.Context, actor Actor, p CreateParams) (*domain.AuditSession, error) {
	if !actor.Role.Can(domain.EntityAudit, domain.ActionCreate) {
		return nil, fmt.Errorf("audit.Create: %w", domain.ErrForbidden)
	}

	session, err := s.create(ctx, actor, p)
	if err != nil {
		return nil, fmt.Errorf("audit.Create: %w", err)
	}

	return session, nil
}

func (s *Service) create(ctx context.Context, actor Actor, p CreateParams) (*domain.AuditSession, error) {
	now := s.now()

	session, rows, err := domain.NewAuditSession(domain.NewAuditSessionParams{
		OrganizationID:     actor.OrganizationID,
		Name:               p.Name,
		Description:        p.Description,
		Type:               p.Type,
		TargetID:           p.TargetID,
		ScopeMeta:          p.ScopeMeta,
		CreatedByID:        actor.UserID,
		AssigneeIDs:        p.AssigneeIDs,
		DueDate:            p.DueDate,
		ExpectedAssetIDs:   p.ExpectedAssetIDs,
		ExpectedAssetCount: p.ExpectedAssetCount,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Create(ctx, session, rows); err != nil {
		return nil, err
	}

	telemetry.AuditTransitionsTotal.WithLabelValues(string(session.Type), string(session.Status)).Inc()
	log.Info().
		Str("audit_id", session.ID.String()).
		Str("org_id", session.OrganizationID.String()).
		Str("type", string(session.Type)).
		Int("expected", session.ExpectedAssetCount).
		Msg("audit created")

	s.addNote(ctx, session, actor.UserID, nil, domain.NoteTypeUpdate, createdNote(session.ExpectedAssetCount))
	s.publish(ctx, EventAuditCreated, session, nil)

	return session, nil
}

// GetOrCreate returns the open session for the target, creating one when
// none exists. Concurrent callers for the same target all get the same
// session: the loser of the insert race re-reads the winner.
func (s *Service) GetOrCreate(ctx context.Context, actor Actor, p CreateParams) (*domain.AuditSession, bool, error) {
	if !actor.Role.Can(domain.EntityAudit, domain.ActionRead) {
		return nil, false, fmt.Errorf("audit.GetOrCreate: %w", domain.ErrForbidden)
	}
	if !p.Type.Valid() {
		return nil, false, fmt.Errorf("audit.GetOrCreate: unknown type %q: %w", p.Type, domain.ErrValidation)
	}

	for range getOrCreateAttempts {
		existing, err := s.sessions.GetOpenByTarget(ctx, actor.OrganizationID, p.Type, p.TargetID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, false, fmt.Errorf("audit.GetOrCreate: %w", err)
		}

		if !actor.Role.Can(domain.EntityAudit, domain.ActionCreate) {
			return nil, false, fmt.Errorf("audit.GetOrCreate: %w", domain.ErrForbidden)
		}

		created, err := s.create(ctx, actor, p)
		if err == nil {
			return created, true, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, false, fmt.Errorf("audit.GetOrCreate: %w", err)
		}

		telemetry.AuditGetOrCreateConflictsTotal.Inc()
		log.Debug().
			Str("org_id", actor.OrganizationID.String()).
			Str("target_id", p.TargetID.String()).
			Msg("audit get-or-create lost insert race, re-reading")
	}

	return nil, false, fmt.Errorf("audit.GetOrCreate: target %s: %w", p.TargetID, domain.ErrConflict)
}

// GetActive returns the open session for a target.
func (s *Service) GetActive(ctx context.Context, actor Actor, t domain.AuditType, targetID uuid.UUID) (*domain.AuditSession, error) {
	if !actor.Role.Can(domain.EntityAudit, domain.ActionRead) {
		return nil, fmt.Errorf("audit.GetActive: %w", domain.ErrForbidden)
	}

	session, err := s.sessions.GetOpenByTarget(ctx, actor.OrganizationID, t, targetID)
	if err != nil {
		return nil, fmt.Errorf("audit.GetActive: %w", err)
	}

	return session, nil
}

func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*domain.AuditSession, error) {
	if !actor.Role.Can(domain.EntityAudit, domain.ActionRead) {
		return nil, fmt.Errorf("audit.Get: %w", domain.ErrForbidden)
	}

	session, err := s.sessions.GetByID(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, fmt.Errorf("audit.Get: %w", err)
	}

	return session, nil
}

func (s *Service) List(ctx context.Context, actor Actor, f domain.AuditListFilter) ([]*domain.AuditSession, error) {
	if !actor.Role.Can(domain.EntityAudit, domain.ActionRead) {
		return nil, fmt.Errorf("audit.List: %w", domain.ErrForbidden)
	}

	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	f.Limit = min(f.Limit, maxListLimit)
	f.Offset = max(f.Offset, 0)

	sessions, err := s.sessions.ListByOrganization(ctx, actor.OrganizationID, f)
	if err != nil {
		return nil, fmt.Errorf("audit.List: %w", err)
	}

	return sessions, nil
}

// UpdateCounts overwrites the counters with absolute values. Out-of-range
// values and closed sessions are rejected before anything is written.
func (s *Service) UpdateCounts(ctx context.Context, actor Actor, id uuid.UUID, c domain.Counts) (*domain.AuditSession, error) {
	if !actor.Role.Can(domain.EntityAudit, domain.ActionUpdate) {
		return nil, fmt.Errorf("audit.UpdateCounts: %w", domain.ErrForbidden)
	}

	session, err := s.sessions.Update(ctx, actor.OrganizationID, id, func(session *domain.AuditSession) error {
		if err := checkAssigned(actor, session); err != nil {
			return err
		}
		return session.ApplyCounts(c, s.now())
	})
	if err != nil {
		return nil, fmt.Errorf("audit.UpdateCounts: %w", err)
	}

	s.publish(ctx, EventCountsUpdated, session, nil)

	return session, nil
}

// Complete closes the session. Expected assets that were never scanned are
// marked MISSING in the same transaction.
func (s *Service) Complete(ctx context.Context, actor Actor, id uuid.UUID) (*domain.AuditSession, error) {
	if !actor.Role.Can(domain.EntityAudit, domain.ActionUpdate) {
		return nil, fmt.Errorf("audit.Complete: %w", domain.ErrForbidden)
	}

	session, marked, err := s.sessions.Complete(ctx, actor.OrganizationID, id, func(session *domain.AuditSession) error {
		if err := checkAssigned(actor, session); err != nil {
			return err
		}
		return session.Complete(s.now())
	})
	if err != nil {
		return nil, fmt.Errorf("audit.Complete: %w", err)
	}

	telemetry.AuditTransitionsTotal.WithLabelValues(string(session.Type), string(session.Status)).Inc()
	log.Info().
		Str("audit_id", session.ID.String()).
		Str("org_id", session.OrganizationID.String()).
		Int("found", session.FoundAssetCount).
		Int("missing", session.MissingAssetCount).
		Int("unexpected", session.UnexpectedAssetCount).
		Int64("marked_missing", marked).
		Msg("audit completed")

	s.addNote(ctx, session, actor.UserID, nil, domain.NoteTypeComment, completedNote(session))
	s.publish(ctx, EventAuditCompleted, session, nil)

	return session, nil
}

func (s *Service) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*domain.AuditSession, error) {
	if !actor.Role.Can(domain.EntityAudit, domain.ActionUpdate) {
		return nil, fmt.Errorf("audit.Cancel: %w", domain.ErrForbidden)
	}

	session, err := s.sessions.Update(ctx, actor.OrganizationID, id, func(session *domain.AuditSession) error {
		if err := checkAssigned(actor, session); err != nil {
			return err
		}
		return session.Cancel(s.now())
	})
	if err != nil {
		return nil, fmt.Errorf("audit.Cancel: %w", err)
	}

	telemetry.AuditTransitionsTotal.WithLabelValues(string(session.Type), string(session.Status)).Inc()
	log.Info().
		Str("audit_id", session.ID.String()).
		Str("org_id", session.OrganizationID.String()).
		Msg("audit cancelled")

	s.addNote(ctx, session, actor.UserID, nil, domain.NoteTypeUpdate, cancelledNote())
	s.publish(ctx, EventAuditCancelled, session, nil)

	return session, nil
}

// ScanResult is the outcome of RecordScan.
type ScanResult struct {
	Session *domain.AuditSession `json:"session"`
	Asset   *domain.AuditAsset   `json:"asset"`
	Outcome domain.ScanOutcome   `json:"outcome"`
	Label   domain.StatusLabel   `json:"label"`
}

// RecordScan registers a scan of assetID. The first scan starts a PENDING
// session. Rescanning an asset is a no-op.
func (s *Service) RecordScan(ctx context.Context, actor Actor, id, assetID uuid.UUID) (*ScanResult, error) {
	if !actor.Role.Can(domain.EntityAudit, domain.ActionUpdate) {
		return nil, fmt.Errorf("audit.RecordScan: %w", domain.ErrForbidden)
	}

	var (
		outcome domain.ScanOutcome
		started bool
	)
	session, row, err := s.sessions.RecordScan(ctx, actor.OrganizationID, id, assetID,
		func(session *domain.AuditSession, row *domain.AuditAsset) (*domain.AuditAsset, error) {
			if err := checkAssigned(actor, session); err != nil {
				return nil, err
			}
			wasPending := session.Status == domain.AuditStatusPending

			out, o, err := session.ApplyScan(row, assetID, actor.UserID, s.now())
			if err != nil {
				return nil, err
			}
			outcome = o
			started = wasPending && session.Status == domain.AuditStatusActive
			return out, nil
		})
	if err != nil {
		return nil, fmt.Errorf("audit.RecordScan: %w", err)
	}

	telemetry.AuditScansTotal.WithLabelValues(string(outcome)).Inc()

	if started {
		telemetry.AuditTransitionsTotal.WithLabelValues(string(session.Type), string(session.Status)).Inc()
		s.addNote(ctx, session, actor.UserID, nil, domain.NoteTypeUpdate, startedNote())
		s.publish(ctx, EventAuditStarted, session, nil)
	}
	if outcome != domain.ScanOutcomeDuplicate {
		s.addNote(ctx, session, actor.UserID, &row.ID, domain.NoteTypeUpdate, scannedNote(row.Expected))
		s.publish(ctx, EventScanRecorded, session, row)
	}

	return &ScanResult{
		Session: session,
		Asset:   row,
		Outcome: outcome,
		Label:   row.Label(session.Status == domain.AuditStatusCompleted),
	}, nil
}

// AssetView is an audit asset row with its derived display label.
type AssetView struct {
	*domain.AuditAsset
	Label domain.StatusLabel `json:"label"`
}

// AssetList is one filtered page of the audit overview.
type AssetList struct {
	Filter   domain.FilterType     `json:"filter"`
	Metadata domain.FilterMetadata `json:"metadata"`
	Items    []AssetView           `json:"items"`
}

// Assets lists the session's asset rows matching filter. No filter shows the
// expected assets, the same tab AuditFilterMetadata describes for nil.
func (s *Service) Assets(ctx context.Context, actor Actor, id uuid.UUID, filter *domain.FilterType) (*AssetList, error) {
	session, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, fmt.Errorf("audit.Assets: %w", err)
	}

	rows, err := s.assets.ListBySession(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, fmt.Errorf("audit.Assets: %w", err)
	}

	applied := domain.FilterExpected
	if filter != nil {
		applied = *filter
	}
	completed := session.Status == domain.AuditStatusCompleted

	items := make([]AssetView, 0, len(rows))
	for _, row := range rows {
		if !applied.Matches(row, completed) {
			continue
		}
		items = append(items, AssetView{AuditAsset: row, Label: row.Label(completed)})
	}

	return &AssetList{
		Filter:   applied,
		Metadata: domain.AuditFilterMetadata(filter),
		Items:    items,
	}, nil
}

func (s *Service) Notes(ctx context.Context, actor Actor, id uuid.UUID, limit, offset int) ([]*domain.AuditNote, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, fmt.Errorf("audit.Notes: %w", err)
	}

	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	notes, err := s.notes.ListBySession(ctx, actor.OrganizationID, id, limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("audit.Notes: %w", err)
	}

	return notes, nil
}

// AddComment attaches a user comment to the session's timeline. Comments are
// allowed on closed sessions.
func (s *Service) AddComment(ctx context.Context, actor Actor, id uuid.UUID, content string) (*domain.AuditNote, error) {
	if !actor.Role.Can(domain.EntityAudit, domain.ActionUpdate) {
		return nil, fmt.Errorf("audit.AddComment: %w", domain.ErrForbidden)
	}
	if content == "" {
		return nil, fmt.Errorf("audit.AddComment: empty content: %w", domain.ErrValidation)
	}

	session, err := s.sessions.GetByID(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, fmt.Errorf("audit.AddComment: %w", err)
	}

	note := newNote(session, actor.UserID, nil, domain.NoteTypeComment, content, s.now())
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("audit.AddComment: %w", err)
	}

	return note, nil
}

// checkAssigned restricts self-service roles to the sessions they work on.
func checkAssigned(actor Actor, session *domain.AuditSession) error {
	if actor.Role.IsSelfService() && !session.IsAssigned(actor.UserID) {
		return fmt.Errorf("user %s is not assigned to audit %s: %w", actor.UserID, session.ID, domain.ErrForbidden)
	}
	return nil
}

// addNote writes a timeline entry. The mutation it describes has already
// committed, so failures are logged and swallowed.
func (s *Service) addNote(ctx context.Context, session *domain.AuditSession, userID uuid.UUID, assetRowID *uuid.UUID, t domain.NoteType, content string) {
	note := newNote(session, userID, assetRowID, t, content, s.now())
	if err := s.notes.Create(ctx, note); err != nil {
		log.Warn().Err(err).
			Str("audit_id", session.ID.String()).
			Msg("audit: failed to write note")
	}
}

func newNote(session *domain.AuditSession, userID uuid.UUID, assetRowID *uuid.UUID, t domain.NoteType, content string, now time.Time) *domain.AuditNote {
	return &domain.AuditNote{
		ID:             uuid.New(),
		OrganizationID: session.OrganizationID,
		AuditSessionID: session.ID,
		AuditAssetID:   assetRowID,
		UserID:         userID,
		Type:           t,
		Content:        content,
		CreatedAt:      now,
	}
}
