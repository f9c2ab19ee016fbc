package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditType is the kind of target an audit session covers.
type AuditType string

const (
	AuditTypeLocation AuditType = "LOCATION"
	AuditTypeKit      AuditType = "KIT"
)

func (t AuditType) Valid() bool {
	return t == AuditTypeLocation || t == AuditTypeKit
}

type AuditStatus string

const (
	AuditStatusPending   AuditStatus = "PENDING"
	AuditStatusActive    AuditStatus = "ACTIVE"
	AuditStatusCompleted AuditStatus = "COMPLETED"
	AuditStatusCancelled AuditStatus = "CANCELLED"
)

// IsOpen reports whether the session still accepts scans and count updates.
func (s AuditStatus) IsOpen() bool {
	return s == AuditStatusPending || s == AuditStatusActive
}

// IsTerminal reports whether the session is completed or cancelled.
func (s AuditStatus) IsTerminal() bool {
	return s == AuditStatusCompleted || s == AuditStatusCancelled
}

// ValidTransition checks if an audit state transition is allowed.
// Allowed: pending->active, pending|active->completed, pending|active->cancelled.
func (s AuditStatus) ValidTransition(to AuditStatus) bool {
	switch s {
	case AuditStatusPending:
		return to == AuditStatusActive || to == AuditStatusCompleted || to == AuditStatusCancelled
	case AuditStatusActive:
		return to == AuditStatusCompleted || to == AuditStatusCancelled
	default:
		return false
	}
}

type AssignmentRole string

const AssignmentRoleLead AssignmentRole = "LEAD"

type AuditAssignment struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   AssignmentRole `json:"role,omitempty"`
}

// Counts are the caller-supplied absolute counter values of an update-counts call.
type Counts struct {
	Found      int `json:"found_asset_count"`
	Missing    int `json:"missing_asset_count"`
	Unexpected int `json:"unexpected_asset_count"`
}

type AuditSession struct {
	ID                   uuid.UUID         `json:"id"`
	OrganizationID       uuid.UUID         `json:"organization_id"`
	Name                 string            `json:"name"`
	Description          string            `json:"description,omitempty"`
	Type                 AuditType         `json:"type"`
	TargetID             uuid.UUID         `json:"target_id"`
	Status               AuditStatus       `json:"status"`
	ExpectedAssetCount   int               `json:"expected_asset_count"`
	FoundAssetCount      int               `json:"found_asset_count"`
	MissingAssetCount    int               `json:"missing_asset_count"`
	UnexpectedAssetCount int               `json:"unexpected_asset_count"`
	ScopeMeta            ScopeMeta         `json:"scope_meta"`
	CreatedByID          uuid.UUID         `json:"created_by_id"`
	Assignments          []AuditAssignment `json:"assignments"`
	DueDate              *time.Time        `json:"due_date,omitempty"`
	ReminderStage        ReminderStage     `json:"-"`
	StartedAt            *time.Time        `json:"started_at,omitempty"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
	CancelledAt          *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// NewAuditSessionParams carries the inputs of a start-audit request.
type NewAuditSessionParams struct {
	OrganizationID uuid.UUID
	Name           string
	Description    string
	Type           AuditType
	TargetID       uuid.UUID
	ScopeMeta      ScopeMeta
	CreatedByID    uuid.UUID
	AssigneeIDs    []uuid.UUID
	DueDate        *time.Time

	// ExpectedAssetIDs seeds one expected row per asset. When empty,
	// ExpectedAssetCount is taken as given and no rows are seeded.
	ExpectedAssetIDs   []uuid.UUID
	ExpectedAssetCount int
}

// NewAuditSession validates params and builds a PENDING session with its
// expected asset rows. Counters start at found=0, unexpected=0 and
// missing=expected: every expected asset is missing until scanned.
func NewAuditSession(p NewAuditSessionParams, now time.Time) (*AuditSession, []*AuditAsset, error) {
	if p.OrganizationID == uuid.Nil {
		return nil, nil, fmt.Errorf("audit: organization ID is required: %w", ErrValidation)
	}
	if !p.Type.Valid() {
		return nil, nil, fmt.Errorf("audit: unknown type %q: %w", p.Type, ErrValidation)
	}
	if p.TargetID == uuid.Nil {
		return nil, nil, fmt.Errorf("audit: target ID is required: %w", ErrValidation)
	}
	if p.DueDate != nil && !p.DueDate.After(now) {
		return nil, nil, fmt.Errorf("audit: due date must be in the future: %w", ErrValidation)
	}

	scope := p.ScopeMeta
	if scope.Type == "" {
		scope.Type = p.Type
	}
	if err := scope.ValidateFor(p.Type); err != nil {
		return nil, nil, err
	}

	assetIDs := dedupe(p.ExpectedAssetIDs)
	expected := p.ExpectedAssetCount
	if len(assetIDs) > 0 {
		expected = len(assetIDs)
	}
	if expected < 0 {
		return nil, nil, fmt.Errorf("audit: expected asset count must not be negative: %w", ErrValidation)
	}

	name := p.Name
	if name == "" {
		name = scope.DisplayName()
	}

	s := &AuditSession{
		ID:                 uuid.New(),
		OrganizationID:     p.OrganizationID,
		Name:               name,
		Description:        p.Description,
		Type:               p.Type,
		TargetID:           p.TargetID,
		Status:             AuditStatusPending,
		ExpectedAssetCount: expected,
		MissingAssetCount:  expected,
		ScopeMeta:          scope,
		CreatedByID:        p.CreatedByID,
		Assignments:        buildAssignments(p.CreatedByID, p.AssigneeIDs),
		DueDate:            p.DueDate,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	rows := make([]*AuditAsset, 0, len(assetIDs))
	for _, id := range assetIDs {
		rows = append(rows, &AuditAsset{
			ID:             uuid.New(),
			OrganizationID: s.OrganizationID,
			AuditSessionID: s.ID,
			AssetID:        id,
			AuditAssetData: AuditAssetData{Expected: true, AuditStatus: AuditAssetStatusPending},
			CreatedAt:      now,
		})
	}

	return s, rows, nil
}

// buildAssignments makes the creator the lead and appends every other
// assignee once.
func buildAssignments(creator uuid.UUID, assignees []uuid.UUID) []AuditAssignment {
	out := []AuditAssignment{{UserID: creator, Role: AssignmentRoleLead}}
	for _, id := range dedupe(assignees) {
		if id == creator {
			continue
		}
		out = append(out, AuditAssignment{UserID: id})
	}
	return out
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// IsAssigned reports whether userID may operate the session. Sessions without
// assignees other than the creator are open to every member of the organization.
func (s *AuditSession) IsAssigned(userID uuid.UUID) bool {
	if len(s.Assignments) <= 1 {
		return true
	}
	for _, a := range s.Assignments {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// ValidateCounts checks absolute counter values against the expected count.
func (s *AuditSession) ValidateCounts(c Counts) error {
	switch {
	case c.Found < 0 || c.Missing < 0 || c.Unexpected < 0:
		return fmt.Errorf("audit: counts must not be negative: %w", ErrValidation)
	case c.Found > s.ExpectedAssetCount:
		return fmt.Errorf("audit: found count %d exceeds expected %d: %w", c.Found, s.ExpectedAssetCount, ErrValidation)
	case c.Missing > s.ExpectedAssetCount:
		return fmt.Errorf("audit: missing count %d exceeds expected %d: %w", c.Missing, s.ExpectedAssetCount, ErrValidation)
	case c.Found+c.Missing > s.ExpectedAssetCount:
		return fmt.Errorf("audit: found+missing %d exceeds expected %d: %w", c.Found+c.Missing, s.ExpectedAssetCount, ErrValidation)
	}
	return nil
}

// ApplyCounts overwrites the counters. Closed sessions and out-of-range
// values are rejected without touching the session.
func (s *AuditSession) ApplyCounts(c Counts, now time.Time) error {
	if !s.Status.IsOpen() {
		return fmt.Errorf("audit: update counts on %s session: %w", s.Status, ErrTerminalState)
	}
	if err := s.ValidateCounts(c); err != nil {
		return err
	}
	s.FoundAssetCount = c.Found
	s.MissingAssetCount = c.Missing
	s.UnexpectedAssetCount = c.Unexpected
	s.UpdatedAt = now
	return nil
}

// boundCounts pulls the counters back inside 0 <= found, missing and
// found+missing <= expected. Manual count updates can leave the counters out
// of step with the asset rows, so incremental changes are clamped here.
func (s *AuditSession) boundCounts() {
	s.ExpectedAssetCount = max(s.ExpectedAssetCount, 0)
	s.FoundAssetCount = min(max(s.FoundAssetCount, 0), s.ExpectedAssetCount)
	s.MissingAssetCount = min(max(s.MissingAssetCount, 0), s.ExpectedAssetCount-s.FoundAssetCount)
	s.UnexpectedAssetCount = max(s.UnexpectedAssetCount, 0)
}

// Start moves a PENDING session to ACTIVE. It reports whether the status changed.
func (s *AuditSession) Start(now time.Time) bool {
	if s.Status != AuditStatusPending {
		return false
	}
	s.Status = AuditStatusActive
	s.StartedAt = &now
	s.UpdatedAt = now
	return true
}

// Complete closes the session. Counters keep their values: scans and count
// updates have already kept them within the expected count.
func (s *AuditSession) Complete(now time.Time) error {
	if !s.Status.ValidTransition(AuditStatusCompleted) {
		return fmt.Errorf("audit: complete %s session: %w", s.Status, ErrTerminalState)
	}
	s.Status = AuditStatusCompleted
	s.CompletedAt = &now
	s.UpdatedAt = now
	return nil
}

// Cancel closes the session without touching its counters.
func (s *AuditSession) Cancel(now time.Time) error {
	if !s.Status.ValidTransition(AuditStatusCancelled) {
		return fmt.Errorf("audit: cancel %s session: %w", s.Status, ErrTerminalState)
	}
	s.Status = AuditStatusCancelled
	s.CancelledAt = &now
	s.UpdatedAt = now
	return nil
}

// ScanOutcome describes what a single scan did to the session.
type ScanOutcome string

const (
	ScanOutcomeFound      ScanOutcome = "found"
	ScanOutcomeUnexpected ScanOutcome = "unexpected"
	ScanOutcomeDuplicate  ScanOutcome = "duplicate"
)

// ApplyScan records a scan of assetID. row is the session's existing row for the
// asset, or nil when the asset was not part of the audit. The returned row is the
// one to persist; for duplicates it is the unchanged existing row.
func (s *AuditSession) ApplyScan(row *AuditAsset, assetID, userID uuid.UUID, now time.Time) (*AuditAsset, ScanOutcome, error) {
	if !s.Status.IsOpen() {
		return nil, "", fmt.Errorf("audit: scan on %s session: %w", s.Status, ErrTerminalState)
	}
	if assetID == uuid.Nil {
		return nil, "", fmt.Errorf("audit: asset ID is required: %w", ErrValidation)
	}

	if row == nil {
		s.Start(now)
		s.UnexpectedAssetCount++
		s.UpdatedAt = now
		return &AuditAsset{
			ID:             uuid.New(),
			OrganizationID: s.OrganizationID,
			AuditSessionID: s.ID,
			AssetID:        assetID,
			AuditAssetData: AuditAssetData{Expected: false, AuditStatus: AuditAssetStatusUnexpected},
			ScannedByID:    &userID,
			ScannedAt:      &now,
			CreatedAt:      now,
		}, ScanOutcomeUnexpected, nil
	}

	if row.AuditSessionID != s.ID {
		return nil, "", errors.New("audit: asset row belongs to another session")
	}

	switch row.AuditStatus {
	case AuditAssetStatusFound, AuditAssetStatusUnexpected:
		return row, ScanOutcomeDuplicate, nil
	}

	s.Start(now)
	if row.Expected {
		s.FoundAssetCount++
		s.MissingAssetCount--
		s.boundCounts()
		row.AuditStatus = AuditAssetStatusFound
	} else {
		s.UnexpectedAssetCount++
		row.AuditStatus = AuditAssetStatusUnexpected
	}
	row.ScannedByID = &userID
	row.ScannedAt = &now
	s.UpdatedAt = now

	if row.Expected {
		return row, ScanOutcomeFound, nil
	}
	return row, ScanOutcomeUnexpected, nil
}

// AuditListFilter narrows ListByOrganization. Zero values mean no filter.
type AuditListFilter struct {
	Status AuditStatus
	Type   AuditType
	Limit  int
	Offset int
}

type AuditSessionRepository interface {
	// Create inserts the session, its assignments and its expected asset rows
	// atomically. It returns ErrConflict when another open session already
	// exists for the same organization, type and target.
	Create(ctx context.Context, s *AuditSession, assets []*AuditAsset) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*AuditSession, error)
	GetOpenByTarget(ctx context.Context, orgID uuid.UUID, t AuditType, targetID uuid.UUID) (*AuditSession, error)
	ListByOrganization(ctx context.Context, orgID uuid.UUID, f AuditListFilter) ([]*AuditSession, error)

	// Update locks the session row, calls fn with the current state and
	// persists the mutated status, counters, due date, reminder stage,
	// assignments and timestamps when fn succeeds.
	Update(ctx context.Context, orgID, id uuid.UUID, fn func(s *AuditSession) error) (*AuditSession, error)

	// Complete is Update for the completing transition: in the same
	// transaction it flips every expected row still PENDING to MISSING and
	// returns how many rows changed. Nothing is written when any step fails.
	Complete(ctx context.Context, orgID, id uuid.UUID, fn func(s *AuditSession) error) (*AuditSession, int64, error)

	// EditAssets locks the session row, loads its rows for assetIDs keyed by
	// asset ID, calls fn and persists the session with the returned row
	// changes in one transaction.
	EditAssets(ctx context.Context, orgID, id uuid.UUID, assetIDs []uuid.UUID, fn func(s *AuditSession, rows map[uuid.UUID]*AuditAsset) (AssetChanges, error)) (*AuditSession, error)

	// RecordScan locks the session row, loads the asset row for assetID (nil if
	// absent), calls fn and persists both the session and the returned row.
	RecordScan(ctx context.Context, orgID, id, assetID uuid.UUID, fn func(s *AuditSession, row *AuditAsset) (*AuditAsset, error)) (*AuditSession, *AuditAsset, error)

	// ListDueForReminder returns up to limit open sessions whose
	// DueReminderStage at now is ahead of their recorded stage, earliest due
	// first.
	ListDueForReminder(ctx context.Context, now time.Time, limit int) ([]*AuditSession, error)
	SetReminderStage(ctx context.Context, orgID, id uuid.UUID, stage ReminderStage) error
}
