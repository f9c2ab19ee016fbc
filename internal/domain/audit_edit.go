package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AssetChanges lists the asset row writes produced by one edit of an open
// session. The repository applies them in the same transaction as the
// session's counters.
type AssetChanges struct {
	Insert []*AuditAsset
	Update []*AuditAsset
	Delete []*AuditAsset
}

func (c AssetChanges) Empty() bool {
	return len(c.Insert) == 0 && len(c.Update) == 0 && len(c.Delete) == 0
}

// AssetsAdded reports the outcome of AddExpectedAssets.
type AssetsAdded struct {
	Added   []uuid.UUID
	Skipped int
}

func (s *AuditSession) requireOpen(op string) error {
	if !s.Status.IsOpen() {
		return fmt.Errorf("audit: %s on %s session: %w", op, s.Status, ErrTerminalState)
	}
	return nil
}

// AddExpectedAssets widens the expected set. existing holds the session's
// current rows for the requested asset IDs. Assets already expected are
// skipped; assets that were scanned as unexpected become expected and found.
// Every new expected asset starts out missing.
func (s *AuditSession) AddExpectedAssets(existing map[uuid.UUID]*AuditAsset, assetIDs []uuid.UUID, now time.Time) (AssetChanges, AssetsAdded, error) {
	var (
		changes AssetChanges
		result  AssetsAdded
	)
	if err := s.requireOpen("add assets"); err != nil {
		return changes, result, err
	}
	ids := dedupe(assetIDs)
	if len(ids) == 0 {
		return changes, result, fmt.Errorf("audit: no assets to add: %w", ErrValidation)
	}

	for _, id := range ids {
		row, ok := existing[id]
		switch {
		case ok && row.Expected:
			result.Skipped++
			continue
		case ok:
			row.Expected = true
			row.AuditStatus = AuditAssetStatusFound
			s.UnexpectedAssetCount--
			s.ExpectedAssetCount++
			s.FoundAssetCount++
			changes.Update = append(changes.Update, row)
		default:
			s.ExpectedAssetCount++
			s.MissingAssetCount++
			changes.Insert = append(changes.Insert, &AuditAsset{
				ID:             uuid.New(),
				OrganizationID: s.OrganizationID,
				AuditSessionID: s.ID,
				AssetID:        id,
				AuditAssetData: AuditAssetData{Expected: true, AuditStatus: AuditAssetStatusPending},
				CreatedAt:      now,
			})
		}
		result.Added = append(result.Added, id)
	}

	if !changes.Empty() {
		s.boundCounts()
		s.UpdatedAt = now
	}
	return changes, result, nil
}

// RemoveAssets drops the given assets from the session, expected or not, and
// takes them out of the counters they contributed to. Asset IDs without a
// row are ignored; ErrNotFound is returned when none had one.
func (s *AuditSession) RemoveAssets(existing map[uuid.UUID]*AuditAsset, assetIDs []uuid.UUID, now time.Time) (AssetChanges, error) {
	var changes AssetChanges
	if err := s.requireOpen("remove assets"); err != nil {
		return changes, err
	}

	for _, id := range dedupe(assetIDs) {
		row, ok := existing[id]
		if !ok {
			continue
		}
		switch {
		case !row.Expected:
			s.UnexpectedAssetCount--
		case row.AuditStatus == AuditAssetStatusFound:
			s.ExpectedAssetCount--
			s.FoundAssetCount--
		default:
			s.ExpectedAssetCount--
			s.MissingAssetCount--
		}
		changes.Delete = append(changes.Delete, row)
	}

	if changes.Empty() {
		return changes, fmt.Errorf("audit: none of the assets are in the audit: %w", ErrNotFound)
	}
	s.boundCounts()
	s.UpdatedAt = now
	return changes, nil
}

// RemoveScan undoes a scan. An expected asset goes back to pending and is
// missing again; an unexpected asset leaves the session.
func (s *AuditSession) RemoveScan(row *AuditAsset, now time.Time) (AssetChanges, error) {
	var changes AssetChanges
	if err := s.requireOpen("remove scan"); err != nil {
		return changes, err
	}
	if row == nil || row.AuditSessionID != s.ID {
		return changes, fmt.Errorf("audit: asset is not in the audit: %w", ErrNotFound)
	}

	switch row.AuditStatus {
	case AuditAssetStatusFound:
		row.AuditStatus = AuditAssetStatusPending
		row.ScannedByID = nil
		row.ScannedAt = nil
		s.FoundAssetCount--
		s.MissingAssetCount++
		changes.Update = append(changes.Update, row)
	case AuditAssetStatusUnexpected:
		s.UnexpectedAssetCount--
		changes.Delete = append(changes.Delete, row)
	default:
		return changes, fmt.Errorf("audit: asset %s has not been scanned: %w", row.AssetID, ErrValidation)
	}

	s.boundCounts()
	s.UpdatedAt = now
	return changes, nil
}

// SetDueDate replaces the due date of an open session. A new date must lie
// in the future; nil clears it. Changing the date restarts the reminder
// sequence. It reports whether anything changed.
func (s *AuditSession) SetDueDate(due *time.Time, now time.Time) (bool, error) {
	if err := s.requireOpen("set due date"); err != nil {
		return false, err
	}
	if due != nil && !due.After(now) {
		return false, fmt.Errorf("audit: due date must be in the future: %w", ErrValidation)
	}
	if sameTime(s.DueDate, due) {
		return false, nil
	}

	s.DueDate = due
	s.ReminderStage = ReminderNone
	s.UpdatedAt = now
	return true, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// AddAssignee assigns userID to an open session.
func (s *AuditSession) AddAssignee(userID uuid.UUID, now time.Time) error {
	if err := s.requireOpen("add assignee"); err != nil {
		return err
	}
	if userID == uuid.Nil {
		return fmt.Errorf("audit: assignee ID is required: %w", ErrValidation)
	}
	for _, a := range s.Assignments {
		if a.UserID == userID {
			return fmt.Errorf("audit: user %s is already assigned: %w", userID, ErrConflict)
		}
	}

	s.Assignments = append(s.Assignments, AuditAssignment{UserID: userID})
	s.UpdatedAt = now
	return nil
}

// RemoveAssignee unassigns userID. The lead stays assigned for the life of
// the session.
func (s *AuditSession) RemoveAssignee(userID uuid.UUID, now time.Time) error {
	if err := s.requireOpen("remove assignee"); err != nil {
		return err
	}
	for i, a := range s.Assignments {
		if a.UserID != userID {
			continue
		}
		if a.Role == AssignmentRoleLead {
			return fmt.Errorf("audit: the lead cannot be unassigned: %w", ErrValidation)
		}
		s.Assignments = append(s.Assignments[:i:i], s.Assignments[i+1:]...)
		s.UpdatedAt = now
		return nil
	}
	return fmt.Errorf("audit: user %s is not assigned: %w", userID, ErrNotFound)
}
