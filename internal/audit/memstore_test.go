package audit_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/tally/internal/domain"
)

// memDB is an in-memory stand-in for the Postgres store. A single mutex
// plays the role of the session row lock and the open-session unique index.
type memDB struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.AuditSession
	assets   map[uuid.UUID][]*domain.AuditAsset
	notes    []*domain.AuditNote

	// markMissingErr fails the row flip inside Complete, rolling it back.
	markMissingErr error
}

func newMemDB() *memDB {
	return &memDB{
		sessions: make(map[uuid.UUID]*domain.AuditSession),
		assets:   make(map[uuid.UUID][]*domain.AuditAsset),
	}
}

func cloneSession(s *domain.AuditSession) *domain.AuditSession {
	c := *s
	c.Assignments = append([]domain.AuditAssignment(nil), s.Assignments...)
	return &c
}

func cloneAsset(a *domain.AuditAsset) *domain.AuditAsset {
	c := *a
	return &c
}

type memSessions struct{ db *memDB }

func (m memSessions) Create(_ context.Context, s *domain.AuditSession, assets []*domain.AuditAsset) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	for _, existing := range m.db.sessions {
		if existing.OrganizationID == s.OrganizationID && existing.Type == s.Type &&
			existing.TargetID == s.TargetID && existing.Status.IsOpen() {
			return fmt.Errorf("memSessions.Create: %w", domain.ErrConflict)
		}
	}

	m.db.sessions[s.ID] = cloneSession(s)
	for _, a := range assets {
		m.db.assets[s.ID] = append(m.db.assets[s.ID], cloneAsset(a))
	}
	return nil
}

func (m memSessions) GetByID(_ context.Context, orgID, id uuid.UUID) (*domain.AuditSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	s, ok := m.db.sessions[id]
	if !ok || s.OrganizationID != orgID {
		return nil, fmt.Errorf("memSessions.GetByID: %w", domain.ErrNotFound)
	}
	return cloneSession(s), nil
}

func (m memSessions) GetOpenByTarget(_ context.Context, orgID uuid.UUID, t domain.AuditType, targetID uuid.UUID) (*domain.AuditSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	for _, s := range m.db.sessions {
		if s.OrganizationID == orgID && s.Type == t && s.TargetID == targetID && s.Status.IsOpen() {
			return cloneSession(s), nil
		}
	}
	return nil, fmt.Errorf("memSessions.GetOpenByTarget: %w", domain.ErrNotFound)
}

func (m memSessions) ListByOrganization(_ context.Context, orgID uuid.UUID, f domain.AuditListFilter) ([]*domain.AuditSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	var out []*domain.AuditSession
	for _, s := range m.db.sessions {
		if s.OrganizationID != orgID {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.Type != "" && s.Type != f.Type {
			continue
		}
		out = append(out, cloneSession(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m memSessions) Update(_ context.Context, orgID, id uuid.UUID, fn func(*domain.AuditSession) error) (*domain.AuditSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	stored, ok := m.db.sessions[id]
	if !ok || stored.OrganizationID != orgID {
		return nil, fmt.Errorf("memSessions.Update: %w", domain.ErrNotFound)
	}

	s := cloneSession(stored)
	if err := fn(s); err != nil {
		return nil, err
	}
	m.db.sessions[id] = cloneSession(s)
	return s, nil
}

func (m memSessions) Complete(_ context.Context, orgID, id uuid.UUID, fn func(*domain.AuditSession) error) (*domain.AuditSession, int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	stored, ok := m.db.sessions[id]
	if !ok || stored.OrganizationID != orgID {
		return nil, 0, fmt.Errorf("memSessions.Complete: %w", domain.ErrNotFound)
	}

	s := cloneSession(stored)
	if err := fn(s); err != nil {
		return nil, 0, err
	}
	if m.db.markMissingErr != nil {
		return nil, 0, fmt.Errorf("memSessions.Complete: mark missing: %w", m.db.markMissingErr)
	}

	var marked int64
	for _, a := range m.db.assets[id] {
		if a.Expected && a.AuditStatus == domain.AuditAssetStatusPending {
			a.AuditStatus = domain.AuditAssetStatusMissing
			marked++
		}
	}
	m.db.sessions[id] = cloneSession(s)
	return s, marked, nil
}

func (m memSessions) EditAssets(
	_ context.Context,
	orgID, id uuid.UUID,
	assetIDs []uuid.UUID,
	fn func(*domain.AuditSession, map[uuid.UUID]*domain.AuditAsset) (domain.AssetChanges, error),
) (*domain.AuditSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	stored, ok := m.db.sessions[id]
	if !ok || stored.OrganizationID != orgID {
		return nil, fmt.Errorf("memSessions.EditAssets: %w", domain.ErrNotFound)
	}

	want := make(map[uuid.UUID]bool, len(assetIDs))
	for _, a := range assetIDs {
		want[a] = true
	}
	existing := make(map[uuid.UUID]*domain.AuditAsset)
	for _, a := range m.db.assets[id] {
		if want[a.AssetID] {
			existing[a.AssetID] = cloneAsset(a)
		}
	}

	s := cloneSession(stored)
	changes, err := fn(s, existing)
	if err != nil {
		return nil, err
	}

	deleted := make(map[uuid.UUID]bool, len(changes.Delete))
	for _, a := range changes.Delete {
		deleted[a.ID] = true
	}
	updated := make(map[uuid.UUID]*domain.AuditAsset, len(changes.Update))
	for _, a := range changes.Update {
		updated[a.ID] = a
	}

	var rows []*domain.AuditAsset
	for _, a := range m.db.assets[id] {
		switch {
		case deleted[a.ID]:
		case updated[a.ID] != nil:
			rows = append(rows, cloneAsset(updated[a.ID]))
		default:
			rows = append(rows, a)
		}
	}
	for _, a := range changes.Insert {
		rows = append(rows, cloneAsset(a))
	}
	m.db.assets[id] = rows
	m.db.sessions[id] = cloneSession(s)
	return s, nil
}

func (m memSessions) RecordScan(
	_ context.Context,
	orgID, id, assetID uuid.UUID,
	fn func(*domain.AuditSession, *domain.AuditAsset) (*domain.AuditAsset, error),
) (*domain.AuditSession, *domain.AuditAsset, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	stored, ok := m.db.sessions[id]
	if !ok || stored.OrganizationID != orgID {
		return nil, nil, fmt.Errorf("memSessions.RecordScan: %w", domain.ErrNotFound)
	}

	idx := -1
	var existing *domain.AuditAsset
	for i, a := range m.db.assets[id] {
		if a.AssetID == assetID {
			idx, existing = i, cloneAsset(a)
			break
		}
	}

	s := cloneSession(stored)
	row, err := fn(s, existing)
	if err != nil {
		return nil, nil, err
	}

	if idx >= 0 {
		m.db.assets[id][idx] = cloneAsset(row)
	} else {
		m.db.assets[id] = append(m.db.assets[id], cloneAsset(row))
	}
	m.db.sessions[id] = cloneSession(s)
	return s, row, nil
}

func (m memSessions) ListDueForReminder(_ context.Context, now time.Time, limit int) ([]*domain.AuditSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	var out []*domain.AuditSession
	for _, s := range m.db.sessions {
		if s.Status.IsOpen() && s.DueDate != nil && domain.DueReminderStage(*s.DueDate, now) > s.ReminderStage {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memSessions) SetReminderStage(_ context.Context, orgID, id uuid.UUID, stage domain.ReminderStage) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	s, ok := m.db.sessions[id]
	if !ok || s.OrganizationID != orgID || s.ReminderStage >= stage {
		return domain.ErrNotFound
	}
	s.ReminderStage = stage
	return nil
}

type memAssets struct{ db *memDB }

func (m memAssets) ListBySession(_ context.Context, orgID, sessionID uuid.UUID) ([]*domain.AuditAsset, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	var out []*domain.AuditAsset
	for _, a := range m.db.assets[sessionID] {
		if a.OrganizationID == orgID {
			out = append(out, cloneAsset(a))
		}
	}
	return out, nil
}

type memNotes struct{ db *memDB }

func (m memNotes) Create(_ context.Context, n *domain.AuditNote) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	c := *n
	m.db.notes = append(m.db.notes, &c)
	return nil
}

func (m memNotes) ListBySession(_ context.Context, orgID, sessionID uuid.UUID, limit, offset int) ([]*domain.AuditNote, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	var out []*domain.AuditNote
	for i := len(m.db.notes) - 1; i >= 0; i-- {
		n := m.db.notes[i]
		if n.OrganizationID == orgID && n.AuditSessionID == sessionID {
			out = append(out, n)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// noteContents returns the session's note contents, oldest first.
func (db *memDB) noteContents(sessionID uuid.UUID) []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []string
	for _, n := range db.notes {
		if n.AuditSessionID == sessionID {
			out = append(out, n.Content)
		}
	}
	return out
}

// rows returns the session's asset rows keyed by asset ID.
func (db *memDB) rows(sessionID uuid.UUID) map[uuid.UUID]domain.AuditAsset {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make(map[uuid.UUID]domain.AuditAsset, len(db.assets[sessionID]))
	for _, a := range db.assets[sessionID] {
		out[a.AssetID] = *a
	}
	return out
}

func (db *memDB) sessionCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.sessions)
}

type recordedEvent struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, recordedEvent{channel: channel, payload: payload})
	return p.err
}

func (p *fakePublisher) snapshot() []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]recordedEvent(nil), p.events...)
}
