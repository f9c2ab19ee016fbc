package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type NoteType string

const (
	NoteTypeUpdate  NoteType = "UPDATE"  // written by the system on lifecycle events
	NoteTypeComment NoteType = "COMMENT" // written by a person, or the completion summary
)

// AuditNote is one entry in an audit's activity timeline. Content is markdown.
type AuditNote struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	AuditSessionID uuid.UUID  `json:"audit_session_id"`
	AuditAssetID   *uuid.UUID `json:"audit_asset_id,omitempty"`
	UserID         uuid.UUID  `json:"user_id"`
	Type           NoteType   `json:"type"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
}

type AuditNoteRepository interface {
	Create(ctx context.Context, n *AuditNote) error
	ListBySession(ctx context.Context, orgID, sessionID uuid.UUID, limit, offset int) ([]*AuditNote, error)
}
