package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditAssetStatus is the scan outcome stored per asset row.
type AuditAssetStatus string

const (
	AuditAssetStatusPending    AuditAssetStatus = "PENDING"
	AuditAssetStatusFound      AuditAssetStatus = "FOUND"
	AuditAssetStatusMissing    AuditAssetStatus = "MISSING"
	AuditAssetStatusUnexpected AuditAssetStatus = "UNEXPECTED"
)

// AuditAssetData is the part of an audit row that drives its display label.
// Assets outside the expected set only ever reach UNEXPECTED.
type AuditAssetData struct {
	Expected    bool             `json:"expected"`
	AuditStatus AuditAssetStatus `json:"audit_status"`
}

type AuditAsset struct {
	AuditAssetData

	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	AuditSessionID uuid.UUID  `json:"audit_session_id"`
	AssetID        uuid.UUID  `json:"asset_id"`
	ScannedByID    *uuid.UUID `json:"scanned_by_id,omitempty"`
	ScannedAt      *time.Time `json:"scanned_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type AuditAssetRepository interface {
	ListBySession(ctx context.Context, orgID, sessionID uuid.UUID) ([]*AuditAsset, error)
}
