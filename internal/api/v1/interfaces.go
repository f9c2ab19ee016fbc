package v1

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/tally/internal/audit"
	"github.com/gosuda/tally/internal/auth"
	"github.com/gosuda/tally/internal/domain"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Organizations() domain.OrganizationRepository
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Register(ctx context.Context, p auth.RegisterParams) (*domain.User, error)
	Login(ctx context.Context, orgID uuid.UUID, email, password string) (accessToken, refreshToken string, err error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	LinkMessenger(ctx context.Context, orgID, userID uuid.UUID, platform, externalID string, known func(string) bool) (*domain.UserMessengerLink, error)
	MessengerLinks(ctx context.Context, userID uuid.UUID) ([]*domain.UserMessengerLink, error)
}

// AuditService abstracts the audit lifecycle for handler testing.
// *audit.Service satisfies this interface.
type AuditService interface {
	Create(ctx context.Context, actor audit.Actor, p audit.CreateParams) (*domain.AuditSession, error)
	GetOrCreate(ctx context.Context, actor audit.Actor, p audit.CreateParams) (*domain.AuditSession, bool, error)
	GetActive(ctx context.Context, actor audit.Actor, t domain.AuditType, targetID uuid.UUID) (*domain.AuditSession, error)
	Get(ctx context.Context, actor audit.Actor, id uuid.UUID) (*domain.AuditSession, error)
	List(ctx context.Context, actor audit.Actor, f domain.AuditListFilter) ([]*domain.AuditSession, error)
	UpdateCounts(ctx context.Context, actor audit.Actor, id uuid.UUID, c domain.Counts) (*domain.AuditSession, error)
	Complete(ctx context.Context, actor audit.Actor, id uuid.UUID) (*domain.AuditSession, error)
	Cancel(ctx context.Context, actor audit.Actor, id uuid.UUID) (*domain.AuditSession, error)
	RecordScan(ctx context.Context, actor audit.Actor, id, assetID uuid.UUID) (*audit.ScanResult, error)
	Assets(ctx context.Context, actor audit.Actor, id uuid.UUID, filter *domain.FilterType) (*audit.AssetList, error)
	Notes(ctx context.Context, actor audit.Actor, id uuid.UUID, limit, offset int) ([]*domain.AuditNote, error)
	AddComment(ctx context.Context, actor audit.Actor, id uuid.UUID, content string) (*domain.AuditNote, error)
	AddAssets(ctx context.Context, actor audit.Actor, id uuid.UUID, assetIDs []uuid.UUID) (*audit.AssetsAddedResult, error)
	RemoveAssets(ctx context.Context, actor audit.Actor, id uuid.UUID, assetIDs []uuid.UUID) (*domain.AuditSession, error)
	RemoveScan(ctx context.Context, actor audit.Actor, id, assetID uuid.UUID) (*domain.AuditSession, error)
	SetDueDate(ctx context.Context, actor audit.Actor, id uuid.UUID, due *time.Time) (*domain.AuditSession, error)
	AddAssignee(ctx context.Context, actor audit.Actor, id, userID uuid.UUID) (*domain.AuditSession, error)
	RemoveAssignee(ctx context.Context, actor audit.Actor, id, userID uuid.UUID) (*domain.AuditSession, error)
}
