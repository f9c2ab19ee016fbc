package v1_test

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/tally/internal/audit"
	"github.com/gosuda/tally/internal/auth"
	"github.com/gosuda/tally/internal/domain"
	"github.com/gosuda/tally/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers: inject organization/user/role into context for DoCtx
// ---------------------------------------------------------------------------

func fixedOrgID() uuid.UUID {
	return uuid.MustParse("00000000-0000-0000-0000-000000000001")
}

func fixedUserID() uuid.UUID {
	return uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
}

func roleCtx(role domain.Role) context.Context {
	return middleware.WithIdentity(context.Background(), fixedOrgID(), fixedUserID(), role)
}

func adminCtx() context.Context { return roleCtx(domain.RoleAdmin) }

func memberCtx() context.Context { return roleCtx(domain.RoleMember) }

func fixtureSession(status domain.AuditStatus) *domain.AuditSession {
	now := time.Now()
	return &domain.AuditSession{
		ID:                 uuid.New(),
		OrganizationID:     fixedOrgID(),
		Name:               "Warehouse A",
		Type:               domain.AuditTypeLocation,
		TargetID:           uuid.New(),
		Status:             status,
		ExpectedAssetCount: 3,
		MissingAssetCount:  3,
		ScopeMeta:          domain.NewLocationScope("Warehouse A", true),
		CreatedByID:        fixedUserID(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	organizations domain.OrganizationRepository
}

func (m *mockDataStore) Organizations() domain.OrganizationRepository { return m.organizations }

// ---------------------------------------------------------------------------
// Mock OrganizationRepository
// ---------------------------------------------------------------------------

type mockOrganizationRepo struct {
	createFunc        func(ctx context.Context, o *domain.Organization) error
	getByIDFunc       func(ctx context.Context, id uuid.UUID) (*domain.Organization, error)
	getBySlugFunc     func(ctx context.Context, slug string) (*domain.Organization, error)
	listPaginatedFunc func(ctx context.Context, limit, offset int) ([]*domain.Organization, error)
}

func (m *mockOrganizationRepo) Create(ctx context.Context, o *domain.Organization) error {
	return m.createFunc(ctx, o)
}

func (m *mockOrganizationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockOrganizationRepo) GetBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	return m.getBySlugFunc(ctx, slug)
}

func (m *mockOrganizationRepo) ListPaginated(ctx context.Context, limit, offset int) ([]*domain.Organization, error) {
	return m.listPaginatedFunc(ctx, limit, offset)
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	registerFunc       func(ctx context.Context, p auth.RegisterParams) (*domain.User, error)
	loginFunc          func(ctx context.Context, orgID uuid.UUID, email, password string) (string, string, error)
	refreshTokenFunc   func(ctx context.Context, refreshToken string) (string, error)
	linkMessengerFunc  func(ctx context.Context, orgID, userID uuid.UUID, platform, externalID string, known func(string) bool) (*domain.UserMessengerLink, error)
	messengerLinksFunc func(ctx context.Context, userID uuid.UUID) ([]*domain.UserMessengerLink, error)
}

func (m *mockAuthService) Register(ctx context.Context, p auth.RegisterParams) (*domain.User, error) {
	return m.registerFunc(ctx, p)
}

func (m *mockAuthService) Login(ctx context.Context, orgID uuid.UUID, email, password string) (string, string, error) {
	return m.loginFunc(ctx, orgID, email, password)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return m.refreshTokenFunc(ctx, refreshToken)
}

func (m *mockAuthService) LinkMessenger(ctx context.Context, orgID, userID uuid.UUID, platform, externalID string, known func(string) bool) (*domain.UserMessengerLink, error) {
	return m.linkMessengerFunc(ctx, orgID, userID, platform, externalID, known)
}

func (m *mockAuthService) MessengerLinks(ctx context.Context, userID uuid.UUID) ([]*domain.UserMessengerLink, error) {
	return m.messengerLinksFunc(ctx, userID)
}

// ---------------------------------------------------------------------------
// Mock AuditService
// ---------------------------------------------------------------------------

type mockAuditService struct {
	createFunc       func(ctx context.Context, actor audit.Actor, p audit.CreateParams) (*domain.AuditSession, error)
	getOrCreateFunc  func(ctx context.Context, actor audit.Actor, p audit.CreateParams) (*domain.AuditSession, bool, error)
	getActiveFunc    func(ctx context.Context, actor audit.Actor, t domain.AuditType, targetID uuid.UUID) (*domain.AuditSession, error)
	getFunc          func(ctx context.Context, actor audit.Actor, id uuid.UUID) (*domain.AuditSession, error)
	listFunc         func(ctx context.Context, actor audit.Actor, f domain.AuditListFilter) ([]*domain.AuditSession, error)
	updateCountsFunc func(ctx context.Context, actor audit.Actor, id uuid.UUID, c domain.Counts) (*domain.AuditSession, error)
	completeFunc     func(ctx context.Context, actor audit.Actor, id uuid.UUID) (*domain.AuditSession, error)
	cancelFunc       func(ctx context.Context, actor audit.Actor, id uuid.UUID) (*domain.AuditSession, error)
	recordScanFunc   func(ctx context.Context, actor audit.Actor, id, assetID uuid.UUID) (*audit.ScanResult, error)
	assetsFunc       func(ctx context.Context, actor audit.Actor, id uuid.UUID, filter *domain.FilterType) (*audit.AssetList, error)
	notesFunc        func(ctx context.Context, actor audit.Actor, id uuid.UUID, limit, offset int) ([]*domain.AuditNote, error)
	addCommentFunc   func(ctx context.Context, actor audit.Actor, id uuid.UUID, content string) (*domain.AuditNote, error)

	addAssetsFunc      func(ctx context.Context, actor audit.Actor, id uuid.UUID, assetIDs []uuid.UUID) (*audit.AssetsAddedResult, error)
	removeAssetsFunc   func(ctx context.Context, actor audit.Actor, id uuid.UUID, assetIDs []uuid.UUID) (*domain.AuditSession, error)
	removeScanFunc     func(ctx context.Context, actor audit.Actor, id, assetID uuid.UUID) (*domain.AuditSession, error)
	setDueDateFunc     func(ctx context.Context, actor audit.Actor, id uuid.UUID, due *time.Time) (*domain.AuditSession, error)
	addAssigneeFunc    func(ctx context.Context, actor audit.Actor, id, userID uuid.UUID) (*domain.AuditSession, error)
	removeAssigneeFunc func(ctx context.Context, actor audit.Actor, id, userID uuid.UUID) (*domain.AuditSession, error)
}

func (m *mockAuditService) Create(ctx context.Context, actor audit.Actor, p audit.CreateParams) (*domain.AuditSession, error) {
	return m.createFunc(ctx, actor, p)
}

func (m *mockAuditService) GetOrCreate(ctx context.Context, actor audit.Actor, p audit.CreateParams) (*domain.AuditSession, bool, error) {
	return m.getOrCreateFunc(ctx, actor, p)
}

func (m *mockAuditService) GetActive(ctx context.Context, actor audit.Actor, t domain.AuditType, targetID uuid.UUID) (*domain.AuditSession, error) {
	return m.getActiveFunc(ctx, actor, t, targetID)
}

func (m *mockAuditService) Get(ctx context.Context, actor audit.Actor, id uuid.UUID) (*domain.AuditSession, error) {
	return m.getFunc(ctx, actor, id)
}

func (m *mockAuditService) List(ctx context.Context, actor audit.Actor, f domain.AuditListFilter) ([]*domain.AuditSession, error) {
	return m.listFunc(ctx, actor, f)
}

func (m *mockAuditService) UpdateCounts(ctx context.Context, actor audit.Actor, id uuid.UUID, c domain.Counts) (*domain.AuditSession, error) {
	return m.updateCountsFunc(ctx, actor, id, c)
}

func (m *mockAuditService) Complete(ctx context.Context, actor audit.Actor, id uuid.UUID) (*domain.AuditSession, error) {
	return m.completeFunc(ctx, actor, id)
}

func (m *mockAuditService) Cancel(ctx context.Context, actor audit.Actor, id uuid.UUID) (*domain.AuditSession, error) {
	return m.cancelFunc(ctx, actor, id)
}

func (m *mockAuditService) RecordScan(ctx context.Context, actor audit.Actor, id, assetID uuid.UUID) (*audit.ScanResult, error) {
	return m.recordScanFunc(ctx, actor, id, assetID)
}

func (m *mockAuditService) Assets(ctx context.Context, actor audit.Actor, id uuid.UUID, filter *domain.FilterType) (*audit.AssetList, error) {
	return m.assetsFunc(ctx, actor, id, filter)
}

func (m *mockAuditService) Notes(ctx context.Context, actor audit.Actor, id uuid.UUID, limit, offset int) ([]*domain.AuditNote, error) {
	return m.notesFunc(ctx, actor, id, limit, offset)
}

func (m *mockAuditService) AddComment(ctx context.Context, actor audit.Actor, id uuid.UUID, content string) (*domain.AuditNote, error) {
	return m.addCommentFunc(ctx, actor, id, content)
}

func (m *mockAuditService) AddAssets(ctx context.Context, actor audit.Actor, id uuid.UUID, assetIDs []uuid.UUID) (*audit.AssetsAddedResult, error) {
	return m.addAssetsFunc(ctx, actor, id, assetIDs)
}

func (m *mockAuditService) RemoveAssets(ctx context.Context, actor audit.Actor, id uuid.UUID, assetIDs []uuid.UUID) (*domain.AuditSession, error) {
	return m.removeAssetsFunc(ctx, actor, id, assetIDs)
}

func (m *mockAuditService) RemoveScan(ctx context.Context, actor audit.Actor, id, assetID uuid.UUID) (*domain.AuditSession, error) {
	return m.removeScanFunc(ctx, actor, id, assetID)
}

func (m *mockAuditService) SetDueDate(ctx context.Context, actor audit.Actor, id uuid.UUID, due *time.Time) (*domain.AuditSession, error) {
	return m.setDueDateFunc(ctx, actor, id, due)
}

func (m *mockAuditService) AddAssignee(ctx context.Context, actor audit.Actor, id, userID uuid.UUID) (*domain.AuditSession, error) {
	return m.addAssigneeFunc(ctx, actor, id, userID)
}

func (m *mockAuditService) RemoveAssignee(ctx context.Context, actor audit.Actor, id, userID uuid.UUID) (*domain.AuditSession, error) {
	return m.removeAssigneeFunc(ctx, actor, id, userID)
}
