package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Organization is the tenant boundary. Every audit, asset row and note
// belongs to exactly one organization.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrganizationRepository interface {
	Create(ctx context.Context, o *Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	GetBySlug(ctx context.Context, slug string) (*Organization, error)
	ListPaginated(ctx context.Context, limit, offset int) ([]*Organization, error)
}
