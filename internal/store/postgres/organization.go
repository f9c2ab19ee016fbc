package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/tally/internal/domain"
)

type OrganizationRepo struct {
	pool *pgxpool.Pool
}

func NewOrganizationRepo(pool *pgxpool.Pool) *OrganizationRepo {
	return &OrganizationRepo{pool: pool}
}

func (r *OrganizationRepo) Create(ctx context.Context, o *domain.Organization) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO organizations (id, name, slug, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.Name, o.Slug, o.CreatedAt, o.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("organizationRepo.Create: slug %q: %w", o.Slug, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("organizationRepo.Create: %w", err)
	}

	return nil
}

func (r *OrganizationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	var o domain.Organization

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, slug, created_at, updated_at
		 FROM organizations WHERE id = $1`,
		id,
	).Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("organizationRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("organizationRepo.GetByID: %w", err)
	}

	return &o, nil
}

func (r *OrganizationRepo) GetBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	var o domain.Organization

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, slug, created_at, updated_at
		 FROM organizations WHERE slug = $1`,
		slug,
	).Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("organizationRepo.GetBySlug: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("organizationRepo.GetBySlug: %w", err)
	}

	return &o, nil
}

func (r *OrganizationRepo) ListPaginated(ctx context.Context, limit, offset int) ([]*domain.Organization, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, slug, created_at, updated_at
		 FROM organizations ORDER BY created_at, id
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("organizationRepo.ListPaginated: %w", err)
	}
	defer rows.Close()

	var orgs []*domain.Organization
	for rows.Next() {
		var o domain.Organization

		err = rows.Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("organizationRepo.ListPaginated: scan: %w", err)
		}

		orgs = append(orgs, &o)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("organizationRepo.ListPaginated: rows: %w", err)
	}

	return orgs, nil
}
