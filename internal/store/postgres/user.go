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

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// --- Users ---

const userColumns = `id, organization_id, email, password_hash, first_name, last_name, role, created_at, updated_at`

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.OrganizationID, u.Email, nilIfEmpty(u.PasswordHash),
		u.FirstName, u.LastName, u.Role,
		u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("userRepo.Create: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("userRepo.Create: %w", err)
	}

	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE organization_id = $1 AND id = $2`,
		orgID, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("userRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetByID: %w", err)
	}

	return u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, orgID uuid.UUID, email string) (*domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE organization_id = $1 AND lower(email) = lower($2)`,
		orgID, email,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("userRepo.GetByEmail: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetByEmail: %w", err)
	}

	return u, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var passwordHash *string

	err := row.Scan(&u.ID, &u.OrganizationID, &u.Email, &passwordHash,
		&u.FirstName, &u.LastName, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = derefStr(passwordHash)

	return &u, nil
}

// --- Messenger Links ---

func (r *UserRepo) CreateMessengerLink(ctx context.Context, link *domain.UserMessengerLink) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_messenger_links (id, user_id, organization_id, platform, external_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		link.ID, link.UserID, link.OrganizationID, link.Platform, link.ExternalID, link.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("userRepo.CreateMessengerLink: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("userRepo.CreateMessengerLink: %w", err)
	}

	return nil
}

func (r *UserRepo) ListMessengerLinks(ctx context.Context, userID uuid.UUID) ([]*domain.UserMessengerLink, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, organization_id, platform, external_id, created_at
		 FROM user_messenger_links WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("userRepo.ListMessengerLinks: %w", err)
	}
	defer rows.Close()

	var links []*domain.UserMessengerLink
	for rows.Next() {
		var link domain.UserMessengerLink
		err = rows.Scan(&link.ID, &link.UserID, &link.OrganizationID, &link.Platform, &link.ExternalID, &link.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("userRepo.ListMessengerLinks: scan: %w", err)
		}
		links = append(links, &link)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("userRepo.ListMessengerLinks: rows: %w", err)
	}

	return links, nil
}

// --- API Keys ---

func (r *UserRepo) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO api_keys (id, organization_id, user_id, name, key_hash, prefix, last_used_at, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		key.ID, key.OrganizationID, key.UserID, key.Name, key.KeyHash, key.Prefix,
		key.LastUsedAt, key.ExpiresAt, key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("userRepo.CreateAPIKey: %w", err)
	}

	return nil
}

// GetAPIKeyByPrefix looks the key up across organizations; the key itself
// identifies its organization.
func (r *UserRepo) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	var key domain.APIKey

	err := r.pool.QueryRow(ctx,
		`SELECT id, organization_id, user_id, name, key_hash, prefix, last_used_at, expires_at, created_at
		 FROM api_keys WHERE prefix = $1`,
		prefix,
	).Scan(&key.ID, &key.OrganizationID, &key.UserID, &key.Name, &key.KeyHash, &key.Prefix,
		&key.LastUsedAt, &key.ExpiresAt, &key.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("userRepo.GetAPIKeyByPrefix: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetAPIKeyByPrefix: %w", err)
	}

	return &key, nil
}

func (r *UserRepo) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("userRepo.UpdateAPIKeyLastUsed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("userRepo.UpdateAPIKeyLastUsed: %w", domain.ErrNotFound)
	}

	return nil
}
