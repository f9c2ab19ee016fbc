package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"` // argon2id
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DisplayName joins first and last name, falling back to the email.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Email
	}
}

// UserMessengerLink connects a user to a chat account used for reminders.
type UserMessengerLink struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Platform       string    `json:"platform"` // "slack"
	ExternalID     string    `json:"external_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// APIKey authenticates scanner devices and scripts without a browser login.
type APIKey struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	Name           string
	KeyHash        string // SHA-256
	Prefix         string // leading chars of the raw key, used for lookup
	LastUsedAt     *time.Time
	ExpiresAt      *time.Time
	CreatedAt      time.Time
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, orgID uuid.UUID, email string) (*User, error)

	// Messenger links
	CreateMessengerLink(ctx context.Context, link *UserMessengerLink) error
	ListMessengerLinks(ctx context.Context, userID uuid.UUID) ([]*UserMessengerLink, error)

	// API keys
	CreateAPIKey(ctx context.Context, key *APIKey) error
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
}
