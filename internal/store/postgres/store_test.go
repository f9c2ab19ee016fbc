package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unique_violation", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "23505", ConstraintName: "audit_sessions_open_target_key"}), true},
		{"foreign_key_violation", &pgconn.PgError{Code: "23503"}, false},
		{"check_violation", &pgconn.PgError{Code: "23514"}, false},
		{"plain_error", errors.New("duplicate key value violates unique constraint"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}
