package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsDuplicateKeyViolation(t *testing.T) {
	assert.True(t, IsDuplicateKeyViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsDuplicateKeyViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, IsDuplicateKeyViolation(errors.New(`ERROR: duplicate key value violates unique constraint "documents_identity"`)))
	assert.False(t, IsDuplicateKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsDuplicateKeyViolation(nil))
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsForeignKeyViolation(errors.New("insert violates foreign key constraint")))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsForeignKeyViolation(nil))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(pgx.ErrNoRows))
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("lookup: %w", pgx.ErrNoRows)))
	assert.False(t, IsNotFound(errors.New("boom")))
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, IsConnectionError(ErrConnectionClosed))
	assert.True(t, IsConnectionError(errors.New("dial tcp: connection refused")))
	assert.False(t, IsConnectionError(nil))
	assert.False(t, IsConnectionError(errors.New("boom")))
}
