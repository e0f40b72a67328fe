package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byceps/byceps-sub001/internal/repositories"
)

func TestWrapErrorClassifies(t *testing.T) {
	var repoErr repositories.RepositoryError

	err := wrapError("orders.find", pgx.ErrNoRows)
	require.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsNotFound())

	err = wrapError("orders.insert", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "orders_order_number_key"})
	require.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsConflict())

	err = wrapError("articles.update", &pgconn.PgError{Code: pgCheckViolation})
	require.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsConflict())

	err = wrapError("shops.find", &pgconn.PgError{Code: "42P01"})
	require.ErrorAs(t, err, &repoErr)
	assert.False(t, repoErr.IsConflict())
	assert.False(t, repoErr.IsNotFound())
}

func TestWrapErrorPassesThrough(t *testing.T) {
	assert.NoError(t, wrapError("op", nil))
	assert.ErrorIs(t, wrapError("op", fmt.Errorf("query: %w", context.Canceled)), context.Canceled)

	inner := repositories.NewNotFoundError("articles.find", "article %q", "a1")
	assert.Same(t, inner, wrapError("outer", inner))
}

func TestIsUniqueViolationMatchesConstraint(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "number_sequences_prefix_key"})
	assert.True(t, isUniqueViolation(err, "number_sequences_prefix_key"))
	assert.False(t, isUniqueViolation(err, "orders_order_number_key"))
	assert.False(t, isUniqueViolation(errors.New("plain"), "number_sequences_prefix_key"))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%\_off\\`, escapeLike(`100%_off\`))
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	data, err := migrations.ReadFile("migrations/" + entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "CHECK (quantity >= 0)")
	assert.Contains(t, string(data), "-- +goose Up")
}
