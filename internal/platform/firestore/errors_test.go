package firestore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type classifiedErr struct{}

func (classifiedErr) Error() string       { return "classified" }
func (classifiedErr) IsNotFound() bool    { return true }
func (classifiedErr) IsConflict() bool    { return false }
func (classifiedErr) IsUnavailable() bool { return false }

func TestWrapErrorClassifiesStatusCodes(t *testing.T) {
	var repoErr *Error

	err := WrapError("orders.get", status.Error(codes.NotFound, "missing"))
	assert.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsNotFound())

	err = WrapError("orders.create", status.Error(codes.AlreadyExists, "taken"))
	assert.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsConflict())

	err = WrapError("orders.get", status.Error(codes.Unavailable, "down"))
	assert.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsUnavailable())

	assert.ErrorIs(t, WrapError("orders.get", status.Error(codes.Canceled, "stop")), context.Canceled)
	assert.NoError(t, WrapError("noop", nil))
}

func TestWrapErrorKeepsClassifiedErrors(t *testing.T) {
	inner := classifiedErr{}
	err := WrapError("transaction", inner)
	assert.Equal(t, error(inner), err)

	var repoErr *Error
	assert.False(t, errors.As(err, &repoErr))
}

func TestNotFoundAndConflictBuilders(t *testing.T) {
	assert.True(t, NotFound("x.get", "doc %s", "a").IsNotFound())
	assert.True(t, Conflict("x.create", "doc %s", "a").IsConflict())
	assert.Contains(t, Conflict("x.create", "doc %s", "a").Error(), "x.create: doc a")
}
