package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorKind uint8

const (
	kindOther errorKind = iota
	kindNotFound
	kindConflict
	kindUnavailable
)

// kindByCode maps gRPC status codes onto repository error classes. Aborted
// covers transaction contention on articles and sequences.
var kindByCode = map[codes.Code]errorKind{
	codes.NotFound:           kindNotFound,
	codes.AlreadyExists:      kindConflict,
	codes.FailedPrecondition: kindConflict,
	codes.Aborted:            kindConflict,
	codes.OutOfRange:         kindConflict,
	codes.Unavailable:        kindUnavailable,
	codes.ResourceExhausted:  kindUnavailable,
	codes.Internal:           kindUnavailable,
	codes.DeadlineExceeded:   kindUnavailable,
}

// Error is a Firestore failure classified for repositories.RepositoryError.
type Error struct {
	op   string
	kind errorKind
	err  error
}

func (e *Error) Error() string {
	if e.op == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) IsNotFound() bool    { return e != nil && e.kind == kindNotFound }
func (e *Error) IsConflict() bool    { return e != nil && e.kind == kindConflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.kind == kindUnavailable }

// NotFound reports a document missing from the transaction scope.
func NotFound(op string, format string, args ...any) *Error {
	return &Error{op: op, kind: kindNotFound, err: fmt.Errorf(format, args...)}
}

// Conflict reports a create against an existing document.
func Conflict(op string, format string, args ...any) *Error {
	return &Error{op: op, kind: kindConflict, err: fmt.Errorf(format, args...)}
}

// WrapError classifies err by its gRPC status. Cancellation comes back as the
// plain context error, and errors that are already classified pass through.
func WrapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), status.Code(err) == codes.Canceled:
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	}

	var own *Error
	if errors.As(err, &own) {
		if own.op == "" {
			own.op = op
		}
		return own
	}
	var classified interface {
		IsNotFound() bool
		IsConflict() bool
	}
	if errors.As(err, &classified) {
		return err
	}
	return &Error{op: op, kind: kindByCode[status.Code(err)], err: err}
}
