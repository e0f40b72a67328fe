package repositories

import (
	"errors"
	"fmt"
)

// SequenceErrorCode enumerates failure reasons for number sequence operations.
type SequenceErrorCode string

const (
	// SequenceErrorUnknown represents an unspecified failure.
	SequenceErrorUnknown SequenceErrorCode = "sequence_unknown"
	// SequenceErrorNotFound indicates the sequence does not exist.
	SequenceErrorNotFound SequenceErrorCode = "sequence_not_found"
	// SequenceErrorDuplicatePrefix indicates another sequence of the shop and kind uses the prefix.
	SequenceErrorDuplicatePrefix SequenceErrorCode = "sequence_duplicate_prefix"
)

// SequenceError wraps sequence-specific failures with machine readable codes.
type SequenceError struct {
	Op      string
	Code    SequenceErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *SequenceError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *SequenceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports a missing sequence.
func (e *SequenceError) IsNotFound() bool {
	return e != nil && e.Code == SequenceErrorNotFound
}

// IsConflict reports a duplicate prefix.
func (e *SequenceError) IsConflict() bool {
	return e != nil && e.Code == SequenceErrorDuplicatePrefix
}

// IsUnavailable is always false for sequence errors.
func (e *SequenceError) IsUnavailable() bool {
	return false
}

// NewSequenceError constructs a typed sequence error.
func NewSequenceError(op string, code SequenceErrorCode, message string, err error) *SequenceError {
	if message == "" {
		message = string(code)
	}
	return &SequenceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsSequenceError reports whether err carries the given sequence code.
func IsSequenceError(err error, code SequenceErrorCode) bool {
	var seqErr *SequenceError
	return errors.As(err, &seqErr) && seqErr.Code == code
}
