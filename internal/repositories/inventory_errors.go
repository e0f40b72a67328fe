package repositories

import (
	"errors"
	"fmt"
)

// InventoryErrorCode enumerates repository error causes for stock adjustments.
type InventoryErrorCode string

const (
	// InventoryErrorUnknown represents an unspecified failure.
	InventoryErrorUnknown InventoryErrorCode = "inventory_unknown"
	// InventoryErrorUnderflow indicates a decrease would drive the quantity below zero.
	InventoryErrorUnderflow InventoryErrorCode = "inventory_underflow"
	// InventoryErrorArticleNotFound indicates the article does not exist.
	InventoryErrorArticleNotFound InventoryErrorCode = "inventory_article_not_found"
)

// InventoryError wraps stock adjustment failures with machine readable codes.
type InventoryError struct {
	Op        string
	Code      InventoryErrorCode
	ArticleID string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *InventoryError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *InventoryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports missing articles.
func (e *InventoryError) IsNotFound() bool {
	return e != nil && e.Code == InventoryErrorArticleNotFound
}

// IsConflict reports underflows; the stock changed under the caller.
func (e *InventoryError) IsConflict() bool {
	return e != nil && e.Code == InventoryErrorUnderflow
}

// IsUnavailable is always false; transport failures keep their backend error type.
func (e *InventoryError) IsUnavailable() bool {
	return false
}

// NewInventoryError constructs a typed inventory error.
func NewInventoryError(code InventoryErrorCode, articleID string, message string, err error) *InventoryError {
	if message == "" {
		message = string(code)
	}
	return &InventoryError{
		Code:      code,
		ArticleID: articleID,
		Message:   message,
		Err:       err,
	}
}

// IsInventoryUnderflow reports whether err is a stock underflow.
func IsInventoryUnderflow(err error) bool {
	var invErr *InventoryError
	return errors.As(err, &invErr) && invErr.Code == InventoryErrorUnderflow
}
