package services

import (
	"errors"
	"fmt"

	"github.com/byceps/byceps-sub001/internal/repositories"
)

var (
	// ErrOrderFailed signals that placing an order hit an integrity failure and nothing was persisted.
	ErrOrderFailed = errors.New("order: placement failed")
	// ErrOrderAlreadyCanceled rejects transitions on canceled orders.
	ErrOrderAlreadyCanceled = errors.New("order: already canceled")
	// ErrOrderAlreadyMarkedAsPaid rejects paying an order twice.
	ErrOrderAlreadyMarkedAsPaid = errors.New("order: already marked as paid")
	// ErrOrderInvalidInput signals the caller provided invalid order data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderProcessingNotRequired rejects shipping flags on orders without processing.
	ErrOrderProcessingNotRequired = errors.New("order: processing not required")
	// ErrUnknownOrder indicates the order could not be located.
	ErrUnknownOrder = errors.New("order: unknown order")

	// ErrArticleInvalidInput signals invalid article data.
	ErrArticleInvalidInput = errors.New("article: invalid input")
	// ErrUnknownArticle indicates the article could not be located.
	ErrUnknownArticle = errors.New("article: unknown article")
	// ErrArticleQuantityUnderflow indicates not enough stock is left.
	ErrArticleQuantityUnderflow = errors.New("article: quantity underflow")
	// ErrArticleConflict indicates a duplicate item number or attachment.
	ErrArticleConflict = errors.New("article: conflict")

	// ErrShopInvalidInput signals invalid shop data.
	ErrShopInvalidInput = errors.New("shop: invalid input")
	// ErrShopConflict indicates the shop or storefront already exists.
	ErrShopConflict = errors.New("shop: conflict")
	// ErrUnknownShop indicates the shop could not be located.
	ErrUnknownShop = errors.New("shop: unknown shop")
	// ErrUnknownBrand indicates the brand could not be located.
	ErrUnknownBrand = errors.New("shop: unknown brand")
	// ErrUnknownStorefront indicates the storefront could not be located.
	ErrUnknownStorefront = errors.New("shop: unknown storefront")
	// ErrStorefrontClosed rejects orders through a closed storefront.
	ErrStorefrontClosed = errors.New("shop: storefront closed")

	// ErrSequenceCreationFailed signals a sequence could not be created, e.g. for a duplicate prefix.
	ErrSequenceCreationFailed = errors.New("sequence: creation failed")
	// ErrSequenceGenerationFailed signals no number could be generated from the sequence.
	ErrSequenceGenerationFailed = errors.New("sequence: generation failed")

	// ErrInvalidPaymentMethod rejects unknown payment methods.
	ErrInvalidPaymentMethod = errors.New("payment: invalid payment method")

	// ErrSnippetNotFound indicates no snippet exists for the key.
	ErrSnippetNotFound = errors.New("snippet: not found")

	// ErrUnknownOrderAction indicates the action registration could not be located.
	ErrUnknownOrderAction = errors.New("order action: unknown action")
	// ErrOrderActionInvalidInput signals an invalid registration.
	ErrOrderActionInvalidInput = errors.New("order action: invalid input")

	// ErrUnknownUser indicates the user directory has no such user.
	ErrUnknownUser = errors.New("user: unknown user")
)

// repositoryErrorMapping translates repository categories into service sentinels.
type repositoryErrorMapping struct {
	notFound error
	conflict error
	scope    string
}

func (m repositoryErrorMapping) mapError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound() && m.notFound != nil:
			return fmt.Errorf("%w: %v", m.notFound, err)
		case repoErr.IsConflict() && m.conflict != nil:
			return fmt.Errorf("%w: %v", m.conflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%s: repository unavailable: %w", m.scope, err)
		}
	}
	return err
}
