package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/platform/auth"
	"github.com/byceps/byceps-sub001/internal/platform/httpx"
	"github.com/byceps/byceps-sub001/internal/platform/observability"
	"github.com/byceps/byceps-sub001/internal/repositories"
	"github.com/byceps/byceps-sub001/internal/services"
)

const maxRequestBodySize = 64 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

var validate = validator.New()

// serviceErrors maps engine sentinels onto the API's error envelope. Order
// matters: specific conflicts precede generic input errors.
var serviceErrors = httpx.Mapping{
	{Target: services.ErrOrderFailed, Code: "order_failed", Status: http.StatusConflict},
	{Target: services.ErrOrderAlreadyCanceled, Code: "order_already_canceled", Status: http.StatusConflict},
	{Target: services.ErrOrderAlreadyMarkedAsPaid, Code: "order_already_paid", Status: http.StatusConflict},
	{Target: domain.ErrPaymentStateAlreadyCanceled, Code: "order_already_canceled", Status: http.StatusConflict},
	{Target: domain.ErrPaymentStateAlreadyPaid, Code: "order_already_paid", Status: http.StatusConflict},
	{Target: services.ErrStorefrontClosed, Code: "storefront_closed", Status: http.StatusConflict},
	{Target: services.ErrOrderProcessingNotRequired, Code: "processing_not_required", Status: http.StatusConflict},
	{Target: services.ErrArticleQuantityUnderflow, Code: "article_quantity_underflow", Status: http.StatusConflict},
	{Target: services.ErrArticleConflict, Code: "article_conflict", Status: http.StatusConflict},
	{Target: services.ErrShopConflict, Code: "shop_conflict", Status: http.StatusConflict},
	{Target: services.ErrSequenceCreationFailed, Code: "sequence_creation_failed", Status: http.StatusConflict},
	{Target: services.ErrSequenceGenerationFailed, Code: "sequence_generation_failed", Status: http.StatusConflict},

	{Target: services.ErrUnknownOrder, Code: "order_not_found", Status: http.StatusNotFound, Message: "order not found"},
	{Target: services.ErrUnknownArticle, Code: "article_not_found", Status: http.StatusNotFound, Message: "article not found"},
	{Target: services.ErrUnknownShop, Code: "shop_not_found", Status: http.StatusNotFound, Message: "shop not found"},
	{Target: services.ErrUnknownBrand, Code: "brand_not_found", Status: http.StatusNotFound, Message: "brand not found"},
	{Target: services.ErrUnknownStorefront, Code: "storefront_not_found", Status: http.StatusNotFound, Message: "storefront not found"},
	{Target: services.ErrUnknownOrderAction, Code: "order_action_not_found", Status: http.StatusNotFound, Message: "order action not found"},
	{Target: services.ErrUnknownUser, Code: "user_not_found", Status: http.StatusNotFound, Message: "user not found"},
	{Target: services.ErrSnippetNotFound, Code: "snippet_not_found", Status: http.StatusNotFound},

	{Target: services.ErrOrderInvalidInput, Code: "invalid_request", Status: http.StatusBadRequest},
	{Target: services.ErrArticleInvalidInput, Code: "invalid_request", Status: http.StatusBadRequest},
	{Target: services.ErrShopInvalidInput, Code: "invalid_request", Status: http.StatusBadRequest},
	{Target: services.ErrOrderActionInvalidInput, Code: "invalid_request", Status: http.StatusBadRequest},
	{Target: services.ErrInvalidPaymentMethod, Code: "invalid_payment_method", Status: http.StatusBadRequest},
	{Target: domain.ErrUnknownProcedure, Code: "unknown_procedure", Status: http.StatusBadRequest},
	{Target: domain.ErrInvalidTypeParams, Code: "invalid_request", Status: http.StatusBadRequest},
	{Target: domain.ErrCartInvalidQuantity, Code: "invalid_request", Status: http.StatusBadRequest},
}

func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	resolved := serviceErrors.Resolve(err)
	if resolved.Status == http.StatusInternalServerError {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
			resolved = httpx.NewError("repository_unavailable", "storage backend unavailable", http.StatusServiceUnavailable)
		}
		observability.FromContext(ctx).Error("admin api request failed", zap.Error(err))
	}
	httpx.WriteError(ctx, w, resolved)
}

func writeBadRequest(ctx context.Context, w http.ResponseWriter, message string) {
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", message, http.StatusBadRequest))
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	httpx.WriteJSON(w, status, payload)
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxRequestBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeRequest reads a JSON body into dst and validates its struct tags.
// Any failure is written as a 400 and reported through ok=false.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", err.Error(), http.StatusRequestEntityTooLarge))
			return false
		}
		writeBadRequest(ctx, w, err.Error())
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeBadRequest(ctx, w, "request body must be valid JSON")
		return false
	}
	if err := validateStruct(ctx, dst); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return false
	}
	return true
}

func validateStruct(ctx context.Context, payload any) error {
	err := validate.StructCtx(ctx, payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	messages := make([]string, len(fieldErrs))
	for i, fieldErr := range fieldErrs {
		messages[i] = fmt.Sprintf("invalid '%s' (%s)", fieldErr.Field(), fieldErr.Tag())
	}
	return errors.New(strings.Join(messages, ", "))
}

func actorFromRequest(r *http.Request, now time.Time) services.Actor {
	ctx := r.Context()
	return services.Actor{
		ID:     auth.ActorID(ctx),
		Locale: auth.ActorLocale(ctx),
		Now:    now,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePointer(t *time.Time) *string {
	if t == nil {
		return nil
	}
	value := formatTime(*t)
	return &value
}

func parseTimePointer(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(*value))
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q", *value)
	}
	t = t.UTC()
	return &t, nil
}
