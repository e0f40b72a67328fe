package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/platform/httpx"
	"github.com/byceps/byceps-sub001/internal/platform/textutil"
	"github.com/byceps/byceps-sub001/internal/services"
)

type registerOrderActionRequest struct {
	ArticleNumber string         `json:"article_number" validate:"required,max=40"`
	PaymentState  string         `json:"payment_state" validate:"required,oneof=paid canceled_after_paid"`
	Procedure     string         `json:"procedure" validate:"required"`
	Parameters    map[string]any `json:"parameters,omitempty"`
}

// OrderActionHandlers manages the actions bound to article numbers.
type OrderActionHandlers struct {
	actions services.OrderActionService
}

// NewOrderActionHandlers constructs OrderActionHandlers.
func NewOrderActionHandlers(actions services.OrderActionService) *OrderActionHandlers {
	return &OrderActionHandlers{actions: actions}
}

// Routes registers the order action endpoints.
func (h *OrderActionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/shops/{shopID}/order-actions", h.registerAction)
	r.Get("/shops/{shopID}/order-actions", h.listActions)
	r.Delete("/order-actions/{actionID}", h.deleteAction)
}

func (h *OrderActionHandlers) unavailable(w http.ResponseWriter, r *http.Request) bool {
	if h.actions != nil {
		return false
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("order_action_service_unavailable", "order action service unavailable", http.StatusServiceUnavailable))
	return true
}

func (h *OrderActionHandlers) registerAction(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	var req registerOrderActionRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	trigger, err := domain.ParsePaymentState(req.PaymentState)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	action, err := domain.DecodeAction(req.Procedure, textutil.NormalizeParams(req.Parameters))
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	registered, err := h.actions.RegisterAction(ctx, services.RegisterOrderActionCommand{
		ShopID:        chi.URLParam(r, "shopID"),
		ArticleNumber: strings.TrimSpace(req.ArticleNumber),
		Trigger:       trigger,
		Action:        action,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, newOrderActionPayload(registered))
}

func (h *OrderActionHandlers) listActions(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	articleNumber := strings.TrimSpace(r.URL.Query().Get("article_number"))
	if articleNumber == "" {
		writeBadRequest(ctx, w, "article_number is required")
		return
	}
	actions, err := h.actions.ListActionsForArticle(ctx, chi.URLParam(r, "shopID"), articleNumber)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]orderActionPayload, 0, len(actions))
	for _, action := range actions {
		items = append(items, newOrderActionPayload(action))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *OrderActionHandlers) deleteAction(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	if err := h.actions.DeleteAction(ctx, chi.URLParam(r, "actionID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
