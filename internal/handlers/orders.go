package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/platform/auth"
	"github.com/byceps/byceps-sub001/internal/platform/httpx"
	"github.com/byceps/byceps-sub001/internal/platform/pagination"
	"github.com/byceps/byceps-sub001/internal/platform/storage"
	"github.com/byceps/byceps-sub001/internal/platform/textutil"
	"github.com/byceps/byceps-sub001/internal/services"
)

const (
	defaultPlaceOrderLimit  = 10
	defaultPlaceOrderWindow = time.Minute
	exportContentType       = "application/xml; charset=iso-8859-1"
)

var orderPageOptions = pagination.Options{DefaultPerPage: 20, MaxPerPage: 200}

type cartItemRequest struct {
	ArticleID string `json:"article_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type placeOrderRequest struct {
	Orderer ordererPayload    `json:"orderer"`
	Items   []cartItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
}

type markOrderAsPaidRequest struct {
	PaymentMethod     string         `json:"payment_method" validate:"required,max=40"`
	AdditionalLogData map[string]any `json:"additional_log_data,omitempty"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type addNoteRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type placedOrderResponse struct {
	Order orderPayload `json:"order"`
	Event eventPayload `json:"event"`
}

type eventPayload struct {
	Name        string `json:"name"`
	OccurredAt  string `json:"occurred_at"`
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	InitiatorID string `json:"initiator_id,omitempty"`
}

func newEventPayload(event services.ShopOrderEvent) eventPayload {
	base := event.Base()
	return eventPayload{
		Name:        event.EventName(),
		OccurredAt:  formatTime(base.OccurredAt),
		OrderID:     base.OrderID,
		OrderNumber: base.OrderNumber,
		InitiatorID: base.InitiatorID,
	}
}

type orderCountsPayload struct {
	ByPaymentState map[string]int `json:"by_payment_state"`
	Open           int            `json:"open"`
}

// OrderHandlers drives the order lifecycle over HTTP.
type OrderHandlers struct {
	orders  services.OrderService
	catalog services.CatalogService
	shops   services.ShopService
	emails  services.OrderEmailService
	exports services.OrderExportService

	idempotency func(http.Handler) http.Handler
	limiter     rateLimiter
	links       ExportLinker
	linkTTL     time.Duration
	clock       func() time.Time
}

// ExportLinker signs download URLs for uploaded exports.
type ExportLinker interface {
	DownloadURL(ctx context.Context, object string, expiresIn time.Duration) (storage.DownloadLink, error)
}

// OrderHandlersDeps bundles the services the order endpoints need. Emails
// and exports are optional.
type OrderHandlersDeps struct {
	Orders  services.OrderService
	Catalog services.CatalogService
	Shops   services.ShopService
	Emails  services.OrderEmailService
	Exports services.OrderExportService
}

// OrderOption customises OrderHandlers.
type OrderOption func(*OrderHandlers)

// WithOrderIdempotency wraps order placement in the given middleware.
func WithOrderIdempotency(mw func(http.Handler) http.Handler) OrderOption {
	return func(h *OrderHandlers) {
		h.idempotency = mw
	}
}

// WithPlaceOrderRateLimit caps order placements per actor and storefront.
// A non-positive limit disables the cap.
func WithPlaceOrderRateLimit(limit int, window time.Duration) OrderOption {
	return func(h *OrderHandlers) {
		h.limiter = newWindowLimiter(limit, window, func() time.Time { return h.clock() })
	}
}

// WithExportLinker adds a signed download URL to export upload responses.
func WithExportLinker(linker ExportLinker, ttl time.Duration) OrderOption {
	return func(h *OrderHandlers) {
		h.links = linker
		h.linkTTL = ttl
	}
}

// WithOrderClock overrides the clock used for actor timestamps.
func WithOrderClock(clock func() time.Time) OrderOption {
	return func(h *OrderHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewOrderHandlers constructs OrderHandlers.
func NewOrderHandlers(deps OrderHandlersDeps, opts ...OrderOption) *OrderHandlers {
	h := &OrderHandlers{
		orders:  deps.Orders,
		catalog: deps.Catalog,
		shops:   deps.Shops,
		emails:  deps.Emails,
		exports: deps.Exports,
		clock:   time.Now,
	}
	h.limiter = newWindowLimiter(defaultPlaceOrderLimit, defaultPlaceOrderWindow, func() time.Time { return h.clock() })
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the order endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	place := http.Handler(http.HandlerFunc(h.placeOrder))
	if h.idempotency != nil {
		place = h.idempotency(place)
	}
	r.Method(http.MethodPost, "/storefronts/{storefrontID}/orders", place)

	r.Get("/shops/{shopID}/orders", h.listOrders)
	r.Get("/shops/{shopID}/orders:counts", h.countOrders)
	r.Get("/shops/{shopID}/orderers/{userID}/orders", h.listOrdersByOrderer)
	r.Get("/order-numbers/{orderNumber}", h.getOrderByNumber)

	r.Get("/orders/{orderID}", h.getOrder)
	r.Delete("/orders/{orderID}", h.deleteOrder)
	r.Get("/orders/{orderID}/log", h.getLog)
	r.Post("/orders/{orderID}:mark-paid", h.markAsPaid)
	r.Post("/orders/{orderID}:cancel", h.cancelOrder)
	r.Post("/orders/{orderID}/notes", h.addNote)
	r.Post("/orders/{orderID}/flags/invoiced", h.setInvoiced)
	r.Delete("/orders/{orderID}/flags/invoiced", h.unsetInvoiced)
	r.Post("/orders/{orderID}/flags/shipped", h.setShipped)
	r.Delete("/orders/{orderID}/flags/shipped", h.unsetShipped)
	r.Post("/orders/{orderID}/emails/{kind}", h.resendEmail)
	r.Get("/orders/{orderID}/export.xml", h.exportOrder)
	r.Post("/orders/{orderID}/export:upload", h.uploadExport)
}

func (h *OrderHandlers) unavailable(w http.ResponseWriter, r *http.Request) bool {
	if h.orders != nil {
		return false
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
	return true
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	if h.catalog == nil || h.shops == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	storefrontID := strings.TrimSpace(chi.URLParam(r, "storefrontID"))
	if h.limiter != nil && !h.limiter.Allow(auth.ActorID(ctx)+"|"+storefrontID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many orders placed, retry later", http.StatusTooManyRequests))
		return
	}

	var req placeOrderRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	storefront, err := h.shops.GetStorefront(ctx, storefrontID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	shop, err := h.shops.GetShop(ctx, storefront.ShopID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	cart, err := h.buildCart(r, shop, req.Items)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	order, event, err := h.orders.PlaceOrder(ctx, services.PlaceOrderCommand{
		StorefrontID: storefront.ID,
		Orderer:      req.Orderer.toOrderer(),
		Cart:         cart,
		Actor:        actorFromRequest(r, h.clock()),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+order.ID)
	writeJSONResponse(w, http.StatusCreated, placedOrderResponse{
		Order: newOrderPayload(order),
		Event: newEventPayload(event),
	})
}

// buildCart expands each requested article into its compilation so that
// attached articles are ordered along with it.
func (h *OrderHandlers) buildCart(r *http.Request, shop services.Shop, items []cartItemRequest) (*services.Cart, error) {
	ctx := r.Context()
	cart := domain.NewCart(shop.Currency)
	for _, item := range items {
		compilation, err := h.catalog.GetArticleCompilationForSingleArticle(ctx, strings.TrimSpace(item.ArticleID))
		if err != nil {
			return nil, err
		}
		for _, entry := range compilation.Items {
			if entry.Article.ShopID != shop.ID {
				return nil, fmt.Errorf("%w: article %s does not belong to shop %s", services.ErrOrderInvalidInput, entry.Article.ItemNumber, shop.ID)
			}
			if entry.Article.Price.Currency != cart.Currency() {
				return nil, fmt.Errorf("%w: article %s is priced in %s", services.ErrOrderInvalidInput, entry.Article.ItemNumber, entry.Article.Price.Currency)
			}
			if err := cart.AddCompilationItem(entry, item.Quantity); err != nil {
				return nil, err
			}
		}
	}
	return cart, nil
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newOrderPayload(order))
}

func (h *OrderHandlers) getOrderByNumber(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	order, err := h.orders.FindOrderByNumber(ctx, chi.URLParam(r, "orderNumber"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newOrderPayload(order))
}

func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	if err := h.orders.DeleteOrder(ctx, chi.URLParam(r, "orderID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandlers) getLog(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	entries, err := h.orders.GetLogEntries(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]logEntryPayload, 0, len(entries))
	for _, entry := range entries {
		items = append(items, newLogEntryPayload(entry))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	params, err := pagination.FromRequest(r, orderPageOptions)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	filter := services.OrderListFilter{
		ShopID:     chi.URLParam(r, "shopID"),
		SearchTerm: params.SearchTerm,
		Pagination: params.Pagination,
	}

	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("payment_state")); raw != "" {
		state, err := domain.ParsePaymentState(raw)
		if err != nil {
			writeBadRequest(ctx, w, "payment_state must be one of open, paid, canceled_before_paid, canceled_after_paid")
			return
		}
		filter.PaymentState = &state
	}
	switch raw := strings.TrimSpace(query.Get("processing_state")); domain.ProcessingState(raw) {
	case domain.ProcessingStateAny, domain.ProcessingStateProcessed, domain.ProcessingStateUnprocessed:
		filter.ProcessingState = domain.ProcessingState(raw)
	default:
		writeBadRequest(ctx, w, "processing_state must be processed or unprocessed")
		return
	}

	page, err := h.orders.ListOrdersForShop(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	pagination.PageHeaders(w, page)
	writeJSONResponse(w, http.StatusOK, newPagePayload(page, newOrderPayload))
}

func (h *OrderHandlers) countOrders(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	shopID := chi.URLParam(r, "shopID")
	counts, err := h.orders.CountOrdersByPaymentState(ctx, shopID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	payload := orderCountsPayload{ByPaymentState: make(map[string]int, len(counts))}
	for _, state := range domain.PaymentStates() {
		payload.ByPaymentState[state.String()] = counts[state]
	}
	payload.Open = counts[domain.PaymentStateOpen]
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *OrderHandlers) listOrdersByOrderer(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	orders, err := h.orders.ListOrdersByOrderer(ctx, chi.URLParam(r, "userID"), chi.URLParam(r, "shopID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		items = append(items, newOrderPayload(order))
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(items)))
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *OrderHandlers) markAsPaid(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	var req markOrderAsPaidRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	event, err := h.orders.MarkOrderAsPaid(ctx, services.MarkOrderAsPaidCommand{
		OrderID:           chi.URLParam(r, "orderID"),
		PaymentMethod:     strings.TrimSpace(req.PaymentMethod),
		AdditionalLogData: textutil.NormalizeParams(req.AdditionalLogData),
		Actor:             actorFromRequest(r, h.clock()),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newEventPayload(event))
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	var req cancelOrderRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	event, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Reason:  req.Reason,
		Actor:   actorFromRequest(r, h.clock()),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newEventPayload(event))
}

func (h *OrderHandlers) addNote(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	var req addNoteRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	entry, err := h.orders.AddNote(ctx, services.AddOrderNoteCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Text:    req.Text,
		Actor:   actorFromRequest(r, h.clock()),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, newLogEntryPayload(entry))
}

func (h *OrderHandlers) setInvoiced(w http.ResponseWriter, r *http.Request) {
	h.applyFlag(w, r, "invoiced", true)
}

func (h *OrderHandlers) unsetInvoiced(w http.ResponseWriter, r *http.Request) {
	h.applyFlag(w, r, "invoiced", false)
}

func (h *OrderHandlers) setShipped(w http.ResponseWriter, r *http.Request) {
	h.applyFlag(w, r, "shipped", true)
}

func (h *OrderHandlers) unsetShipped(w http.ResponseWriter, r *http.Request) {
	h.applyFlag(w, r, "shipped", false)
}

func (h *OrderHandlers) applyFlag(w http.ResponseWriter, r *http.Request, flag string, set bool) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	var apply func(context.Context, services.OrderFlagCommand) (services.Order, error)
	switch {
	case flag == "invoiced" && set:
		apply = h.orders.SetInvoicedFlag
	case flag == "invoiced":
		apply = h.orders.UnsetInvoicedFlag
	case set:
		apply = h.orders.SetShippedFlag
	default:
		apply = h.orders.UnsetShippedFlag
	}
	order, err := apply(ctx, services.OrderFlagCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Actor:   actorFromRequest(r, h.clock()),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newOrderPayload(order))
}

func (h *OrderHandlers) resendEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.emails == nil {
		httpx.WriteError(ctx, w, httpx.NewError("email_service_unavailable", "email service unavailable", http.StatusServiceUnavailable))
		return
	}
	orderID := chi.URLParam(r, "orderID")
	var err error
	switch chi.URLParam(r, "kind") {
	case "placed":
		err = h.emails.SendPlacedEmail(ctx, orderID)
	case "paid":
		err = h.emails.SendPaidEmail(ctx, orderID)
	case "canceled":
		err = h.emails.SendCanceledEmail(ctx, orderID)
	default:
		writeBadRequest(ctx, w, "email kind must be placed, paid or canceled")
		return
	}
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *OrderHandlers) exportOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.exports == nil {
		httpx.WriteError(ctx, w, httpx.NewError("export_service_unavailable", "export service unavailable", http.StatusServiceUnavailable))
		return
	}
	data, err := h.exports.ExportOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", exportContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *OrderHandlers) uploadExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.exports == nil {
		httpx.WriteError(ctx, w, httpx.NewError("export_service_unavailable", "export service unavailable", http.StatusServiceUnavailable))
		return
	}
	location, err := h.exports.UploadExport(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	resp := map[string]string{"location": location}
	if h.links != nil {
		link, err := h.links.DownloadURL(ctx, location, h.linkTTL)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		resp["download_url"] = link.URL
		resp["download_expires_at"] = link.ExpiresAt.UTC().Format(time.RFC3339)
	}
	writeJSONResponse(w, http.StatusCreated, resp)
}
