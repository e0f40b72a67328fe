package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/platform/httpx"
	"github.com/byceps/byceps-sub001/internal/platform/pagination"
	"github.com/byceps/byceps-sub001/internal/platform/textutil"
	"github.com/byceps/byceps-sub001/internal/services"
)

var articlePageOptions = pagination.Options{DefaultPerPage: 20, MaxPerPage: 100}

type createArticleRequest struct {
	ItemNumber            string         `json:"item_number,omitempty" validate:"max=40"`
	Type                  string         `json:"type" validate:"omitempty,oneof=physical ticket ticket_bundle other"`
	TypeParams            map[string]any `json:"type_params,omitempty"`
	TicketCategoryID      string         `json:"ticket_category_id,omitempty"`
	TicketQuantity        int            `json:"ticket_quantity,omitempty" validate:"gte=0"`
	Description           string         `json:"description" validate:"required,max=200"`
	Price                 moneyRequest   `json:"price"`
	TaxRate               string         `json:"tax_rate" validate:"required,numeric"`
	TotalQuantity         int            `json:"total_quantity" validate:"gte=0"`
	MaxQuantityPerOrder   int            `json:"max_quantity_per_order" validate:"gte=0"`
	ProcessingRequired    bool           `json:"processing_required"`
	AvailableFrom         *string        `json:"available_from,omitempty"`
	AvailableUntil        *string        `json:"available_until,omitempty"`
	NotDirectlyOrderable  bool           `json:"not_directly_orderable"`
	SeparateOrderRequired bool           `json:"separate_order_required"`
}

type updateArticleRequest struct {
	Description           *string       `json:"description,omitempty" validate:"omitempty,max=200"`
	Price                 *moneyRequest `json:"price,omitempty"`
	TaxRate               *string       `json:"tax_rate,omitempty" validate:"omitempty,numeric"`
	MaxQuantityPerOrder   *int          `json:"max_quantity_per_order,omitempty" validate:"omitempty,gte=0"`
	AvailableFrom         *string       `json:"available_from,omitempty"`
	AvailableUntil        *string       `json:"available_until,omitempty"`
	ClearAvailability     bool          `json:"clear_availability"`
	NotDirectlyOrderable  *bool         `json:"not_directly_orderable,omitempty"`
	SeparateOrderRequired *bool         `json:"separate_order_required,omitempty"`
}

type attachArticleRequest struct {
	ArticleID string `json:"article_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type adjustQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type attachmentPayload struct {
	ID                string `json:"id"`
	ArticleID         string `json:"article_id"`
	AttachedArticleID string `json:"attached_article_id"`
	Quantity          int    `json:"quantity"`
}

type quantityPayload struct {
	ArticleID string `json:"article_id"`
	Quantity  int    `json:"quantity"`
}

// ArticleHandlers manages the article catalog of a shop.
type ArticleHandlers struct {
	catalog services.CatalogService
}

// NewArticleHandlers constructs ArticleHandlers.
func NewArticleHandlers(catalog services.CatalogService) *ArticleHandlers {
	return &ArticleHandlers{catalog: catalog}
}

// Routes registers the article endpoints.
func (h *ArticleHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/shops/{shopID}/articles", h.listArticles)
	r.Post("/shops/{shopID}/articles", h.createArticle)
	r.Get("/shops/{shopID}/articles/orderable", h.orderableArticles)
	r.Get("/articles/{articleID}", h.getArticle)
	r.Patch("/articles/{articleID}", h.updateArticle)
	r.Delete("/articles/{articleID}", h.deleteArticle)
	r.Get("/articles/{articleID}/compilation", h.articleCompilation)
	r.Post("/articles/{articleID}/attachments", h.attachArticle)
	r.Delete("/article-attachments/{attachmentID}", h.unattachArticle)
	r.Post("/articles/{articleID}:increase-quantity", h.increaseQuantity)
	r.Post("/articles/{articleID}:decrease-quantity", h.decreaseQuantity)
}

func (h *ArticleHandlers) unavailable(w http.ResponseWriter, r *http.Request) bool {
	if h.catalog != nil {
		return false
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
	return true
}

func (h *ArticleHandlers) listArticles(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	params, err := pagination.FromRequest(r, articlePageOptions)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	page, err := h.catalog.GetArticlesForShopPaginated(ctx, chi.URLParam(r, "shopID"), params.Pagination, params.SearchTerm)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	pagination.PageHeaders(w, page)
	writeJSONResponse(w, http.StatusOK, newPagePayload(page, newArticlePayload))
}

func (h *ArticleHandlers) createArticle(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	var req createArticleRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	cmd, err := req.toCommand(chi.URLParam(r, "shopID"))
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	var article services.Article
	switch cmd.Type {
	case domain.ArticleTypeTicket:
		article, err = h.catalog.CreateTicketArticle(ctx, cmd, req.categoryID())
	case domain.ArticleTypeTicketBundle:
		article, err = h.catalog.CreateTicketBundleArticle(ctx, cmd, req.categoryID(), req.ticketQuantity())
	default:
		article, err = h.catalog.CreateArticle(ctx, cmd)
	}
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, newArticlePayload(article))
}

func (req createArticleRequest) toCommand(shopID string) (services.CreateArticleCommand, error) {
	price, err := req.Price.toMoney()
	if err != nil {
		return services.CreateArticleCommand{}, err
	}
	taxRate, err := decimal.NewFromString(strings.TrimSpace(req.TaxRate))
	if err != nil {
		return services.CreateArticleCommand{}, errors.New("tax_rate must be a decimal such as 0.19")
	}
	from, err := parseTimePointer(req.AvailableFrom)
	if err != nil {
		return services.CreateArticleCommand{}, err
	}
	until, err := parseTimePointer(req.AvailableUntil)
	if err != nil {
		return services.CreateArticleCommand{}, err
	}
	articleType := domain.ArticleTypeOther
	if strings.TrimSpace(req.Type) != "" {
		articleType, err = domain.ParseArticleType(req.Type)
		if err != nil {
			return services.CreateArticleCommand{}, err
		}
	}
	return services.CreateArticleCommand{
		ShopID:                strings.TrimSpace(shopID),
		ItemNumber:            strings.TrimSpace(req.ItemNumber),
		Type:                  articleType,
		TypeParams:            textutil.NormalizeParams(req.TypeParams),
		Description:           req.Description,
		Price:                 price,
		TaxRate:               taxRate,
		TotalQuantity:         req.TotalQuantity,
		MaxQuantityPerOrder:   req.MaxQuantityPerOrder,
		ProcessingRequired:    req.ProcessingRequired,
		AvailableFrom:         from,
		AvailableUntil:        until,
		NotDirectlyOrderable:  req.NotDirectlyOrderable,
		SeparateOrderRequired: req.SeparateOrderRequired,
	}, nil
}

// categoryID prefers the explicit field and falls back to type_params.
func (req createArticleRequest) categoryID() string {
	if id := strings.TrimSpace(req.TicketCategoryID); id != "" {
		return id
	}
	if id, ok := req.TypeParams["ticket_category_id"].(string); ok {
		return strings.TrimSpace(id)
	}
	return ""
}

func (req createArticleRequest) ticketQuantity() int {
	if req.TicketQuantity > 0 {
		return req.TicketQuantity
	}
	// JSON numbers decode as float64.
	if q, ok := req.TypeParams["ticket_quantity"].(float64); ok {
		return int(q)
	}
	return 0
}

func (h *ArticleHandlers) orderableArticles(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	compilation, err := h.catalog.GetArticleCompilationForOrderableArticles(ctx, chi.URLParam(r, "shopID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": newCompilationPayload(compilation)})
}

func (h *ArticleHandlers) getArticle(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	article, err := h.catalog.GetArticle(ctx, chi.URLParam(r, "articleID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newArticlePayload(article))
}

func (h *ArticleHandlers) updateArticle(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	var req updateArticleRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	cmd := services.UpdateArticleCommand{
		ArticleID:             chi.URLParam(r, "articleID"),
		Description:           req.Description,
		MaxQuantityPerOrder:   req.MaxQuantityPerOrder,
		ClearAvailability:     req.ClearAvailability,
		NotDirectlyOrderable:  req.NotDirectlyOrderable,
		SeparateOrderRequired: req.SeparateOrderRequired,
	}
	if req.Price != nil {
		price, err := req.Price.toMoney()
		if err != nil {
			writeBadRequest(ctx, w, err.Error())
			return
		}
		cmd.Price = &price
	}
	if req.TaxRate != nil {
		rate, err := decimal.NewFromString(strings.TrimSpace(*req.TaxRate))
		if err != nil {
			writeBadRequest(ctx, w, "tax_rate must be a decimal such as 0.19")
			return
		}
		cmd.TaxRate = &rate
	}
	var err error
	if cmd.AvailableFrom, err = parseTimePointer(req.AvailableFrom); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	if cmd.AvailableUntil, err = parseTimePointer(req.AvailableUntil); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	article, err := h.catalog.UpdateArticle(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newArticlePayload(article))
}

func (h *ArticleHandlers) deleteArticle(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	if err := h.catalog.DeleteArticle(ctx, chi.URLParam(r, "articleID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ArticleHandlers) articleCompilation(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	compilation, err := h.catalog.GetArticleCompilationForSingleArticle(ctx, chi.URLParam(r, "articleID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": newCompilationPayload(compilation)})
}

func (h *ArticleHandlers) attachArticle(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	var req attachArticleRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	attachment, err := h.catalog.AttachArticle(ctx, chi.URLParam(r, "articleID"), strings.TrimSpace(req.ArticleID), req.Quantity)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, attachmentPayload(attachment))
}

func (h *ArticleHandlers) unattachArticle(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	if err := h.catalog.UnattachArticle(ctx, chi.URLParam(r, "attachmentID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ArticleHandlers) increaseQuantity(w http.ResponseWriter, r *http.Request) {
	h.adjustQuantity(w, r, false)
}

func (h *ArticleHandlers) decreaseQuantity(w http.ResponseWriter, r *http.Request) {
	h.adjustQuantity(w, r, true)
}

func (h *ArticleHandlers) adjustQuantity(w http.ResponseWriter, r *http.Request, decrease bool) {
	if h.unavailable(w, r) {
		return
	}
	ctx := r.Context()
	var req adjustQuantityRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	articleID := chi.URLParam(r, "articleID")
	adjust := h.catalog.IncreaseQuantity
	if decrease {
		adjust = h.catalog.DecreaseQuantity
	}
	quantity, err := adjust(ctx, articleID, req.Quantity, true)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, quantityPayload{ArticleID: articleID, Quantity: quantity})
}
