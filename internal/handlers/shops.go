package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/byceps/byceps-sub001/internal/platform/httpx"
	"github.com/byceps/byceps-sub001/internal/services"
)

type createShopRequest struct {
	ID                  string `json:"id" validate:"required,max=40"`
	BrandID             string `json:"brand_id" validate:"required"`
	Title               string `json:"title" validate:"required,max=40"`
	Currency            string `json:"currency" validate:"required,len=3,alpha"`
	OrderNumberPrefix   string `json:"order_number_prefix" validate:"required,max=20"`
	ArticleNumberPrefix string `json:"article_number_prefix" validate:"required,max=20"`
	StorefrontID        string `json:"storefront_id,omitempty" validate:"max=40"`
}

type shopSetupResponse struct {
	Shop            shopPayload        `json:"shop"`
	OrderSequence   sequencePayload    `json:"order_sequence"`
	ArticleSequence sequencePayload    `json:"article_sequence"`
	Storefront      *storefrontPayload `json:"storefront,omitempty"`
}

// ShopHandlers administers shops, their storefronts and email previews.
type ShopHandlers struct {
	shops  services.ShopService
	emails services.OrderEmailService
}

// NewShopHandlers constructs ShopHandlers.
func NewShopHandlers(shops services.ShopService, emails services.OrderEmailService) *ShopHandlers {
	return &ShopHandlers{shops: shops, emails: emails}
}

// Routes registers the shop and storefront endpoints.
func (h *ShopHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/shops", h.createShop)
	r.Get("/shops/{shopID}", h.getShop)
	r.Get("/shops/{shopID}/email-examples", h.emailExamples)
	r.Get("/storefronts/{storefrontID}", h.getStorefront)
	r.Post("/storefronts/{storefrontID}:close", h.closeStorefront)
	r.Post("/storefronts/{storefrontID}:open", h.openStorefront)
}

func (h *ShopHandlers) createShop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shops == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shop_service_unavailable", "shop service unavailable", http.StatusServiceUnavailable))
		return
	}
	var req createShopRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	setup, err := h.shops.CreateShop(ctx, services.CreateShopCommand{
		ShopID:              strings.TrimSpace(req.ID),
		BrandID:             strings.TrimSpace(req.BrandID),
		Title:               strings.TrimSpace(req.Title),
		Currency:            req.Currency,
		OrderNumberPrefix:   req.OrderNumberPrefix,
		ArticleNumberPrefix: req.ArticleNumberPrefix,
		StorefrontID:        strings.TrimSpace(req.StorefrontID),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	resp := shopSetupResponse{
		Shop:            newShopPayload(setup.Shop),
		OrderSequence:   newSequencePayload(setup.OrderSequence),
		ArticleSequence: newSequencePayload(setup.ArticleSequence),
	}
	if setup.Storefront != nil {
		sf := newStorefrontPayload(*setup.Storefront)
		resp.Storefront = &sf
	}
	writeJSONResponse(w, http.StatusCreated, resp)
}

func (h *ShopHandlers) getShop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shops == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shop_service_unavailable", "shop service unavailable", http.StatusServiceUnavailable))
		return
	}
	shop, err := h.shops.GetShop(ctx, chi.URLParam(r, "shopID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newShopPayload(shop))
}

func (h *ShopHandlers) emailExamples(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.emails == nil {
		httpx.WriteError(ctx, w, httpx.NewError("email_service_unavailable", "email service unavailable", http.StatusServiceUnavailable))
		return
	}
	locale := strings.TrimSpace(r.URL.Query().Get("locale"))
	messages, err := h.emails.ExampleMessages(ctx, chi.URLParam(r, "shopID"), locale)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	names := make([]string, 0, len(messages))
	for name := range messages {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make(map[string]emailPayload, len(messages))
	for _, name := range names {
		out[name] = newEmailPayload(messages[name])
	}
	writeJSONResponse(w, http.StatusOK, out)
}

func (h *ShopHandlers) getStorefront(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shops == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shop_service_unavailable", "shop service unavailable", http.StatusServiceUnavailable))
		return
	}
	sf, err := h.shops.GetStorefront(ctx, chi.URLParam(r, "storefrontID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newStorefrontPayload(sf))
}

func (h *ShopHandlers) closeStorefront(w http.ResponseWriter, r *http.Request) {
	h.toggleStorefront(w, r, true)
}

func (h *ShopHandlers) openStorefront(w http.ResponseWriter, r *http.Request) {
	h.toggleStorefront(w, r, false)
}

func (h *ShopHandlers) toggleStorefront(w http.ResponseWriter, r *http.Request, closed bool) {
	ctx := r.Context()
	if h.shops == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shop_service_unavailable", "shop service unavailable", http.StatusServiceUnavailable))
		return
	}
	apply := h.shops.OpenStorefront
	if closed {
		apply = h.shops.CloseStorefront
	}
	sf, err := apply(ctx, chi.URLParam(r, "storefrontID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newStorefrontPayload(sf))
}
