package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/services"
)

var errNotStubbed = errors.New("not implemented")

type stubOrderService struct {
	services.OrderService

	placeFn    func(context.Context, services.PlaceOrderCommand) (services.Order, services.ShopOrderPlaced, error)
	paidFn     func(context.Context, services.MarkOrderAsPaidCommand) (services.ShopOrderPaid, error)
	cancelFn   func(context.Context, services.CancelOrderCommand) (services.ShopOrderCanceled, error)
	noteFn     func(context.Context, services.AddOrderNoteCommand) (services.OrderLogEntry, error)
	flagFn     func(context.Context, string, services.OrderFlagCommand) (services.Order, error)
	getFn      func(context.Context, string) (services.Order, error)
	listFn     func(context.Context, services.OrderListFilter) (domain.Page[services.Order], error)
	countFn    func(context.Context, string) (map[services.PaymentState]int, error)
	logEntries []services.OrderLogEntry
}

func (s *stubOrderService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, services.ShopOrderPlaced, error) {
	if s.placeFn != nil {
		return s.placeFn(ctx, cmd)
	}
	return services.Order{}, services.ShopOrderPlaced{}, errNotStubbed
}

func (s *stubOrderService) MarkOrderAsPaid(ctx context.Context, cmd services.MarkOrderAsPaidCommand) (services.ShopOrderPaid, error) {
	if s.paidFn != nil {
		return s.paidFn(ctx, cmd)
	}
	return services.ShopOrderPaid{}, errNotStubbed
}

func (s *stubOrderService) CancelOrder(ctx context.Context, cmd services.CancelOrderCommand) (services.ShopOrderCanceled, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return services.ShopOrderCanceled{}, errNotStubbed
}

func (s *stubOrderService) AddNote(ctx context.Context, cmd services.AddOrderNoteCommand) (services.OrderLogEntry, error) {
	if s.noteFn != nil {
		return s.noteFn(ctx, cmd)
	}
	return services.OrderLogEntry{}, errNotStubbed
}

func (s *stubOrderService) flag(ctx context.Context, name string, cmd services.OrderFlagCommand) (services.Order, error) {
	if s.flagFn != nil {
		return s.flagFn(ctx, name, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) SetInvoicedFlag(ctx context.Context, cmd services.OrderFlagCommand) (services.Order, error) {
	return s.flag(ctx, "set-invoiced", cmd)
}

func (s *stubOrderService) UnsetInvoicedFlag(ctx context.Context, cmd services.OrderFlagCommand) (services.Order, error) {
	return s.flag(ctx, "unset-invoiced", cmd)
}

func (s *stubOrderService) SetShippedFlag(ctx context.Context, cmd services.OrderFlagCommand) (services.Order, error) {
	return s.flag(ctx, "set-shipped", cmd)
}

func (s *stubOrderService) UnsetShippedFlag(ctx context.Context, cmd services.OrderFlagCommand) (services.Order, error) {
	return s.flag(ctx, "unset-shipped", cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) ListOrdersForShop(ctx context.Context, filter services.OrderListFilter) (domain.Page[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.Page[services.Order]{}, nil
}

func (s *stubOrderService) CountOrdersByPaymentState(ctx context.Context, shopID string) (map[services.PaymentState]int, error) {
	if s.countFn != nil {
		return s.countFn(ctx, shopID)
	}
	return map[services.PaymentState]int{}, nil
}

func (s *stubOrderService) GetLogEntries(context.Context, string) ([]services.OrderLogEntry, error) {
	return s.logEntries, nil
}

type stubCatalogService struct {
	services.CatalogService

	compilations map[string]services.ArticleCompilation
	createFn     func(context.Context, string, services.CreateArticleCommand, string, int) (services.Article, error)
	updateFn     func(context.Context, services.UpdateArticleCommand) (services.Article, error)
	pageFn       func(context.Context, string, services.Pagination, string) (domain.Page[services.Article], error)
}

func (s *stubCatalogService) GetArticleCompilationForSingleArticle(_ context.Context, articleID string) (services.ArticleCompilation, error) {
	compilation, ok := s.compilations[articleID]
	if !ok {
		return services.ArticleCompilation{}, services.ErrUnknownArticle
	}
	return compilation, nil
}

func (s *stubCatalogService) CreateArticle(ctx context.Context, cmd services.CreateArticleCommand) (services.Article, error) {
	return s.create(ctx, "article", cmd, "", 0)
}

func (s *stubCatalogService) CreateTicketArticle(ctx context.Context, cmd services.CreateArticleCommand, categoryID string) (services.Article, error) {
	return s.create(ctx, "ticket", cmd, categoryID, 0)
}

func (s *stubCatalogService) CreateTicketBundleArticle(ctx context.Context, cmd services.CreateArticleCommand, categoryID string, ticketQuantity int) (services.Article, error) {
	return s.create(ctx, "ticket_bundle", cmd, categoryID, ticketQuantity)
}

func (s *stubCatalogService) create(ctx context.Context, kind string, cmd services.CreateArticleCommand, categoryID string, quantity int) (services.Article, error) {
	if s.createFn != nil {
		return s.createFn(ctx, kind, cmd, categoryID, quantity)
	}
	return services.Article{}, errNotStubbed
}

func (s *stubCatalogService) UpdateArticle(ctx context.Context, cmd services.UpdateArticleCommand) (services.Article, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.Article{}, errNotStubbed
}

func (s *stubCatalogService) GetArticlesForShopPaginated(ctx context.Context, shopID string, pager services.Pagination, term string) (domain.Page[services.Article], error) {
	if s.pageFn != nil {
		return s.pageFn(ctx, shopID, pager, term)
	}
	return domain.Page[services.Article]{}, nil
}

type stubShopService struct {
	services.ShopService

	shops       map[string]services.Shop
	storefronts map[string]services.Storefront
	createFn    func(context.Context, services.CreateShopCommand) (services.ShopSetup, error)
}

func (s *stubShopService) GetShop(_ context.Context, shopID string) (services.Shop, error) {
	shop, ok := s.shops[shopID]
	if !ok {
		return services.Shop{}, services.ErrUnknownShop
	}
	return shop, nil
}

func (s *stubShopService) GetStorefront(_ context.Context, storefrontID string) (services.Storefront, error) {
	sf, ok := s.storefronts[storefrontID]
	if !ok {
		return services.Storefront{}, services.ErrUnknownStorefront
	}
	return sf, nil
}

func (s *stubShopService) CreateShop(ctx context.Context, cmd services.CreateShopCommand) (services.ShopSetup, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.ShopSetup{}, errNotStubbed
}

type stubExportService struct {
	data []byte
	err  error
}

func (s *stubExportService) ExportOrder(context.Context, string) ([]byte, error) {
	return s.data, s.err
}

func (s *stubExportService) UploadExport(_ context.Context, orderID string) (string, error) {
	return "gs://exports/" + orderID + ".xml", s.err
}

func serve(t *testing.T, routes RouteRegistrar, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	r := chi.NewRouter()
	routes(r)
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return body
}

func assertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	if got := decodeBody(t, rr)["error"]; got != code {
		t.Fatalf("expected error %q, got %v", code, got)
	}
}
