package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/platform/storage"
	"github.com/byceps/byceps-sub001/internal/services"
)

var orderTestNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testArticle(id, number, amount, currency string) domain.Article {
	return domain.Article{
		ID:          id,
		ShopID:      "lanparty",
		ItemNumber:  number,
		Type:        domain.ArticleTypeOther,
		Description: "Article " + number,
		Price:       domain.MustMoney(amount, currency),
		TaxRate:     decimal.RequireFromString("0.19"),
		Quantity:    100,
	}
}

func orderFixtures() (*stubShopService, *stubCatalogService) {
	shops := &stubShopService{
		shops:       map[string]services.Shop{"lanparty": {ID: "lanparty", Currency: "EUR", Title: "LAN Party"}},
		storefronts: map[string]services.Storefront{"lanparty-main": {ID: "lanparty-main", ShopID: "lanparty", OrderNumberSequenceID: "seq-1"}},
	}
	two := 2
	catalog := &stubCatalogService{compilations: map[string]services.ArticleCompilation{
		"a-ticket": {Items: []domain.CompilationItem{
			{Article: testArticle("a-ticket", "LP-00001", "35.00", "EUR")},
			{Article: testArticle("a-voucher", "LP-00002", "0.00", "EUR"), FixedQuantity: &two},
		}},
		"a-dollar": {Items: []domain.CompilationItem{
			{Article: testArticle("a-dollar", "LP-00009", "5.00", "USD")},
		}},
	}}
	return shops, catalog
}

func placeOrderBody(items ...map[string]any) map[string]any {
	return map[string]any{
		"orderer": map[string]any{
			"user_id":    "u-1",
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"country":    "Germany",
			"zip_code":   "10115",
			"city":       "Berlin",
			"street":     "Invalidenstr. 1",
		},
		"items": items,
	}
}

func TestPlaceOrderExpandsAttachments(t *testing.T) {
	shops, catalog := orderFixtures()
	var captured services.PlaceOrderCommand
	orders := &stubOrderService{
		placeFn: func(_ context.Context, cmd services.PlaceOrderCommand) (services.Order, services.ShopOrderPlaced, error) {
			captured = cmd
			order := services.Order{
				ID:           "o-1",
				ShopID:       "lanparty",
				OrderNumber:  "LP-O-00001",
				CreatedAt:    orderTestNow,
				Orderer:      cmd.Orderer,
				TotalAmount:  cmd.Cart.Total(),
				PaymentState: domain.PaymentStateOpen,
			}
			event := services.ShopOrderPlaced{ShopOrderEventBase: domain.ShopOrderEventBase{
				OccurredAt:  orderTestNow,
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
			}}
			return order, event, nil
		},
	}
	h := NewOrderHandlers(OrderHandlersDeps{Orders: orders, Catalog: catalog, Shops: shops}, WithOrderClock(func() time.Time { return orderTestNow }))

	rr := serve(t, h.Routes, http.MethodPost, "/storefronts/lanparty-main/orders",
		placeOrderBody(map[string]any{"article_id": "a-ticket", "quantity": 3}))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/api/v1/orders/o-1" {
		t.Fatalf("unexpected location %q", loc)
	}
	if captured.StorefrontID != "lanparty-main" {
		t.Fatalf("expected storefront to be forwarded, got %q", captured.StorefrontID)
	}
	if !captured.Actor.Now.Equal(orderTestNow) {
		t.Fatalf("expected actor time from clock, got %v", captured.Actor.Now)
	}
	items := captured.Cart.Items()
	if len(items) != 2 {
		t.Fatalf("expected ticket plus attachment, got %d items", len(items))
	}
	if items[0].Quantity != 3 || items[1].Quantity != 6 {
		t.Fatalf("unexpected quantities %d and %d", items[0].Quantity, items[1].Quantity)
	}

	body := decodeBody(t, rr)
	order := body["order"].(map[string]any)
	if order["order_number"] != "LP-O-00001" || order["payment_state"] != "open" {
		t.Fatalf("unexpected order payload %v", order)
	}
	total := order["total_amount"].(map[string]any)
	if total["amount"] != "105.00" || total["currency"] != "EUR" {
		t.Fatalf("unexpected total %v", total)
	}
	event := body["event"].(map[string]any)
	if event["name"] != domain.EventShopOrderPlaced {
		t.Fatalf("unexpected event %v", event)
	}
}

func TestPlaceOrderRejectsForeignCurrency(t *testing.T) {
	shops, catalog := orderFixtures()
	orders := &stubOrderService{}
	h := NewOrderHandlers(OrderHandlersDeps{Orders: orders, Catalog: catalog, Shops: shops})

	rr := serve(t, h.Routes, http.MethodPost, "/storefronts/lanparty-main/orders",
		placeOrderBody(map[string]any{"article_id": "a-dollar", "quantity": 1}))

	assertErrorCode(t, rr, http.StatusBadRequest, "invalid_request")
}

func TestPlaceOrderValidatesPayload(t *testing.T) {
	shops, catalog := orderFixtures()
	h := NewOrderHandlers(OrderHandlersDeps{Orders: &stubOrderService{}, Catalog: catalog, Shops: shops})

	rr := serve(t, h.Routes, http.MethodPost, "/storefronts/lanparty-main/orders", placeOrderBody())

	assertErrorCode(t, rr, http.StatusBadRequest, "invalid_request")
}

func TestPlaceOrderUnknownStorefront(t *testing.T) {
	shops, catalog := orderFixtures()
	h := NewOrderHandlers(OrderHandlersDeps{Orders: &stubOrderService{}, Catalog: catalog, Shops: shops})

	rr := serve(t, h.Routes, http.MethodPost, "/storefronts/nope/orders",
		placeOrderBody(map[string]any{"article_id": "a-ticket", "quantity": 1}))

	assertErrorCode(t, rr, http.StatusNotFound, "storefront_not_found")
}

func TestPlaceOrderMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"closed", fmt.Errorf("%w: lanparty-main", services.ErrStorefrontClosed), http.StatusConflict, "storefront_closed"},
		{"stock", fmt.Errorf("%w: %w", services.ErrOrderFailed, services.ErrArticleQuantityUnderflow), http.StatusConflict, "order_failed"},
		{"invalid", fmt.Errorf("%w: cart is empty", services.ErrOrderInvalidInput), http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			shops, catalog := orderFixtures()
			orders := &stubOrderService{
				placeFn: func(context.Context, services.PlaceOrderCommand) (services.Order, services.ShopOrderPlaced, error) {
					return services.Order{}, services.ShopOrderPlaced{}, tc.err
				},
			}
			h := NewOrderHandlers(OrderHandlersDeps{Orders: orders, Catalog: catalog, Shops: shops})

			rr := serve(t, h.Routes, http.MethodPost, "/storefronts/lanparty-main/orders",
				placeOrderBody(map[string]any{"article_id": "a-ticket", "quantity": 1}))

			assertErrorCode(t, rr, tc.status, tc.code)
		})
	}
}

func TestPlaceOrderRateLimited(t *testing.T) {
	shops, catalog := orderFixtures()
	orders := &stubOrderService{
		placeFn: func(_ context.Context, cmd services.PlaceOrderCommand) (services.Order, services.ShopOrderPlaced, error) {
			return services.Order{ID: "o-1", TotalAmount: cmd.Cart.Total()}, services.ShopOrderPlaced{}, nil
		},
	}
	h := NewOrderHandlers(OrderHandlersDeps{Orders: orders, Catalog: catalog, Shops: shops},
		WithOrderClock(func() time.Time { return orderTestNow }),
		WithPlaceOrderRateLimit(1, time.Minute),
	)
	body := placeOrderBody(map[string]any{"article_id": "a-ticket", "quantity": 1})

	if rr := serve(t, h.Routes, http.MethodPost, "/storefronts/lanparty-main/orders", body); rr.Code != http.StatusCreated {
		t.Fatalf("expected first order to pass, got %d", rr.Code)
	}
	rr := serve(t, h.Routes, http.MethodPost, "/storefronts/lanparty-main/orders", body)
	assertErrorCode(t, rr, http.StatusTooManyRequests, "rate_limited")
}

func TestPlaceOrderIdempotencyMiddlewareWraps(t *testing.T) {
	shops, catalog := orderFixtures()
	called := false
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}
	h := NewOrderHandlers(OrderHandlersDeps{Orders: &stubOrderService{}, Catalog: catalog, Shops: shops}, WithOrderIdempotency(mw))

	serve(t, h.Routes, http.MethodPost, "/storefronts/lanparty-main/orders", placeOrderBody())

	if !called {
		t.Fatal("expected idempotency middleware around order placement")
	}
}

func TestMarkOrderAsPaid(t *testing.T) {
	var captured services.MarkOrderAsPaidCommand
	orders := &stubOrderService{
		paidFn: func(_ context.Context, cmd services.MarkOrderAsPaidCommand) (services.ShopOrderPaid, error) {
			captured = cmd
			if cmd.PaymentMethod == "cash" {
				return services.ShopOrderPaid{}, services.ErrOrderAlreadyMarkedAsPaid
			}
			return services.ShopOrderPaid{
				ShopOrderEventBase: domain.ShopOrderEventBase{OrderID: cmd.OrderID, OccurredAt: orderTestNow},
				PaymentMethod:      cmd.PaymentMethod,
			}, nil
		},
	}
	h := NewOrderHandlers(OrderHandlersDeps{Orders: orders})

	rr := serve(t, h.Routes, http.MethodPost, "/orders/o-1:mark-paid", map[string]any{
		"payment_method":      "bank_transfer",
		"additional_log_data": map[string]any{" reference ": " TX-1 "},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "o-1" || captured.AdditionalLogData["reference"] != "TX-1" {
		t.Fatalf("unexpected command %+v", captured)
	}
	if body := decodeBody(t, rr); body["name"] != domain.EventShopOrderPaid {
		t.Fatalf("unexpected event %v", body)
	}

	rr = serve(t, h.Routes, http.MethodPost, "/orders/o-1:mark-paid", map[string]any{"payment_method": "cash"})
	assertErrorCode(t, rr, http.StatusConflict, "order_already_paid")
}

func TestCancelOrder(t *testing.T) {
	orders := &stubOrderService{
		cancelFn: func(_ context.Context, cmd services.CancelOrderCommand) (services.ShopOrderCanceled, error) {
			if cmd.OrderID == "missing" {
				return services.ShopOrderCanceled{}, services.ErrUnknownOrder
			}
			return services.ShopOrderCanceled{ShopOrderEventBase: domain.ShopOrderEventBase{OrderID: cmd.OrderID}}, nil
		},
	}
	h := NewOrderHandlers(OrderHandlersDeps{Orders: orders})

	rr := serve(t, h.Routes, http.MethodPost, "/orders/o-1:cancel", map[string]any{})
	assertErrorCode(t, rr, http.StatusBadRequest, "invalid_request")

	rr = serve(t, h.Routes, http.MethodPost, "/orders/missing:cancel", map[string]any{"reason": "duplicate"})
	assertErrorCode(t, rr, http.StatusNotFound, "order_not_found")

	rr = serve(t, h.Routes, http.MethodPost, "/orders/o-1:cancel", map[string]any{"reason": "duplicate"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestOrderFlagRoutes(t *testing.T) {
	var calls []string
	orders := &stubOrderService{
		flagFn: func(_ context.Context, name string, cmd services.OrderFlagCommand) (services.Order, error) {
			calls = append(calls, name+":"+cmd.OrderID)
			if name == "set-shipped" {
				return services.Order{}, services.ErrOrderProcessingNotRequired
			}
			return services.Order{ID: cmd.OrderID, InvoiceCreatedAt: &orderTestNow}, nil
		},
	}
	h := NewOrderHandlers(OrderHandlersDeps{Orders: orders})

	rr := serve(t, h.Routes, http.MethodPost, "/orders/o-1/flags/invoiced", nil)
	if rr.Code != http.StatusOK || decodeBody(t, rr)["invoiced"] != true {
		t.Fatalf("expected invoiced order, got %d %s", rr.Code, rr.Body.String())
	}
	serve(t, h.Routes, http.MethodDelete, "/orders/o-1/flags/invoiced", nil)
	serve(t, h.Routes, http.MethodDelete, "/orders/o-1/flags/shipped", nil)
	rr = serve(t, h.Routes, http.MethodPost, "/orders/o-1/flags/shipped", nil)
	assertErrorCode(t, rr, http.StatusConflict, "processing_not_required")

	want := []string{"set-invoiced:o-1", "unset-invoiced:o-1", "unset-shipped:o-1", "set-shipped:o-1"}
	if fmt.Sprint(calls) != fmt.Sprint(want) {
		t.Fatalf("unexpected flag calls %v", calls)
	}
}

func TestListOrdersForShopParsesFilters(t *testing.T) {
	var captured services.OrderListFilter
	orders := &stubOrderService{
		listFn: func(_ context.Context, filter services.OrderListFilter) (domain.Page[services.Order], error) {
			captured = filter
			return domain.Page[services.Order]{
				Items:   []services.Order{{ID: "o-6", PaymentState: domain.PaymentStatePaid}},
				Page:    2,
				PerPage: 5,
				Total:   6,
			}, nil
		},
	}
	h := NewOrderHandlers(OrderHandlersDeps{Orders: orders})

	rr := serve(t, h.Routes, http.MethodGet, "/shops/lanparty/orders?payment_state=paid&processing_state=unprocessed&page=2&per_page=5&q=lovelace", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ShopID != "lanparty" || captured.PaymentState == nil || *captured.PaymentState != domain.PaymentStatePaid {
		t.Fatalf("unexpected filter %+v", captured)
	}
	if captured.ProcessingState != domain.ProcessingStateUnprocessed || captured.SearchTerm != "lovelace" {
		t.Fatalf("unexpected filter %+v", captured)
	}
	if captured.Pagination.Page != 2 || captured.Pagination.PerPage != 5 {
		t.Fatalf("unexpected pagination %+v", captured.Pagination)
	}
	if rr.Header().Get("X-Total-Count") != "6" {
		t.Fatalf("expected total header, got %q", rr.Header().Get("X-Total-Count"))
	}
	body := decodeBody(t, rr)
	if body["pages"] != float64(2) || body["has_next"] != false {
		t.Fatalf("unexpected page payload %v", body)
	}
}

func TestListOrdersForShopRejectsBadFilters(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{Orders: &stubOrderService{}})

	rr := serve(t, h.Routes, http.MethodGet, "/shops/lanparty/orders?payment_state=refunded", nil)
	assertErrorCode(t, rr, http.StatusBadRequest, "invalid_request")

	rr = serve(t, h.Routes, http.MethodGet, "/shops/lanparty/orders?processing_state=maybe", nil)
	assertErrorCode(t, rr, http.StatusBadRequest, "invalid_request")

	rr = serve(t, h.Routes, http.MethodGet, "/shops/lanparty/orders?page=0", nil)
	assertErrorCode(t, rr, http.StatusBadRequest, "invalid_request")
}

func TestCountOrders(t *testing.T) {
	orders := &stubOrderService{
		countFn: func(context.Context, string) (map[services.PaymentState]int, error) {
			return map[services.PaymentState]int{domain.PaymentStateOpen: 3, domain.PaymentStatePaid: 7}, nil
		},
	}
	h := NewOrderHandlers(OrderHandlersDeps{Orders: orders})

	rr := serve(t, h.Routes, http.MethodGet, "/shops/lanparty/orders:counts", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	counts := body["by_payment_state"].(map[string]any)
	if counts["paid"] != float64(7) || counts["canceled_after_paid"] != float64(0) || body["open"] != float64(3) {
		t.Fatalf("unexpected counts %v", body)
	}
}

func TestOrderLogEndpoint(t *testing.T) {
	orders := &stubOrderService{logEntries: []services.OrderLogEntry{
		{ID: "l-1", OccurredAt: orderTestNow, EventType: domain.OrderLogOrderPlaced},
		{ID: "l-2", OccurredAt: orderTestNow, EventType: domain.OrderLogNoteAdded, Data: map[string]any{"text": "called"}},
	}}
	h := NewOrderHandlers(OrderHandlersDeps{Orders: orders})

	rr := serve(t, h.Routes, http.MethodGet, "/orders/o-1/log", nil)
	items := decodeBody(t, rr)["items"].([]any)
	if len(items) != 2 || items[1].(map[string]any)["event_type"] != "order-note-added" {
		t.Fatalf("unexpected log %v", items)
	}
}

func TestExportOrderServesLatin1XML(t *testing.T) {
	exports := &stubExportService{data: []byte("<?xml version=\"1.0\" encoding=\"iso-8859-1\"?><order/>")}
	h := NewOrderHandlers(OrderHandlersDeps{Orders: &stubOrderService{}, Exports: exports})

	rr := serve(t, h.Routes, http.MethodGet, "/orders/o-1/export.xml", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/xml; charset=iso-8859-1" {
		t.Fatalf("unexpected content type %q", ct)
	}

	rr = serve(t, h.Routes, http.MethodPost, "/orders/o-1/export:upload", nil)
	if rr.Code != http.StatusCreated || decodeBody(t, rr)["location"] != "gs://exports/o-1.xml" {
		t.Fatalf("unexpected upload response %d %s", rr.Code, rr.Body.String())
	}

	exports.err = services.ErrUnknownOrder
	rr = serve(t, h.Routes, http.MethodGet, "/orders/o-1/export.xml", nil)
	assertErrorCode(t, rr, http.StatusNotFound, "order_not_found")
}

type stubLinker struct {
	object string
	ttl    time.Duration
}

func (l *stubLinker) DownloadURL(_ context.Context, object string, expiresIn time.Duration) (storage.DownloadLink, error) {
	l.object, l.ttl = object, expiresIn
	return storage.DownloadLink{URL: "https://storage.test/" + object, ExpiresAt: orderTestNow.Add(expiresIn)}, nil
}

func TestUploadExportSignsDownloadLink(t *testing.T) {
	linker := &stubLinker{}
	h := NewOrderHandlers(
		OrderHandlersDeps{Orders: &stubOrderService{}, Exports: &stubExportService{}},
		WithExportLinker(linker, 15*time.Minute),
	)

	rr := serve(t, h.Routes, http.MethodPost, "/orders/o-1/export:upload", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["download_url"] != "https://storage.test/gs://exports/o-1.xml" {
		t.Fatalf("unexpected download url %v", body["download_url"])
	}
	if body["download_expires_at"] != "2024-06-01T12:15:00Z" || linker.ttl != 15*time.Minute {
		t.Fatalf("unexpected expiry %v (ttl %s)", body["download_expires_at"], linker.ttl)
	}
}

func TestOrderHandlersWithoutService(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{})

	rr := serve(t, h.Routes, http.MethodGet, "/orders/o-1", nil)
	assertErrorCode(t, rr, http.StatusServiceUnavailable, "order_service_unavailable")

	rr = serve(t, h.Routes, http.MethodPost, "/orders/o-1/emails/placed", nil)
	assertErrorCode(t, rr, http.StatusServiceUnavailable, "email_service_unavailable")
}
