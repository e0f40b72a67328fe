package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/byceps/byceps-sub001/internal/platform/requestctx"
)

func TestServiceLoggerWritesSortedFieldsAndRunsHooks(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var hooked []string
	log := ServiceLogger(zap.New(core), func(_ context.Context, event string, _ map[string]any) {
		hooked = append(hooked, event)
	})

	log(context.Background(), "order.placed", map[string]any{"orderNumber": "LP-2024-B00001", "shopId": "lanparty"})
	log(context.Background(), "order.event.publish.failed", map[string]any{"error": "broker down"})

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "order.placed", entries[0].Message)
	assert.Equal(t, "LP-2024-B00001", entries[0].ContextMap()["orderNumber"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, []string{"order.placed", "order.event.publish.failed"}, hooked)
}

func TestServiceLoggerPrefersRequestScopedLogger(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.DebugLevel)
	scopedCore, scopedLogs := observer.New(zapcore.DebugLevel)
	log := ServiceLogger(zap.New(baseCore))

	ctx := requestctx.WithLogger(context.Background(), zap.New(scopedCore).With(zap.String("request_id", "req-1")))
	log(ctx, "order.paid", nil)

	assert.Zero(t, baseLogs.Len())
	require.Equal(t, 1, scopedLogs.Len())
	assert.Equal(t, "req-1", scopedLogs.All()[0].ContextMap()["request_id"])
}

func TestMetricsCountsTransitionsAndEvents(t *testing.T) {
	metrics, err := NewMetrics()
	require.NoError(t, err)
	t.Cleanup(func() { _ = metrics.Shutdown(context.Background()) })

	ctx := context.Background()
	metrics.OrderTransitioned(ctx, "lanparty", "placed")
	metrics.OrderTransitioned(ctx, "lanparty", "placed")
	metrics.OrderTransitioned(ctx, "lanparty", "paid")
	metrics.OrderTransitioned(ctx, "lanparty", "unknown")
	metrics.ObserveEvent(ctx, "order.action.failed", map[string]any{"shopId": "lanparty"})
	metrics.ObserveEvent(ctx, "email.queued", nil)
	metrics.ObserveEvent(ctx, "order.placed", nil)

	count, err := testutil.GatherAndCount(metrics.Gatherer(),
		"shop_orders_placed_total", "shop_orders_paid_total", "shop_order_actions_failed_total", "shop_emails_enqueued_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shop_emails_enqueued_total")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.OrderTransitioned(context.Background(), "lanparty", "placed")
	metrics.ObserveEvent(context.Background(), "email.queued", nil)
	assert.NoError(t, metrics.Shutdown(context.Background()))
}

func TestParseCloudTraceContext(t *testing.T) {
	spanCtx, ok := parseCloudTraceContext("105445aa7843bc8bf206b12000100000/1;o=1")
	require.True(t, ok)
	assert.Equal(t, "105445aa7843bc8bf206b12000100000", spanCtx.TraceID().String())
	assert.Equal(t, "0000000000000001", spanCtx.SpanID().String())
	assert.True(t, spanCtx.IsSampled())
	assert.True(t, spanCtx.IsRemote())

	for _, header := range []string{"", "abc/1", "105445aa7843bc8bf206b12000100000", "105445aa7843bc8bf206b12000100000/zz-not-an-id"} {
		_, ok := parseCloudTraceContext(header)
		assert.False(t, ok, header)
	}
}

func TestTraceMiddlewareStoresTraceInfo(t *testing.T) {
	var info requestctx.TraceInfo
	handler := TraceMiddleware("lanparty-prod")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, _ = requestctx.Trace(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/1", nil)
	req.Header.Set(cloudTraceHeader, "105445aa7843bc8bf206b12000100000/1;o=1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "105445aa7843bc8bf206b12000100000", info.TraceID)
	assert.Equal(t, "lanparty-prod", info.ProjectID)
	assert.True(t, strings.HasPrefix(rec.Header().Get(cloudTraceHeader), "105445aa7843bc8bf206b12000100000/"))
}

func TestRequestLoggerMiddlewareLogsRouteParams(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := chi.NewRouter()
	router.Use(InjectLoggerMiddleware(zap.New(core)), RequestLoggerMiddleware(""))
	router.Get("/orders/{orderID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/order-1", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "order-1", fields["order_id"])
	assert.Equal(t, "/orders/{orderID}", fields["route"])
	assert.EqualValues(t, http.StatusConflict, fields["status"])
}

func TestRecoveryMiddlewareWritesJSONError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"internal_server_error"`)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestSanitizeHelpers(t *testing.T) {
	assert.Equal(t, "/", SanitizeRoute(""))
	assert.Equal(t, "GET", SanitizeMethod("G\x00ET"))
	assert.Len(t, SanitizeUserID(strings.Repeat("u", 100)), 64)
	assert.Equal(t, "shop_id", toSnake("shopID"))
}
