package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/byceps/byceps-sub001/shop"

// Metrics owns the meter provider backing /metrics and the order counters.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	registry *promclient.Registry

	placed         metric.Int64Counter
	paid           metric.Int64Counter
	canceled       metric.Int64Counter
	failed         metric.Int64Counter
	actionsFailed  metric.Int64Counter
	emailsEnqueued metric.Int64Counter
}

// NewMetrics sets up an OpenTelemetry meter provider exporting to a dedicated
// Prometheus registry.
func NewMetrics() (*Metrics, error) {
	registry := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("metrics: prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)

	m := &Metrics{provider: provider, registry: registry}
	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.placed, "shop_orders_placed", "Orders placed"},
		{&m.paid, "shop_orders_paid", "Orders marked as paid"},
		{&m.canceled, "shop_orders_canceled", "Orders canceled"},
		{&m.failed, "shop_orders_failed", "Order placements that failed on integrity errors"},
		{&m.actionsFailed, "shop_order_actions_failed", "Order actions that failed after a state transition"},
		{&m.emailsEnqueued, "shop_emails_enqueued", "Order emails handed to the job queue"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("metrics: counter %s: %w", c.name, err)
		}
		*c.target = counter
	}
	return m, nil
}

// OrderTransitioned counts an order lifecycle transition.
func (m *Metrics) OrderTransitioned(ctx context.Context, shopID string, transition string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("shop_id", shopID))
	switch transition {
	case "placed":
		m.placed.Add(ctx, 1, attrs)
	case "paid":
		m.paid.Add(ctx, 1, attrs)
	case "canceled":
		m.canceled.Add(ctx, 1, attrs)
	case "failed":
		m.failed.Add(ctx, 1, attrs)
	}
}

// ObserveEvent is an EventHook counting action failures and queued emails.
func (m *Metrics) ObserveEvent(ctx context.Context, event string, fields map[string]any) {
	if m == nil {
		return
	}
	switch event {
	case "order.action.failed":
		shopID, _ := fields["shopId"].(string)
		m.actionsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("shop_id", shopID)))
	case "email.queued":
		m.emailsEnqueued.Add(ctx, 1)
	}
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() promclient.Gatherer {
	return m.registry
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	if err := m.provider.Shutdown(ctx); err != nil && !errors.Is(err, sdkmetric.ErrReaderShutdown) {
		return err
	}
	return nil
}
