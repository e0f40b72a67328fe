package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/byceps/byceps-sub001/internal/domain"
)

var occurredAt = time.Date(2024, 8, 1, 18, 30, 0, 0, time.UTC)

func paidEvent() domain.ShopOrderPaid {
	return domain.ShopOrderPaid{
		ShopOrderEventBase: domain.ShopOrderEventBase{
			OccurredAt:  occurredAt,
			InitiatorID: "admin-1",
			OrderID:     "order-1",
			OrderNumber: "LP-2024-B00001",
			OrdererID:   "user-1",
		},
		PaymentMethod: "bank_transfer",
	}
}

type recordingSink struct {
	name string
	err  error

	mu   sync.Mutex
	sent []Message
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *recordingSink) Close() error { return nil }

func TestBusDeliversToSubscribersAndSinks(t *testing.T) {
	first := &recordingSink{name: "first"}
	second := &recordingSink{name: "second"}
	bus := NewBus(nil, first, second)

	var seen []string
	bus.Subscribe(func(_ context.Context, event domain.ShopOrderEvent) error {
		seen = append(seen, event.EventName())
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), paidEvent()))

	assert.Equal(t, []string{domain.EventShopOrderPaid}, seen)
	for _, sink := range []*recordingSink{first, second} {
		require.Len(t, sink.sent, 1)
		msg := sink.sent[0]
		assert.Equal(t, "order-1", msg.Key)
		assert.Equal(t, domain.EventShopOrderPaid, msg.Name)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(msg.Data, &payload))
		assert.Equal(t, "LP-2024-B00001", payload["order_number"])
		assert.Equal(t, "bank_transfer", payload["payment_method"])
	}
}

func TestBusIsolatesFailures(t *testing.T) {
	broken := &recordingSink{name: "broken", err: errors.New("broker down")}
	healthy := &recordingSink{name: "healthy"}
	bus := NewBus(nil, broken, healthy)
	subscriberErr := errors.New("mail assembly failed")
	bus.Subscribe(func(context.Context, domain.ShopOrderEvent) error { return subscriberErr })

	err := bus.Publish(context.Background(), paidEvent())

	require.Error(t, err)
	assert.ErrorIs(t, err, subscriberErr)
	assert.Contains(t, err.Error(), "sink broken")
	assert.Len(t, healthy.sent, 1)
}

func TestKafkaMessageCarriesKeyAndHeaders(t *testing.T) {
	msg, err := NewMessage(paidEvent())
	require.NoError(t, err)

	km := kafkaMessage(msg)

	assert.Equal(t, []byte("order-1"), km.Key)
	assert.Equal(t, occurredAt, km.Time)
	require.Len(t, km.Headers, 3)
	assert.Equal(t, "event", km.Headers[0].Key)
	assert.Equal(t, domain.EventShopOrderPaid, string(km.Headers[0].Value))
}

func TestNATSSubject(t *testing.T) {
	sink := &NATSSink{prefix: "shop.orders"}
	assert.Equal(t, "shop.orders.shop-order-paid", sink.subject(domain.EventShopOrderPaid))
	assert.Equal(t, "shop-order-paid", (&NATSSink{}).subject(domain.EventShopOrderPaid))
}

func TestPubSubSinkPublishesOrderedMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "lanparty-test",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "shop-order-events")
	require.NoError(t, err)
	sink, err := NewPubSubSink(topic)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	require.NoError(t, NewBus(nil, sink).Publish(ctx, paidEvent()))

	messages := srv.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "order-1", messages[0].OrderingKey)
	assert.Equal(t, domain.EventShopOrderPaid, messages[0].Attributes["event"])
}
