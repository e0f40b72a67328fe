package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
)

// PubSubSink publishes to a topic with the order id as ordering key, so
// consumers see an order's events in sequence.
type PubSubSink struct {
	topic *pubsub.Topic
}

// NewPubSubSink enables message ordering on topic.
func NewPubSubSink(topic *pubsub.Topic) (*PubSubSink, error) {
	if topic == nil {
		return nil, errors.New("pubsub event sink: topic is required")
	}
	topic.EnableMessageOrdering = true
	return &PubSubSink{topic: topic}, nil
}

func (s *PubSubSink) Name() string { return "pubsub" }

func (s *PubSubSink) Send(ctx context.Context, msg Message) error {
	result := s.topic.Publish(ctx, &pubsub.Message{
		Data:        msg.Data,
		Attributes:  msg.attributes(),
		OrderingKey: msg.Key,
	})
	if _, err := result.Get(ctx); err != nil {
		// a failed publish pauses the ordering key until resumed
		s.topic.ResumePublish(msg.Key)
		return err
	}
	return nil
}

func (s *PubSubSink) Close() error {
	s.topic.Stop()
	return nil
}

const natsFlushTimeout = 5 * time.Second

// NATSSink publishes to "<prefix>.<event name>".
type NATSSink struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSSink wraps an established connection. The sink owns it.
func NewNATSSink(conn *nats.Conn, prefix string) (*NATSSink, error) {
	if conn == nil {
		return nil, errors.New("nats event sink: connection is required")
	}
	return &NATSSink{conn: conn, prefix: strings.Trim(prefix, ".")}, nil
}

// DialNATS connects with reconnects enabled.
func DialNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("shop-order-events"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return conn, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) subject(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "." + name
}

func (s *NATSSink) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := nats.NewMsg(s.subject(msg.Name))
	out.Data = msg.Data
	for k, v := range msg.attributes() {
		out.Header.Set(k, v)
	}
	if err := s.conn.PublishMsg(out); err != nil {
		return err
	}
	return s.conn.FlushTimeout(natsFlushTimeout)
}

func (s *NATSSink) Close() error {
	return s.conn.Drain()
}

// KafkaSink writes to one topic keyed by order id, hash-partitioned so an
// order's events land on one partition.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink constructs a synchronous writer requiring all replicas.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" {
		return nil, errors.New("kafka event sink: brokers and topic are required")
	}
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}}, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, msg Message) error {
	return s.writer.WriteMessages(ctx, kafkaMessage(msg))
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func kafkaMessage(msg Message) kafka.Message {
	attrs := msg.attributes()
	headers := make([]kafka.Header, 0, len(attrs))
	for _, key := range []string{"event", "order_id", "occurred_at"} {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(attrs[key])})
	}
	return kafka.Message{
		Key:     []byte(msg.Key),
		Value:   msg.Data,
		Headers: headers,
		Time:    msg.OccurredAt,
	}
}
