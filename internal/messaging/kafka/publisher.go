// Package kafka publishes order-placed events to Kafka.
package kafka

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/storefront/internal/domain/cart"
)

// ErrDisabled is returned by NewPublisher when no brokers are configured.
var ErrDisabled = errors.New("kafka disabled")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ cart.Publisher = (*Publisher)(nil)

// Publisher writes one message per placed order, keyed by order id so that
// events of an order stay on one partition.
type Publisher struct {
	w messageWriter
}

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewPublisher creates a Publisher writing to topic.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, ErrDisabled
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	return &Publisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}, nil
}

// PublishOrderPlaced writes ev as a JSON message.
func (p *Publisher) PublishOrderPlaced(ctx context.Context, ev cart.OrderPlaced) error {
	msg := kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: encodeOrderPlaced(ev),
		Time:  ev.PlacedAt,
	}
	if msg.Time.IsZero() {
		msg.Time = time.Now().UTC()
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish order %s", ev.OrderID)
	}
	return nil
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.w.Close()
}

func encodeOrderPlaced(ev cart.OrderPlaced) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("type")
	e.Str("order.placed")
	e.FieldStart("orderId")
	e.Str(ev.OrderID)
	e.FieldStart("shopId")
	e.Str(ev.ShopID)
	e.FieldStart("shopName")
	e.Str(ev.ShopName)
	e.FieldStart("userEmail")
	e.Str(ev.UserEmail)
	e.FieldStart("total")
	e.Float64(ev.Total.Round(2).InexactFloat64())
	e.FieldStart("items")
	e.Int(ev.Items)
	e.FieldStart("placedAt")
	e.Str(ev.PlacedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
	return e.Bytes()
}
