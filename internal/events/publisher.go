// Package events emits order integration events to RabbitMQ for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"tabify/internal/domain"
	"tabify/internal/logger"
)

const (
	OrderPlacedQueue        = "order.placed"
	OrderStatusChangedQueue = "order.status_changed"
)

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type OrderPlaced struct {
	EventType    string            `json:"eventType"`
	OrderID      string            `json:"orderId"`
	CustomerRef  string            `json:"customerRef"`
	CustomerName string            `json:"customerName,omitempty"`
	Items        []domain.LineItem `json:"items"`
	Total        int64             `json:"total"`
	Timestamp    time.Time         `json:"timestamp"`
}

type OrderStatusChanged struct {
	EventType     string               `json:"eventType"`
	OrderID       string               `json:"orderId"`
	Status        domain.OrderStatus   `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"paymentStatus"`
	Timestamp     time.Time            `json:"timestamp"`
}

type Publisher struct {
	ch  Channel
	log *zap.Logger
}

// Dial connects to the broker and returns a publisher plus the connection to close on shutdown.
func Dial(url string, log *zap.Logger) (*Publisher, *amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := NewPublisher(ch, log)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return p, conn, nil
}

// NewPublisher declares the durable queues so publishing never fails on missing infra.
func NewPublisher(ch Channel, log *zap.Logger) (*Publisher, error) {
	for _, q := range []string{OrderPlacedQueue, OrderStatusChangedQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare %s: %w", q, err)
		}
	}
	return &Publisher{ch: ch, log: logger.OrNop(log)}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// Publish maps an order event onto its integration event and queue.
func (p *Publisher) Publish(ctx context.Context, ev domain.OrderEvent) error {
	queue, body, err := Encode(ev, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := p.publishJSON(ctx, queue, body); err != nil {
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	p.log.Debug("integration event published", zap.String("queue", queue), zap.String("order_id", ev.Order.ID))
	return nil
}

// Encode returns the queue and JSON body for ev.
func Encode(ev domain.OrderEvent, now time.Time) (string, []byte, error) {
	var (
		queue string
		msg   any
	)
	switch ev.Type {
	case domain.EventOrderPlaced:
		queue = OrderPlacedQueue
		msg = OrderPlaced{
			EventType:    "OrderPlaced",
			OrderID:      ev.Order.ID,
			CustomerRef:  ev.Order.CustomerRef,
			CustomerName: ev.Order.CustomerName,
			Items:        ev.Order.Items,
			Total:        ev.Order.Total,
			Timestamp:    now,
		}
	case domain.EventOrderUpdated:
		queue = OrderStatusChangedQueue
		msg = OrderStatusChanged{
			EventType:     "OrderStatusChanged",
			OrderID:       ev.Order.ID,
			Status:        ev.Order.Status,
			PaymentStatus: ev.Order.PaymentStatus,
			Timestamp:     now,
		}
	default:
		return "", nil, fmt.Errorf("unknown order event %q", ev.Type)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return "", nil, fmt.Errorf("marshal %s: %w", queue, err)
	}
	return queue, body, nil
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		"",         // default exchange
		routingKey, // queue name as routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
