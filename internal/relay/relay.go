// Package relay fans order events out to every authority replica through Redis pub/sub.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tabify/internal/domain"
	"tabify/internal/logger"
)

type Relay struct {
	client  redis.UniversalClient
	channel string
	log     *zap.Logger
}

func New(client redis.UniversalClient, channel string, log *zap.Logger) *Relay {
	return &Relay{client: client, channel: channel, log: logger.OrNop(log)}
}

// Publish sends ev to every subscribed replica, including this one.
func (r *Relay) Publish(ctx context.Context, ev domain.OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *Relay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Subscribe joins the channel and waits for Redis to confirm the subscription.
func (r *Relay) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := r.client.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}
	return &Subscription{ps: ps, log: r.log}, nil
}

type Subscription struct {
	ps  *redis.PubSub
	log *zap.Logger
}

// Run hands every decoded event to deliver until ctx ends or the subscription is closed.
func (s *Subscription) Run(ctx context.Context, deliver func(domain.OrderEvent)) error {
	ch := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev domain.OrderEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.log.Warn("discarding malformed relay message", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			deliver(ev)
		}
	}
}

func (s *Subscription) Close() error {
	return s.ps.Close()
}
