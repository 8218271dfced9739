package relay

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabify/internal/domain"
)

func setupRelay(t *testing.T) (*Relay, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, "tabify:test", nil), client
}

func runSubscription(t *testing.T, r *Relay) <-chan domain.OrderEvent {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := r.Subscribe(ctx)
	require.NoError(t, err)

	got := make(chan domain.OrderEvent, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sub.Run(ctx, func(ev domain.OrderEvent) { got <- ev })
	}()
	t.Cleanup(func() {
		cancel()
		sub.Close()
		<-done
	})
	return got
}

func TestPublishReachesSubscriber(t *testing.T) {
	r, _ := setupRelay(t)
	got := runSubscription(t, r)

	o := domain.NewOrder("TL-1", "s1", "", []domain.LineItem{{Name: "Tea", Quantity: 1, UnitPrice: 10}}, time.Now())
	require.NoError(t, r.Publish(context.Background(), domain.OrderEvent{Type: domain.EventOrderPlaced, Order: o}))

	select {
	case ev := <-got:
		assert.Equal(t, domain.EventOrderPlaced, ev.Type)
		assert.Equal(t, "TL-1", ev.Order.ID)
		assert.Equal(t, int64(10), ev.Order.Total)
	case <-time.After(2 * time.Second):
		t.Fatal("event not relayed")
	}
}

func TestMalformedMessagesAreSkipped(t *testing.T) {
	r, client := setupRelay(t)
	got := runSubscription(t, r)

	require.NoError(t, client.Publish(context.Background(), "tabify:test", "not json").Err())
	o := domain.NewOrder("TL-2", "s1", "", []domain.LineItem{{Name: "Chips", Quantity: 2, UnitPrice: 15}}, time.Now())
	require.NoError(t, r.Publish(context.Background(), domain.OrderEvent{Type: domain.EventOrderUpdated, Order: o}))

	select {
	case ev := <-got:
		assert.Equal(t, "TL-2", ev.Order.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not relayed")
	}
}

func TestPing(t *testing.T) {
	r, _ := setupRelay(t)
	assert.NoError(t, r.Ping(context.Background()))
}
