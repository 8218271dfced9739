// Package tracker keeps the customer's live view of a submitted order.
package tracker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"tabify/internal/domain"
	"tabify/internal/logger"
)

var ErrPaymentUnavailable = errors.New("payment is not available for this order")

type Fetcher interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

type Channel interface {
	Subscribe(fn func(domain.Order)) (unsubscribe func())
	UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error
}

// Tracker merges the initial snapshot fetch and pushed updates into one projection.
// Both sources are applied as they arrive; the authority's next push overwrites any
// optimistic local change.
type Tracker struct {
	orderID string
	fetcher Fetcher
	channel Channel
	log     *zap.Logger

	mu          sync.Mutex
	current     *Snapshot
	seq         uint64
	mounted     bool
	generation  uint64
	unsubscribe func()
	cancelFetch context.CancelFunc
	observers   []func(Snapshot)

	done     chan struct{}
	doneOnce sync.Once
}

func New(orderID string, fetcher Fetcher, channel Channel, log *zap.Logger) *Tracker {
	return &Tracker{
		orderID: orderID,
		fetcher: fetcher,
		channel: channel,
		log:     logger.OrNop(log).With(zap.String("order_id", orderID)),
		current: &Snapshot{
			OrderID:       orderID,
			Status:        domain.StatusPending,
			PaymentStatus: domain.PaymentUnpaid,
			Source:        SourceLocal,
		},
		done: make(chan struct{}),
	}
}

// Mount subscribes to pushed updates and fetches the current order in the background.
func (t *Tracker) Mount(ctx context.Context) {
	t.mu.Lock()
	if t.mounted {
		t.mu.Unlock()
		return
	}
	t.mounted = true
	t.generation++
	gen := t.generation
	fctx, cancel := context.WithCancel(ctx)
	t.cancelFetch = cancel
	t.mu.Unlock()

	unsubscribe := t.channel.Subscribe(func(o domain.Order) { t.apply(gen, o, SourcePush) })
	t.mu.Lock()
	if t.generation != gen {
		// unmounted while subscribing
		t.mu.Unlock()
		unsubscribe()
		return
	}
	t.unsubscribe = unsubscribe
	t.mu.Unlock()

	go func() {
		o, err := t.fetcher.GetOrder(fctx, t.orderID)
		if err != nil {
			if fctx.Err() == nil {
				t.log.Warn("fetch order snapshot", zap.Error(err))
			}
			return
		}
		t.apply(gen, *o, SourceFetch)
	}()
}

// Unmount detaches from the channel and cancels the in-flight fetch. Anything that
// arrives afterwards is dropped.
func (t *Tracker) Unmount() {
	t.mu.Lock()
	if !t.mounted {
		t.mu.Unlock()
		return
	}
	t.mounted = false
	t.generation++
	unsubscribe, cancel := t.unsubscribe, t.cancelFetch
	t.unsubscribe, t.cancelFetch = nil, nil
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
}

func (t *Tracker) apply(gen uint64, o domain.Order, src Source) {
	t.mu.Lock()
	if !t.mounted || gen != t.generation {
		t.mu.Unlock()
		return
	}
	if o.ID != t.orderID {
		t.mu.Unlock()
		t.log.Debug("ignoring update for another order", zap.String("other_order_id", o.ID))
		return
	}
	t.seq++
	t.current = Merge(t.current, &Snapshot{
		OrderID:       o.ID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Source:        src,
		Seq:           t.seq,
	})
	snap, observers := t.snapshotLocked()
	t.mu.Unlock()
	notify(observers, snap)
}

// PayNow marks the order paid locally and asks the authority to record it.
// If the request cannot be sent the local change is rolled back.
func (t *Tracker) PayNow(ctx context.Context) error {
	t.mu.Lock()
	if !t.current.CanPay() {
		t.mu.Unlock()
		return ErrPaymentUnavailable
	}
	prev := *t.current
	t.seq++
	optimistic := prev
	optimistic.PaymentStatus = domain.PaymentPaid
	optimistic.Source = SourceOptimistic
	optimistic.Seq = t.seq
	t.current = &optimistic
	snap, observers := t.snapshotLocked()
	t.mu.Unlock()
	notify(observers, snap)

	if err := t.channel.UpdatePaymentStatus(ctx, t.orderID, domain.PaymentPaid); err != nil {
		t.mu.Lock()
		rolledBack := false
		if t.current.Seq == optimistic.Seq {
			t.seq++
			restored := prev
			restored.Source = SourceLocal
			restored.Seq = t.seq
			t.current = &restored
			rolledBack = true
		}
		snap, observers = t.snapshotLocked()
		t.mu.Unlock()
		if rolledBack {
			notify(observers, snap)
		}
		t.log.Warn("payment not sent", zap.Error(err))
		return err
	}
	return nil
}

// PayLater records the pay-at-counter choice and ends tracking.
func (t *Tracker) PayLater(ctx context.Context) error {
	t.mu.Lock()
	if !t.current.CanPay() {
		t.mu.Unlock()
		return ErrPaymentUnavailable
	}
	t.seq++
	next := *t.current
	next.PaymentStatus = domain.PaymentUnpaid
	next.Source = SourceOptimistic
	next.Seq = t.seq
	t.current = &next
	snap, observers := t.snapshotLocked()
	t.mu.Unlock()
	notify(observers, snap)

	if err := t.channel.UpdatePaymentStatus(ctx, t.orderID, domain.PaymentUnpaid); err != nil {
		t.log.Info("pay later not delivered", zap.Error(err))
	}
	t.Unmount()
	t.doneOnce.Do(func() { close(t.done) })
	return nil
}

func (t *Tracker) Current() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.current
}

// OnChange registers fn for every adopted snapshot.
func (t *Tracker) OnChange(fn func(Snapshot)) {
	t.mu.Lock()
	t.observers = append(t.observers, fn)
	t.mu.Unlock()
}

// Done is closed once the customer chose to pay later.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

func (t *Tracker) OrderID() string { return t.orderID }

func (t *Tracker) snapshotLocked() (Snapshot, []func(Snapshot)) {
	observers := make([]func(Snapshot), len(t.observers))
	copy(observers, t.observers)
	return *t.current, observers
}

func notify(observers []func(Snapshot), s Snapshot) {
	for _, fn := range observers {
		fn(s)
	}
}
