// Package checkout turns the cart into an order and hands it to the sync channel.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tabify/internal/client/cart"
	"tabify/internal/domain"
	"tabify/internal/logger"
)

var (
	ErrEmptyCart    = errors.New("cart is empty")
	ErrDisconnected = errors.New("not connected to the shop")
)

// AckDelay is how long the UI shows the confirmation before switching to the status view.
const AckDelay = 1500 * time.Millisecond

type Sender interface {
	Connected() bool
	SessionID() string
	SubmitOrder(ctx context.Context, o domain.Order) error
}

// Recorder persists the active order id for recovery after a restart.
type Recorder interface {
	Load() (string, error)
	Save(orderID string) error
}

type Submitter struct {
	cart     *cart.Store
	sender   Sender
	recorder Recorder
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

func New(c *cart.Store, sender Sender, recorder Recorder, log *zap.Logger) *Submitter {
	return &Submitter{
		cart:     c,
		sender:   sender,
		recorder: recorder,
		log:      logger.OrNop(log),
		now:      time.Now,
		newID:    NewOrderID,
	}
}

// NewOrderID returns a time-ordered, collision resistant order id.
func NewOrderID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "TL-" + uuid.NewString()
	}
	return "TL-" + id.String()
}

// Submit snapshots the cart into a new order and sends it. The cart is cleared only
// after the send was accepted by the channel.
func (s *Submitter) Submit(ctx context.Context, customerName string) (domain.Order, error) {
	items := s.cart.Items()
	if len(items) == 0 {
		return domain.Order{}, ErrEmptyCart
	}
	if !s.sender.Connected() {
		return domain.Order{}, ErrDisconnected
	}

	lines := make([]domain.LineItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, domain.LineItem{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	o := domain.NewOrder(s.newID(), s.sender.SessionID(), strings.TrimSpace(customerName), lines, s.now())

	prev, err := s.recorder.Load()
	if err != nil {
		s.log.Warn("load previous order id", zap.Error(err))
		prev = ""
	}
	if err := s.recorder.Save(o.ID); err != nil {
		s.log.Warn("persist order id", zap.String("order_id", o.ID), zap.Error(err))
	}

	if err := s.sender.SubmitOrder(ctx, o); err != nil {
		if rerr := s.recorder.Save(prev); rerr != nil {
			s.log.Warn("restore previous order id", zap.Error(rerr))
		}
		return domain.Order{}, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}

	s.cart.Clear()
	s.log.Info("order submitted", zap.String("order_id", o.ID), zap.Int64("total", o.Total))
	return o, nil
}
