package domain

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	StatusPending  OrderStatus = "pending"
	StatusAccepted OrderStatus = "accepted"
	StatusPaid     OrderStatus = "paid"
)

func (s OrderStatus) Valid() bool {
	return s.rank() >= 0
}

func (s OrderStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusAccepted:
		return 1
	case StatusPaid:
		return 2
	default:
		return -1
	}
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

func (p PaymentStatus) Valid() bool {
	return p == PaymentUnpaid || p == PaymentPaid
}

// LineItem is the submitted copy of a cart line. It never points back at the cart.
type LineItem struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"price"`
}

// Order is the canonical record owned by the authority. Clients only hold projections of it.
type Order struct {
	ID            string        `json:"id"`
	CustomerRef   string        `json:"customerRef"`
	CustomerName  string        `json:"customerName,omitempty"`
	Items         []LineItem    `json:"items"`
	Total         int64         `json:"total"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
}

// NewOrder snapshots items into a fresh pending, unpaid order.
func NewOrder(id, customerRef, customerName string, items []LineItem, now time.Time) Order {
	lines := make([]LineItem, len(items))
	copy(lines, items)
	return Order{
		ID:            id,
		CustomerRef:   customerRef,
		CustomerName:  customerName,
		Items:         lines,
		Total:         SumLines(lines),
		CreatedAt:     now.UTC(),
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
	}
}

// SumLines returns Σ quantity×unit price.
func SumLines(items []LineItem) int64 {
	var total int64
	for _, it := range items {
		total += int64(it.Quantity) * it.UnitPrice
	}
	return total
}

// Validate checks the shape of a submitted order.
func (o Order) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("%w: id required", ErrInvalidOrder)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order has no items", ErrInvalidOrder)
	}
	for i, it := range o.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrInvalidOrder, i)
		}
		if it.UnitPrice < 0 {
			return fmt.Errorf("%w: item %d price must not be negative", ErrInvalidOrder, i)
		}
	}
	if o.Total != SumLines(o.Items) {
		return fmt.Errorf("%w: total %d does not match items %d", ErrInvalidOrder, o.Total, SumLines(o.Items))
	}
	return nil
}

// Clone returns a deep copy.
func (o Order) Clone() Order {
	out := o
	out.Items = make([]LineItem, len(o.Items))
	copy(out.Items, o.Items)
	return out
}

// SetStatus advances the status axis. Moving backwards is illegal; paid implies payment paid.
func (o *Order) SetStatus(next OrderStatus) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, next)
	}
	if next.rank() < o.Status.rank() {
		return fmt.Errorf("%w: status %s -> %s", ErrIllegalTransition, o.Status, next)
	}
	o.Status = next
	if next == StatusPaid {
		o.PaymentStatus = PaymentPaid
	}
	return nil
}

// SetPayment moves the payment axis. paid is absorbing, and payment requires an accepted order.
func (o *Order) SetPayment(next PaymentStatus) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown payment status %q", ErrIllegalTransition, next)
	}
	if next == o.PaymentStatus {
		return nil
	}
	if o.PaymentStatus == PaymentPaid {
		return fmt.Errorf("%w: payment already paid", ErrIllegalTransition)
	}
	if o.Status == StatusPending {
		return fmt.Errorf("%w: order not accepted yet", ErrIllegalTransition)
	}
	o.PaymentStatus = next
	o.Status = StatusPaid
	return nil
}

type OrderEventType string

const (
	EventOrderPlaced  OrderEventType = "placed"
	EventOrderUpdated OrderEventType = "updated"
)

// OrderEvent announces a change to the canonical record.
type OrderEvent struct {
	Type  OrderEventType `json:"type"`
	Order Order          `json:"order"`
}
