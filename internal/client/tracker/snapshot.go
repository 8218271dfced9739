package tracker

import "tabify/internal/domain"

type Source string

const (
	SourceLocal      Source = "local"
	SourceFetch      Source = "fetch"
	SourcePush       Source = "push"
	SourceOptimistic Source = "optimistic"
)

// Snapshot is the client's projection of one order. Seq is the arrival order on this client.
type Snapshot struct {
	OrderID       string
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	Source        Source
	Seq           uint64
}

// Merge returns the snapshot to adopt: the later arrival wins regardless of where it came from.
func Merge(current, incoming *Snapshot) *Snapshot {
	switch {
	case incoming == nil:
		return current
	case current == nil:
		return incoming
	case incoming.Seq >= current.Seq:
		return incoming
	default:
		return current
	}
}

// CanPay reports whether a payment choice may be offered.
func (s Snapshot) CanPay() bool {
	return s.Status != domain.StatusPending && s.PaymentStatus != domain.PaymentPaid
}
