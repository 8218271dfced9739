package order

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"tabify/internal/domain"
	"tabify/internal/logger"
	orderrepo "tabify/internal/repository/order"
)

// Publisher receives every accepted change to an order.
type Publisher interface {
	Publish(ctx context.Context, ev domain.OrderEvent) error
}

// Service is the authority: it owns canonical orders and arbitrates every transition.
type Service struct {
	repo       orderrepo.Repository
	publishers []Publisher
	log        *zap.Logger
	now        func() time.Time

	// locks serializes write+publish per order id so events leave in commit order.
	mu    sync.Mutex
	locks map[string]*orderLock
}

type orderLock struct {
	mu   sync.Mutex
	refs int
}

func New(repo orderrepo.Repository, log *zap.Logger, publishers ...Publisher) *Service {
	return &Service{
		repo:       repo,
		publishers: publishers,
		log:        logger.OrNop(log),
		now:        time.Now,
		locks:      make(map[string]*orderLock),
	}
}

func (s *Service) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &orderLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// Place stores a newly submitted order. Re-submitting a known id returns the stored
// record unchanged so a client retry cannot create a second order.
func (s *Service) Place(ctx context.Context, in domain.Order) (*domain.Order, error) {
	o := in.Clone()
	o.Status = domain.StatusPending
	o.PaymentStatus = domain.PaymentUnpaid
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now().UTC()
	}
	o.UpdatedAt = o.CreatedAt
	if err := o.Validate(); err != nil {
		return nil, err
	}

	unlock := s.lock(o.ID)
	defer unlock()
	if err := s.repo.Create(ctx, o); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			s.log.Info("order resubmitted", zap.String("order_id", o.ID))
			return s.repo.Get(ctx, o.ID)
		}
		return nil, err
	}
	s.log.Info("order placed", zap.String("order_id", o.ID), zap.Int64("total", o.Total), zap.Int("items", len(o.Items)))
	s.publish(ctx, domain.OrderEvent{Type: domain.EventOrderPlaced, Order: o})
	return &o, nil
}

// AddPublisher registers another event sink. Call it during wiring, before serving traffic.
func (s *Service) AddPublisher(p Publisher) {
	s.publishers = append(s.publishers, p)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]domain.Order, error) {
	return s.repo.List(ctx)
}

// UpdateStatus is the shop console's accept / mark-paid action.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	return s.transition(ctx, id, func(o *domain.Order) error { return o.SetStatus(status) })
}

// UpdatePayment applies a customer's payment intent if the transition is legal.
func (s *Service) UpdatePayment(ctx context.Context, id string, payment domain.PaymentStatus) (*domain.Order, error) {
	return s.transition(ctx, id, func(o *domain.Order) error { return o.SetPayment(payment) })
}

func (s *Service) transition(ctx context.Context, id string, apply func(o *domain.Order) error) (*domain.Order, error) {
	unlock := s.lock(id)
	defer unlock()
	changed := false
	o, err := s.repo.Transition(ctx, id, func(o *domain.Order) error {
		status, payment := o.Status, o.PaymentStatus
		if err := apply(o); err != nil {
			return err
		}
		changed = status != o.Status || payment != o.PaymentStatus
		return nil
	})
	if err != nil {
		s.log.Info("order transition refused", zap.String("order_id", id), zap.Error(err))
		return nil, err
	}
	if changed {
		s.log.Info("order updated", zap.String("order_id", id),
			zap.String("status", string(o.Status)), zap.String("payment_status", string(o.PaymentStatus)))
		s.publish(ctx, domain.OrderEvent{Type: domain.EventOrderUpdated, Order: *o})
	}
	return o, nil
}

func (s *Service) publish(ctx context.Context, ev domain.OrderEvent) {
	for _, p := range s.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			s.log.Warn("publish order event", zap.String("order_id", ev.Order.ID), zap.String("event", string(ev.Type)), zap.Error(err))
		}
	}
}
