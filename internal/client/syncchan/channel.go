// Package syncchan is the customer's persistent, self-healing link to the authority.
//
// There is no outbound queue. Sends made while disconnected fail with ErrNotConnected,
// and nothing is replayed after a reconnect; the handshake re-registers the customer
// and resumes the active order instead.
package syncchan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tabify/internal/domain"
	"tabify/internal/logger"
	"tabify/internal/wire"
)

var (
	ErrNotConnected = errors.New("sync channel not connected")
	ErrClosed       = errors.New("sync channel closed")
)

// ActiveOrder yields the order to resume after each (re)connect; "" means none.
type ActiveOrder interface {
	Load() (string, error)
}

type Options struct {
	SessionID    string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	NewBackOff   func() backoff.BackOff
}

type Channel struct {
	dialer    Dialer
	active    ActiveOrder
	log       *zap.Logger
	opts      Options
	sessionID string

	mu      sync.Mutex
	conn    Conn
	ready   chan struct{}
	subs    map[int]func(domain.Order)
	nextSub int
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool

	writeMu sync.Mutex
}

func New(dialer Dialer, active ActiveOrder, log *zap.Logger, opts Options) *Channel {
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			return b
		}
	}
	return &Channel{
		dialer:    dialer,
		active:    active,
		log:       logger.OrNop(log).With(zap.String("session_id", opts.SessionID)),
		opts:      opts,
		sessionID: opts.SessionID,
		ready:     make(chan struct{}),
		subs:      make(map[int]func(domain.Order)),
	}
}

func (c *Channel) SessionID() string { return c.sessionID }

// Open starts the connect loop in the background. Calling it again is a no-op.
func (c *Channel) Open(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil || c.closed {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	b := c.opts.NewBackOff()
	for {
		conn, err := c.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := b.NextBackOff()
			if wait == backoff.Stop {
				wait = time.Minute
			}
			c.log.Warn("sync connect failed", zap.Duration("retry_in", wait), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()
		c.log.Info("sync channel connected")

		c.serve(ctx, conn)
		c.dropConn(conn)
		if ctx.Err() != nil {
			return
		}
		c.log.Info("sync channel lost, reconnecting")
	}
}

// connect dials and runs the handshake before the conn is visible to senders,
// so registerRole is always the first frame of a session.
func (c *Channel) connect(ctx context.Context) (Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()

	conn, err := c.dialer.Dial(dctx)
	if err != nil {
		return nil, err
	}
	if err := c.handshake(dctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		conn.Close()
		return nil, ErrClosed
	}
	c.conn = conn
	close(c.ready)
	return conn, nil
}

func (c *Channel) handshake(ctx context.Context, conn Conn) error {
	env, err := wire.New(wire.TypeRegisterRole, wire.RegisterRole{Role: wire.RoleCustomer, SessionID: c.sessionID})
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, env); err != nil {
		return err
	}

	if c.active == nil {
		return nil
	}
	orderID, err := c.active.Load()
	if err != nil {
		c.log.Warn("load active order", zap.Error(err))
		return nil
	}
	if orderID == "" {
		return nil
	}
	env, err = wire.New(wire.TypeReconnectOrder, wire.ReconnectOrder{OrderID: orderID})
	if err != nil {
		return err
	}
	c.log.Debug("resuming order", zap.String("order_id", orderID))
	return conn.Write(ctx, env)
}

func (c *Channel) serve(ctx context.Context, conn Conn) {
	for {
		env, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.log.Debug("sync read", zap.Error(err))
			}
			return
		}
		c.dispatch(env)
	}
}

func (c *Channel) dispatch(env wire.Envelope) {
	switch env.Type {
	case wire.TypeOrderUpdate:
		var o domain.Order
		if err := env.Decode(&o); err != nil {
			c.log.Warn("malformed order update", zap.Error(err))
			return
		}
		c.mu.Lock()
		subs := make([]func(domain.Order), 0, len(c.subs))
		for _, fn := range c.subs {
			subs = append(subs, fn)
		}
		c.mu.Unlock()
		for _, fn := range subs {
			fn(o)
		}
	case wire.TypeError:
		var e wire.Error
		if err := env.Decode(&e); err != nil {
			c.log.Warn("malformed error frame", zap.Error(err))
			return
		}
		c.log.Warn("authority reported error", zap.String("order_id", e.OrderID), zap.String("message", e.Message))
	default:
		c.log.Debug("ignoring frame", zap.String("type", string(env.Type)))
	}
}

func (c *Channel) dropConn(conn Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.ready = make(chan struct{})
	}
	c.mu.Unlock()
	conn.Close()
}

func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// WaitConnected blocks until a session is established.
func (c *Channel) WaitConnected(ctx context.Context) error {
	c.mu.Lock()
	ready, done, closed := c.ready, c.done, c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case <-ready:
		return nil
	case <-done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers fn for every inbound order update. The returned func unsubscribes.
func (c *Channel) Subscribe(fn func(domain.Order)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// SubmitOrder sends a newly built order. It is never retried or replayed.
func (c *Channel) SubmitOrder(ctx context.Context, o domain.Order) error {
	env, err := wire.New(wire.TypeNewOrder, o)
	if err != nil {
		return err
	}
	return c.send(ctx, env)
}

func (c *Channel) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error {
	env, err := wire.New(wire.TypeUpdatePaymentStatus, wire.PaymentUpdate{OrderID: orderID, PaymentStatus: status})
	if err != nil {
		return err
	}
	return c.send(ctx, env)
}

func (c *Channel) send(ctx context.Context, env wire.Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
	defer cancel()
	if err := conn.Write(wctx, env); err != nil {
		// the read loop notices the closed conn and reconnects
		conn.Close()
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// Close stops reconnecting and tears down the current session.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel, done, conn := c.cancel, c.done, c.conn
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}
	return nil
}
