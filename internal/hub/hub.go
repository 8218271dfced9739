// Package hub is the authority side of the order sync websocket.
package hub

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tabify/internal/domain"
	"tabify/internal/logger"
	"tabify/internal/wire"
)

// OrderService is the subset of the order service the hub arbitrates through.
type OrderService interface {
	Place(ctx context.Context, o domain.Order) (*domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	UpdatePayment(ctx context.Context, id string, payment domain.PaymentStatus) (*domain.Order, error)
}

type Options struct {
	// OriginPatterns is passed to websocket.AcceptOptions; same-origin requests are always allowed.
	OriginPatterns []string
	SendBuffer     int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	return o
}

// Hub tracks live connections, shop consoles and per-order watchers.
type Hub struct {
	svc  OrderService
	log  *zap.Logger
	opts Options

	mu       sync.RWMutex
	conns    map[*conn]struct{}
	shops    map[*conn]struct{}
	watchers map[string]map[*conn]struct{}
	closed   bool
}

func New(svc OrderService, log *zap.Logger, opts Options) *Hub {
	return &Hub{
		svc:      svc,
		log:      logger.OrNop(log),
		opts:     opts.withDefaults(),
		conns:    make(map[*conn]struct{}),
		shops:    make(map[*conn]struct{}),
		watchers: make(map[string]map[*conn]struct{}),
	}
}

type conn struct {
	id   string
	ws   *websocket.Conn
	send chan wire.Envelope
	done chan struct{}
	once sync.Once

	mu       sync.Mutex
	role     wire.Role
	watching map[string]struct{}
}

func (c *conn) enqueue(env wire.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

func (c *conn) stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *conn) currentRole() wire.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// ServeHTTP upgrades the request and serves frames until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.opts.OriginPatterns})
	if err != nil {
		h.log.Warn("websocket accept", zap.Error(err))
		return
	}
	c := &conn{
		id:       uuid.NewString(),
		ws:       ws,
		send:     make(chan wire.Envelope, h.opts.SendBuffer),
		done:     make(chan struct{}),
		watching: make(map[string]struct{}),
	}
	if !h.add(c) {
		ws.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	log := h.log.With(zap.String("conn_id", c.id))
	log.Debug("connection opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.writeLoop(ctx, c, log)

	h.readLoop(ctx, c, log)
	h.remove(c)
	c.stop()
	ws.CloseNow()
	log.Debug("connection closed")
}

func (h *Hub) readLoop(ctx context.Context, c *conn, log *zap.Logger) {
	for {
		var env wire.Envelope
		if err := wsjson.Read(ctx, c.ws, &env); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				log.Debug("read frame", zap.Error(err))
			}
			return
		}
		h.handle(ctx, c, env, log)
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *conn, log *zap.Logger) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case env := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, h.opts.WriteTimeout)
			err := wsjson.Write(wctx, c.ws, env)
			cancel()
			if err != nil {
				log.Debug("write frame", zap.Error(err))
				c.ws.CloseNow()
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, h.opts.WriteTimeout)
			err := c.ws.Ping(pctx)
			cancel()
			if err != nil {
				log.Debug("heartbeat failed", zap.Error(err))
				c.ws.CloseNow()
				return
			}
		}
	}
}

func (h *Hub) handle(ctx context.Context, c *conn, env wire.Envelope, log *zap.Logger) {
	switch env.Type {
	case wire.TypeRegisterRole:
		var p wire.RegisterRole
		if err := env.Decode(&p); err != nil || (p.Role != wire.RoleCustomer && p.Role != wire.RoleShop) {
			h.sendError(c, "invalid role", "")
			return
		}
		h.setRole(c, p.Role)
		log.Info("role registered", zap.String("role", string(p.Role)), zap.String("session_id", p.SessionID))

	case wire.TypeReconnectOrder:
		var p wire.ReconnectOrder
		if err := env.Decode(&p); err != nil || p.OrderID == "" {
			h.sendError(c, "orderId required", "")
			return
		}
		h.watch(c, p.OrderID)
		o, err := h.svc.Get(ctx, p.OrderID)
		if err != nil {
			h.sendError(c, errorMessage(err), p.OrderID)
			return
		}
		h.sendOrder(c, *o)

	case wire.TypeNewOrder:
		var o domain.Order
		if err := env.Decode(&o); err != nil || o.ID == "" {
			h.sendError(c, "invalid order", "")
			return
		}
		h.watch(c, o.ID)
		if _, err := h.svc.Place(ctx, o); err != nil {
			h.unwatch(c, o.ID)
			log.Info("order rejected", zap.String("order_id", o.ID), zap.Error(err))
			h.sendError(c, errorMessage(err), o.ID)
		}

	case wire.TypeUpdatePaymentStatus:
		var p wire.PaymentUpdate
		if err := env.Decode(&p); err != nil || p.OrderID == "" {
			h.sendError(c, "invalid payment update", "")
			return
		}
		h.watch(c, p.OrderID)
		if _, err := h.svc.UpdatePayment(ctx, p.OrderID, p.PaymentStatus); err != nil {
			h.sendError(c, errorMessage(err), p.OrderID)
			// overwrite the sender's optimistic projection
			if o, gerr := h.svc.Get(ctx, p.OrderID); gerr == nil {
				h.sendOrder(c, *o)
			}
		}

	case wire.TypeUpdateOrderStatus:
		if c.currentRole() != wire.RoleShop {
			h.sendError(c, "only shop consoles may change order status", "")
			return
		}
		var p wire.StatusUpdate
		if err := env.Decode(&p); err != nil || p.OrderID == "" {
			h.sendError(c, "invalid status update", "")
			return
		}
		if _, err := h.svc.UpdateStatus(ctx, p.OrderID, p.Status); err != nil {
			h.sendError(c, errorMessage(err), p.OrderID)
		}

	default:
		h.sendError(c, "unknown message type "+string(env.Type), "")
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "order not found"
	case errors.Is(err, domain.ErrInvalidOrder), errors.Is(err, domain.ErrIllegalTransition):
		return err.Error()
	default:
		return "internal error"
	}
}

// Publish implements the order service publisher: events are delivered to local connections.
func (h *Hub) Publish(_ context.Context, ev domain.OrderEvent) error {
	h.Deliver(ev)
	return nil
}

// Deliver routes an order event to shop consoles and the order's watchers.
func (h *Hub) Deliver(ev domain.OrderEvent) {
	update, err := wire.New(wire.TypeOrderUpdate, ev.Order)
	if err != nil {
		h.log.Error("encode order update", zap.String("order_id", ev.Order.ID), zap.Error(err))
		return
	}
	shopEnv := update
	if ev.Type == domain.EventOrderPlaced {
		if shopEnv, err = wire.New(wire.TypeNewOrder, ev.Order); err != nil {
			h.log.Error("encode new order", zap.String("order_id", ev.Order.ID), zap.Error(err))
			return
		}
	}

	h.mu.RLock()
	watchers := make([]*conn, 0, len(h.watchers[ev.Order.ID]))
	for c := range h.watchers[ev.Order.ID] {
		watchers = append(watchers, c)
	}
	shops := make([]*conn, 0, len(h.shops))
	for c := range h.shops {
		if _, watching := h.watchers[ev.Order.ID][c]; !watching {
			shops = append(shops, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range watchers {
		h.deliverTo(c, update)
	}
	for _, c := range shops {
		h.deliverTo(c, shopEnv)
	}
}

func (h *Hub) deliverTo(c *conn, env wire.Envelope) {
	if c.enqueue(env) {
		return
	}
	select {
	case <-c.done:
		return
	default:
	}
	h.log.Warn("dropping slow connection", zap.String("conn_id", c.id))
	h.remove(c)
	c.stop()
	c.ws.CloseNow()
}

func (h *Hub) sendOrder(c *conn, o domain.Order) {
	env, err := wire.New(wire.TypeOrderUpdate, o)
	if err != nil {
		h.log.Error("encode order update", zap.String("order_id", o.ID), zap.Error(err))
		return
	}
	h.deliverTo(c, env)
}

func (h *Hub) sendError(c *conn, msg, orderID string) {
	env, err := wire.New(wire.TypeError, wire.Error{Message: msg, OrderID: orderID})
	if err != nil {
		return
	}
	h.deliverTo(c, env)
}

func (h *Hub) add(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
	delete(h.shops, c)
	c.mu.Lock()
	for id := range c.watching {
		h.dropWatcher(id, c)
	}
	c.watching = map[string]struct{}{}
	c.mu.Unlock()
}

func (h *Hub) setRole(c *conn, role wire.Role) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.mu.Lock()
	c.role = role
	c.mu.Unlock()
	if _, live := h.conns[c]; !live {
		return
	}
	if role == wire.RoleShop {
		h.shops[c] = struct{}{}
	} else {
		delete(h.shops, c)
	}
}

func (h *Hub) watch(c *conn, orderID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, live := h.conns[c]; !live {
		return
	}
	set, ok := h.watchers[orderID]
	if !ok {
		set = make(map[*conn]struct{})
		h.watchers[orderID] = set
	}
	set[c] = struct{}{}
	c.mu.Lock()
	c.watching[orderID] = struct{}{}
	c.mu.Unlock()
}

func (h *Hub) unwatch(c *conn, orderID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropWatcher(orderID, c)
	c.mu.Lock()
	delete(c.watching, orderID)
	c.mu.Unlock()
}

// dropWatcher requires h.mu.
func (h *Hub) dropWatcher(orderID string, c *conn) {
	set := h.watchers[orderID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.watchers, orderID)
	}
}

// Stats reports live connection counts.
func (h *Hub) Stats() (conns, shops, watchedOrders int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns), len(h.shops), len(h.watchers)
}

// Close disconnects every client and refuses new ones. http.Server.Shutdown does not
// touch hijacked connections, so call this first.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		c.stop()
		wg.Add(1)
		go func(c *conn) {
			defer wg.Done()
			c.ws.Close(websocket.StatusGoingAway, "server shutting down")
		}(c)
	}
	wg.Wait()
}
