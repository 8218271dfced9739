package syncchan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabify/internal/domain"
	"tabify/internal/wire"
)

var errConnClosed = errors.New("conn closed")

type fakeConn struct {
	in         chan wire.Envelope
	out        chan wire.Envelope
	closed     chan struct{}
	once       sync.Once
	failWrites atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan wire.Envelope, 16),
		out:    make(chan wire.Envelope, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) Read(ctx context.Context) (wire.Envelope, error) {
	select {
	case env := <-f.in:
		return env, nil
	case <-f.closed:
		return wire.Envelope{}, errConnClosed
	case <-ctx.Done():
		return wire.Envelope{}, ctx.Err()
	}
}

func (f *fakeConn) Write(_ context.Context, env wire.Envelope) error {
	select {
	case <-f.closed:
		return errConnClosed
	default:
	}
	if f.failWrites.Load() {
		return errors.New("broken pipe")
	}
	f.out <- env
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// next returns the next frame the channel wrote, failing after a second.
func (f *fakeConn) next(t *testing.T) wire.Envelope {
	t.Helper()
	select {
	case env := <-f.out:
		return env
	case <-time.After(time.Second):
		t.Fatal("no frame written")
		return wire.Envelope{}
	}
}

func (f *fakeConn) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case env := <-f.out:
		t.Fatalf("unexpected frame %s", env.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func (f *fakeConn) push(t *testing.T, o domain.Order) {
	t.Helper()
	env, err := wire.New(wire.TypeOrderUpdate, o)
	require.NoError(t, err)
	f.in <- env
}

type fakeDialer struct {
	conns chan *fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	select {
	case c := <-d.conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type staticOrder string

func (s staticOrder) Load() (string, error) { return string(s), nil }

func newTestChannel(t *testing.T, active ActiveOrder) (*Channel, *fakeDialer) {
	t.Helper()
	d := &fakeDialer{conns: make(chan *fakeConn, 4)}
	ch := New(d, active, nil, Options{
		SessionID:   "sess-1",
		DialTimeout: 200 * time.Millisecond,
		NewBackOff:  func() backoff.BackOff { return backoff.NewConstantBackOff(10 * time.Millisecond) },
	})
	t.Cleanup(func() { ch.Close() })
	return ch, d
}

func waitConnected(t *testing.T, ch *Channel) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ch.WaitConnected(ctx))
}

func sampleOrder(id string) domain.Order {
	return domain.NewOrder(id, "sess-1", "", []domain.LineItem{{Name: "Tea", Quantity: 1, UnitPrice: 10}}, time.Now())
}

func TestHandshakeRegistersCustomer(t *testing.T) {
	ch, d := newTestChannel(t, staticOrder(""))
	conn := newFakeConn()
	d.conns <- conn
	ch.Open(context.Background())
	waitConnected(t, ch)

	env := conn.next(t)
	require.Equal(t, wire.TypeRegisterRole, env.Type)
	var reg wire.RegisterRole
	require.NoError(t, env.Decode(&reg))
	assert.Equal(t, wire.RoleCustomer, reg.Role)
	assert.Equal(t, "sess-1", reg.SessionID)
	conn.assertQuiet(t)
	assert.True(t, ch.Connected())
}

func TestHandshakeResumesStoredOrder(t *testing.T) {
	ch, d := newTestChannel(t, staticOrder("TL-9"))
	conn := newFakeConn()
	d.conns <- conn
	ch.Open(context.Background())
	waitConnected(t, ch)

	assert.Equal(t, wire.TypeRegisterRole, conn.next(t).Type)
	env := conn.next(t)
	require.Equal(t, wire.TypeReconnectOrder, env.Type)
	var p wire.ReconnectOrder
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, "TL-9", p.OrderID)
}

func TestReconnectRepeatsHandshakeWithoutResending(t *testing.T) {
	ch, d := newTestChannel(t, staticOrder("TL-1"))
	first := newFakeConn()
	d.conns <- first
	ch.Open(context.Background())
	waitConnected(t, ch)
	first.next(t)
	first.next(t)

	require.NoError(t, ch.SubmitOrder(context.Background(), sampleOrder("TL-1")))
	assert.Equal(t, wire.TypeNewOrder, first.next(t).Type)

	first.Close()
	assert.Eventually(t, func() bool { return !ch.Connected() }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, ch.SubmitOrder(context.Background(), sampleOrder("TL-2")), ErrNotConnected)

	second := newFakeConn()
	d.conns <- second
	waitConnected(t, ch)

	assert.Equal(t, wire.TypeRegisterRole, second.next(t).Type)
	assert.Equal(t, wire.TypeReconnectOrder, second.next(t).Type)
	second.assertQuiet(t)
}

func TestSendWhileDisconnected(t *testing.T) {
	ch, _ := newTestChannel(t, nil)
	assert.False(t, ch.Connected())
	assert.ErrorIs(t, ch.SubmitOrder(context.Background(), sampleOrder("TL-1")), ErrNotConnected)
	assert.ErrorIs(t, ch.UpdatePaymentStatus(context.Background(), "TL-1", domain.PaymentPaid), ErrNotConnected)
}

func TestWriteFailureReportsNotConnected(t *testing.T) {
	ch, d := newTestChannel(t, nil)
	conn := newFakeConn()
	d.conns <- conn
	ch.Open(context.Background())
	waitConnected(t, ch)
	conn.next(t)

	conn.failWrites.Store(true)
	err := ch.UpdatePaymentStatus(context.Background(), "TL-1", domain.PaymentPaid)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Eventually(t, func() bool { return !ch.Connected() }, time.Second, 5*time.Millisecond)
}

func TestPaymentFrame(t *testing.T) {
	ch, d := newTestChannel(t, nil)
	conn := newFakeConn()
	d.conns <- conn
	ch.Open(context.Background())
	waitConnected(t, ch)
	conn.next(t)

	require.NoError(t, ch.UpdatePaymentStatus(context.Background(), "TL-1", domain.PaymentPaid))
	env := conn.next(t)
	require.Equal(t, wire.TypeUpdatePaymentStatus, env.Type)
	var p wire.PaymentUpdate
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, wire.PaymentUpdate{OrderID: "TL-1", PaymentStatus: domain.PaymentPaid}, p)
}

func TestOrderUpdatesFanOut(t *testing.T) {
	ch, d := newTestChannel(t, nil)
	conn := newFakeConn()
	d.conns <- conn
	ch.Open(context.Background())
	waitConnected(t, ch)

	a := make(chan domain.Order, 4)
	b := make(chan domain.Order, 4)
	ch.Subscribe(func(o domain.Order) { a <- o })
	unsubscribe := ch.Subscribe(func(o domain.Order) { b <- o })

	conn.push(t, sampleOrder("TL-1"))
	assert.Equal(t, "TL-1", (<-a).ID)
	assert.Equal(t, "TL-1", (<-b).ID)

	unsubscribe()
	unsubscribe()
	conn.push(t, sampleOrder("TL-2"))
	assert.Equal(t, "TL-2", (<-a).ID)
	select {
	case o := <-b:
		t.Fatalf("unsubscribed callback received %s", o.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestErrorFramesAreNotDispatched(t *testing.T) {
	ch, d := newTestChannel(t, nil)
	conn := newFakeConn()
	d.conns <- conn
	ch.Open(context.Background())
	waitConnected(t, ch)

	got := make(chan domain.Order, 1)
	ch.Subscribe(func(o domain.Order) { got <- o })

	env, err := wire.New(wire.TypeError, wire.Error{Message: "order not found", OrderID: "TL-1"})
	require.NoError(t, err)
	conn.in <- env
	conn.push(t, sampleOrder("TL-3"))

	assert.Equal(t, "TL-3", (<-got).ID)
}

func TestCloseStopsReconnecting(t *testing.T) {
	ch, d := newTestChannel(t, nil)
	conn := newFakeConn()
	d.conns <- conn
	ch.Open(context.Background())
	waitConnected(t, ch)

	require.NoError(t, ch.Close())
	assert.False(t, ch.Connected())
	assert.ErrorIs(t, ch.WaitConnected(context.Background()), ErrClosed)
	assert.ErrorIs(t, ch.SubmitOrder(context.Background(), sampleOrder("TL-1")), ErrNotConnected)
}
