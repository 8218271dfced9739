package syncchan

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"tabify/internal/wire"
)

// Conn is one established transport session.
type Conn interface {
	Read(ctx context.Context) (wire.Envelope, error)
	Write(ctx context.Context, env wire.Envelope) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// WebsocketDialer connects to the authority's /ws endpoint.
type WebsocketDialer struct {
	URL        string
	HTTPClient *http.Client
}

func (d WebsocketDialer) Dial(ctx context.Context) (Conn, error) {
	c, _, err := websocket.Dial(ctx, d.URL, &websocket.DialOptions{HTTPClient: d.HTTPClient})
	if err != nil {
		return nil, err
	}
	return wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w wsConn) Read(ctx context.Context) (wire.Envelope, error) {
	var env wire.Envelope
	err := wsjson.Read(ctx, w.c, &env)
	return env, err
}

func (w wsConn) Write(ctx context.Context, env wire.Envelope) error {
	return wsjson.Write(ctx, w.c, env)
}

func (w wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
