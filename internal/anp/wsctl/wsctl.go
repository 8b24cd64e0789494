// Package wsctl implements ANP's WebSocket JSON control channel (§4.6.3):
// session negotiation, health telemetry, and volume and stream commands
// exchanged as snake_case JSON messages alongside the RTP audio stream.
package wsctl

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/aaeq-audio/aaeq/internal/errors"
	"github.com/aaeq-audio/aaeq/internal/logging"
)

// WebSocket close codes reused from the standard registry.
const (
	CloseNormalClosure    = websocket.CloseNormalClosure
	CloseGoingAway        = websocket.CloseGoingAway
	CloseNoStatusReceived = websocket.CloseNoStatusReceived
	CloseProtocolError    = websocket.CloseProtocolError
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:   4096,
	WriteBufferSize:  16384,
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin:      func(r *http.Request) bool { return true }, // ANP control is a local/LAN protocol, not browser-facing
}

// Envelope is the minimal shape every ANP control message shares. Serve
// decodes only Type and passes the whole message to the Handler, which
// decodes it into the concrete type; Serve does not fill Raw.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// Conn wraps a single ANP control-channel WebSocket connection with
// write-mutex-guarded sends, ping/pong keepalive, and a typed message
// dispatch loop. One Conn exists per negotiated session.
type Conn struct {
	ws       *websocket.Conn
	writeMu  sync.Mutex
	closed   bool
	closedMu sync.Mutex
}

// Handler receives decoded message bodies keyed by their "type" field; the
// return value, if non-nil, is sent back to the peer.
type Handler func(msgType string, body json.RawMessage) (any, error)

// Upgrade upgrades an incoming HTTP request to an ANP control WebSocket.
func Upgrade(c echo.Context) (*Conn, error) {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil, errors.New(err).
			Component("anp.wsctl").
			Category(errors.CategoryNetwork).
			Build()
	}
	return &Conn{ws: ws}, nil
}

// Send marshals v and writes it as a single text frame.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.New(err).Component("anp.wsctl").Category(errors.CategoryProtocol).Build()
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return errors.New(err).Component("anp.wsctl").Category(errors.CategoryNetwork).Build()
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Serve runs the read loop, dispatching each decoded message to handler,
// and sending periodic pings to detect a dead peer. It blocks until the
// connection closes or ctx is cancelled.
func (c *Conn) Serve(ctx context.Context, handler Handler) error {
	defer c.Close()

	logger := logging.ForService("anp-wsctl")

	c.ws.SetReadLimit(64 * 1024)
	_ = c.ws.SetReadDeadline(time.Time{})
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Time{})
	})

	msgCh := make(chan []byte)
	errCh := make(chan error, 1)
	go c.readLoop(msgCh, errCh)

	pingTicker := time.NewTicker(15 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errCh:
			return err

		case raw := <-msgCh:
			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				if logger != nil {
					logger.Warn("anp control message decode failed", "error", err)
				}
				continue
			}
			reply, err := handler(env.Type, raw)
			if err != nil {
				if logger != nil {
					logger.Warn("anp control handler error", "type", env.Type, "error", err)
				}
				continue
			}
			if reply != nil {
				if err := c.Send(reply); err != nil {
					return err
				}
			}

		case <-pingTicker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				return errors.New(err).Component("anp.wsctl").Category(errors.CategoryNetwork).Build()
			}
		}
	}
}

func (c *Conn) readLoop(msgCh chan<- []byte, errCh chan<- error) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, CloseNormalClosure, CloseGoingAway, CloseNoStatusReceived) {
				errCh <- nil
				return
			}
			if strings.Contains(err.Error(), "use of closed network connection") {
				errCh <- nil
				return
			}
			errCh <- errors.New(err).Component("anp.wsctl").Category(errors.CategoryNetwork).Build()
			return
		}
		if msgType == websocket.TextMessage {
			msgCh <- data
		}
	}
}

// Close sends a normal-closure control frame and closes the underlying
// connection. Safe to call more than once.
func (c *Conn) Close() error {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	closeMsg := websocket.FormatCloseMessage(CloseNormalClosure, "session closed")
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
	c.writeMu.Unlock()

	return c.ws.Close()
}
