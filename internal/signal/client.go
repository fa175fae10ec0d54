package signal

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// TransportError reports a signaling socket failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("signaling %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Handler receives inbound envelopes in arrival order.
type Handler func(*Envelope)

// Client manages the websocket connection to the relay. Send is
// fire-and-forget: once the socket is gone, outbound envelopes are
// silently dropped (negotiation retries are not implemented, so lost
// signaling is treated as a failed negotiation, not an error).
type Client struct {
	serverURL string
	userID    string

	conn     *websocket.Conn
	incoming chan *Envelope
	outgoing chan *Envelope
	done     chan struct{}

	handler   atomic.Pointer[Handler]
	closeOnce sync.Once
}

// NewClient creates a signaling client for the given relay endpoint.
// userID is the display identity announced on create_room/join_room.
func NewClient(serverURL, userID string) *Client {
	return &Client{
		serverURL: serverURL,
		userID:    userID,
		incoming:  make(chan *Envelope, 32),
		outgoing:  make(chan *Envelope, 32),
		done:      make(chan struct{}),
	}
}

// Connect dials the relay and announces the local participant: an empty
// roomID requests a new room, otherwise the client joins the given one.
// The relay confirms with room_created or room_joined through the
// registered handler.
func (c *Client) Connect(roomID string) error {
	conn, _, err := websocket.DefaultDialer.Dial(c.serverURL, nil)
	if err != nil {
		return &TransportError{Op: "connect", Err: err}
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()
	go c.dispatch()

	if roomID == "" {
		c.Send(&Envelope{Type: TypeCreateRoom, UserID: c.userID})
	} else {
		c.Send(&Envelope{Type: TypeJoinRoom, RoomID: roomID, UserID: c.userID})
	}

	return nil
}

// OnEnvelope registers the single active inbound handler. Replacing a
// registration is legal: the join flow installs a temporary handler and
// hands off to the session once the room confirmation arrives.
func (c *Client) OnEnvelope(h Handler) {
	c.handler.Store(&h)
}

// Send queues an envelope for delivery. It never blocks: if the socket
// is closed or the writer has fallen behind, the envelope is dropped.
func (c *Client) Send(env *Envelope) {
	select {
	case <-c.done:
	default:
		select {
		case c.outgoing <- env:
		default:
			slog.Warn("signaling send dropped", "type", env.Type)
		}
	}
}

// Close releases the socket. Subsequent sends are no-ops. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump reads envelopes from the websocket connection.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}

		select {
		case c.incoming <- &env:
		case <-c.done:
			return
		}
	}
}

// writePump writes envelopes to the websocket connection and sends
// periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// dispatch delivers inbound envelopes to the current handler, one at a
// time, preserving arrival order.
func (c *Client) dispatch() {
	for env := range c.incoming {
		if h := c.handler.Load(); h != nil {
			(*h)(env)
		}
	}
}
