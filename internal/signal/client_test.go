package signal

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// relayStub is a single-connection fake relay for client tests.
type relayStub struct {
	server   *httptest.Server
	received chan *Envelope
	conns    chan *websocket.Conn
}

func newRelayStub(t *testing.T) *relayStub {
	t.Helper()

	stub := &relayStub{
		received: make(chan *Envelope, 16),
		conns:    make(chan *websocket.Conn, 1),
	}

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		stub.conns <- conn
		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			stub.received <- &env
		}
	}))
	t.Cleanup(stub.server.Close)

	return stub
}

func (s *relayStub) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *relayStub) waitEnvelope(t *testing.T) *Envelope {
	t.Helper()
	select {
	case env := <-s.received:
		return env
	case <-time.After(5 * time.Second):
		t.Fatal("relay stub received no envelope")
		return nil
	}
}

func TestConnectCreatesRoom(t *testing.T) {
	stub := newRelayStub(t)

	client := NewClient(stub.url(), "mia")
	if err := client.Connect(""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	env := stub.waitEnvelope(t)
	if env.Type != TypeCreateRoom || env.UserID != "mia" {
		t.Errorf("got %+v, want create_room from mia", env)
	}
}

func TestConnectJoinsRoom(t *testing.T) {
	stub := newRelayStub(t)

	client := NewClient(stub.url(), "bo")
	if err := client.Connect("room-1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	env := stub.waitEnvelope(t)
	if env.Type != TypeJoinRoom || env.RoomID != "room-1" || env.UserID != "bo" {
		t.Errorf("got %+v, want join_room room-1 from bo", env)
	}
}

// TestHandlerReplacement verifies replacing the registered handler is
// legal and routes later envelopes to the new handler only.
func TestHandlerReplacement(t *testing.T) {
	stub := newRelayStub(t)

	first := make(chan *Envelope, 1)
	second := make(chan *Envelope, 1)

	client := NewClient(stub.url(), "mia")
	client.OnEnvelope(func(env *Envelope) { first <- env })
	if err := client.Connect(""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()
	stub.waitEnvelope(t) // create_room

	conn := <-stub.conns
	if err := conn.WriteJSON(&Envelope{Type: TypeRoomCreated, RoomID: "r1"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case env := <-first:
		if env.Type != TypeRoomCreated {
			t.Fatalf("first handler got %+v", env)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first handler never called")
	}

	client.OnEnvelope(func(env *Envelope) { second <- env })
	if err := conn.WriteJSON(&Envelope{Type: TypeParticipantJoined, SessionID: "s2", UserID: "bo"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case env := <-second:
		if env.Type != TypeParticipantJoined {
			t.Fatalf("second handler got %+v", env)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second handler never called")
	}

	select {
	case env := <-first:
		t.Fatalf("replaced handler still called with %+v", env)
	default:
	}
}

// TestSendAfterClose verifies sends on a closed client are silent no-ops.
func TestSendAfterClose(t *testing.T) {
	stub := newRelayStub(t)

	client := NewClient(stub.url(), "mia")
	if err := client.Connect(""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	stub.waitEnvelope(t) // create_room

	client.Close()
	client.Close() // idempotent

	client.Send(&Envelope{Type: TypeLeaveRoom})

	select {
	case env := <-stub.received:
		t.Fatalf("relay received %+v after close", env)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestConnectFailure(t *testing.T) {
	client := NewClient("ws://127.0.0.1:1/signaling", "mia")

	err := client.Connect("")
	if err == nil {
		t.Fatal("Connect succeeded against closed port")
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error %T is not a TransportError", err)
	}
}
