package call

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bettercallok/chillcall/internal/bus"
	"github.com/bettercallok/chillcall/internal/relay"
	"github.com/bettercallok/chillcall/internal/signal"
)

// The tests below run full calls against a real relay: loopback sockets
// for signaling and host-candidate ICE for the peer connections.

func startRelayServer(t *testing.T) string {
	t.Helper()

	hub := relay.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	server := httptest.NewServer(relay.Handler(hub))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http") + signal.DefaultPath
}

// joinCall connects a signaling client and waits for the relay's room
// confirmation, the way the command-line front end does.
func joinCall(t *testing.T, url, roomID, userID string) (*signal.Client, *signal.Envelope) {
	t.Helper()

	client := signal.NewClient(url, userID)
	joined := make(chan *signal.Envelope, 1)
	client.OnEnvelope(func(env *signal.Envelope) {
		switch env.Type {
		case signal.TypeRoomCreated, signal.TypeRoomJoined, signal.TypeError:
			select {
			case joined <- env:
			default:
			}
		}
	})
	if err := client.Connect(roomID); err != nil {
		t.Fatalf("%s: connect: %v", userID, err)
	}
	t.Cleanup(client.Close)

	select {
	case env := <-joined:
		if env.Type == signal.TypeError {
			t.Fatalf("%s: relay error: %s", userID, env.Message)
		}
		return client, env
	case <-time.After(10 * time.Second):
		t.Fatalf("%s: no room confirmation", userID)
		return nil, nil
	}
}

func startCallSession(t *testing.T, client *signal.Client, confirmation *signal.Envelope, userID string) *Session {
	t.Helper()

	s := New(Options{RoomID: confirmation.RoomID, UserID: userID, Transport: client})
	s.Start()
	t.Cleanup(s.Close)

	client.OnEnvelope(s.HandleEnvelope)
	s.JoinRoom(confirmation.Participants)
	return s
}

// waitPeers blocks until the session knows at least n peers.
func waitPeers(t *testing.T, s *Session, n int) []string {
	t.Helper()

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if peers := s.Peers(); len(peers) >= n {
			return peers
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("never saw %d peers, have %v", n, s.Peers())
	return nil
}

// waitConduit blocks until the conduit toward peerID is open.
func waitConduit(t *testing.T, s *Session, peerID string) {
	t.Helper()

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		var open bool
		onLoop(t, s, func() {
			if link, ok := s.links[peerID]; ok {
				open = link.conduitState == ConduitOpen
			}
		})
		if open {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("conduit to %s never opened", peerID)
}

func chatMessage(t *testing.T, text string) bus.Message {
	t.Helper()
	msg, err := bus.NewMessage(bus.TypeChat, bus.ChatPayload{Text: text})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	return msg
}

// subscribeChat collects inbound chat messages from a session's bus.
func subscribeChat(t *testing.T, s *Session) chan bus.Message {
	t.Helper()
	chats := make(chan bus.Message, 8)
	cancel := s.Bus().Subscribe(func(msg bus.Message) {
		if msg.Type == bus.TypeChat {
			chats <- msg
		}
	})
	t.Cleanup(cancel)
	return chats
}

func expectChat(t *testing.T, chats chan bus.Message, text, sender string) {
	t.Helper()
	select {
	case msg := <-chats:
		if msg.Sender != sender {
			t.Errorf("sender = %q, want %q", msg.Sender, sender)
		}
		var p bus.ChatPayload
		if err := msg.DecodePayload(&p); err != nil {
			t.Fatalf("DecodePayload: %v", err)
		}
		if p.Text != text {
			t.Errorf("text = %q, want %q", p.Text, text)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("chat %q from %s never arrived", text, sender)
	}
}

func expectNoChat(t *testing.T, chats chan bus.Message) {
	t.Helper()
	select {
	case msg := <-chats:
		t.Fatalf("unexpected extra chat %+v", msg)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestTwoPartyCall(t *testing.T) {
	url := startRelayServer(t)

	clientA, created := joinCall(t, url, "", "alice")
	alice := startCallSession(t, clientA, created, "alice")

	clientB, joined := joinCall(t, url, created.RoomID, "bob")
	bob := startCallSession(t, clientB, joined, "bob")

	if len(joined.Participants) != 1 {
		t.Fatalf("join roster = %+v", joined.Participants)
	}
	aliceSID := joined.Participants[0].SessionID

	waitConduit(t, bob, aliceSID)
	bobSID := waitPeers(t, alice, 1)[0]
	waitConduit(t, alice, bobSID)

	aliceChats := subscribeChat(t, alice)
	if err := bob.Bus().Broadcast(chatMessage(t, "hi")); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	expectChat(t, aliceChats, "hi", "bob")
	expectNoChat(t, aliceChats)

	var found bool
	for _, entry := range alice.Store().ChatLog() {
		if entry.Text == "hi" && entry.Sender == "bob" {
			found = true
		}
	}
	if !found {
		t.Errorf("chat log = %+v, missing bob's message", alice.Store().ChatLog())
	}
}

// TestThreePartyMesh verifies a third participant meshes with both
// existing members without disturbing the established link.
func TestThreePartyMesh(t *testing.T) {
	url := startRelayServer(t)

	clientA, created := joinCall(t, url, "", "alice")
	alice := startCallSession(t, clientA, created, "alice")

	clientB, joinedB := joinCall(t, url, created.RoomID, "bob")
	bob := startCallSession(t, clientB, joinedB, "bob")

	aliceSID := joinedB.Participants[0].SessionID
	waitConduit(t, bob, aliceSID)
	bobSID := waitPeers(t, alice, 1)[0]
	waitConduit(t, alice, bobSID)

	clientC, joinedC := joinCall(t, url, created.RoomID, "carol")
	carol := startCallSession(t, clientC, joinedC, "carol")

	if len(joinedC.Participants) != 2 {
		t.Fatalf("carol's roster = %+v", joinedC.Participants)
	}
	for _, p := range joinedC.Participants {
		waitConduit(t, carol, p.SessionID)
	}
	for _, s := range []*Session{alice, bob} {
		for _, peerID := range waitPeers(t, s, 2) {
			waitConduit(t, s, peerID)
		}
	}

	// The established pair is untouched by the newcomer's negotiation.
	onLoop(t, alice, func() {
		link := alice.links[bobSID]
		if link == nil || link.state == StateClosed {
			t.Errorf("alice's link to bob disturbed: %+v", link)
		}
	})

	aliceChats := subscribeChat(t, alice)
	bobChats := subscribeChat(t, bob)
	if err := carol.Bus().Broadcast(chatMessage(t, "room for one more?")); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	expectChat(t, aliceChats, "room for one more?", "carol")
	expectChat(t, bobChats, "room for one more?", "carol")
	expectNoChat(t, aliceChats)
	expectNoChat(t, bobChats)
}
