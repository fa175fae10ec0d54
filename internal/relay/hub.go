package relay

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bettercallok/chillcall/internal/signal"
)

const (
	sweepPeriod = 5 * time.Minute
	staleAfter  = 2 * time.Hour
)

// inbound pairs an envelope with the connection it arrived on.
type inbound struct {
	client *Client
	env    *signal.Envelope
}

// Hub is the central brain of the relay. It owns all rooms and clients;
// its Run loop is the single goroutine that touches them, so no locks
// are needed anywhere in this package.
type Hub struct {
	rooms map[string]*Room

	Register   chan *Client
	Unregister chan *Client
	Inbound    chan *inbound

	done chan struct{}
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *inbound),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main processing loop.
func (h *Hub) Run() {
	sweep := time.NewTicker(sweepPeriod)
	defer sweep.Stop()

	for {
		select {
		case client := <-h.Register:
			slog.Info("client registered", "session", client.SessionID)

		case client := <-h.Unregister:
			h.removeFromRoom(client)
			close(client.Send)

		case in := <-h.Inbound:
			h.handle(in.client, in.env)

		case <-sweep.C:
			h.sweepStaleRooms()

		case <-h.done:
			return
		}
	}
}

// Stop terminates the Run loop.
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) handle(client *Client, env *signal.Envelope) {
	switch env.Type {
	case signal.TypeCreateRoom:
		h.createRoom(client, env)

	case signal.TypeJoinRoom:
		h.joinRoom(client, env)

	case signal.TypeOffer, signal.TypeAnswer, signal.TypeICECandidate:
		h.forward(client, env)

	case signal.TypeLeaveRoom:
		h.removeFromRoom(client)

	default:
		slog.Warn("unknown envelope type", "type", env.Type, "session", client.SessionID)
	}
}

func (h *Hub) createRoom(client *Client, env *signal.Envelope) {
	roomID := uuid.NewString()
	client.UserID = userIDOrDefault(env.UserID, client.SessionID)

	room := NewRoom(roomID)
	room.Participants[client.SessionID] = client
	h.rooms[roomID] = room
	client.RoomID = roomID

	slog.Info("room created", "room", roomID, "user", client.UserID)

	client.Send <- &signal.Envelope{
		Type:   signal.TypeRoomCreated,
		RoomID: roomID,
		UserID: client.UserID,
	}
}

func (h *Hub) joinRoom(client *Client, env *signal.Envelope) {
	room, ok := h.rooms[env.RoomID]
	if !ok {
		client.Send <- &signal.Envelope{Type: signal.TypeError, Message: "Room not found"}
		return
	}
	if !room.CanJoin() {
		client.Send <- &signal.Envelope{Type: signal.TypeError, Message: "Room is full"}
		return
	}

	client.UserID = userIDOrDefault(env.UserID, client.SessionID)

	// Snapshot the roster before adding the joiner: these are the peers
	// the joiner must initiate toward.
	existing := make([]signal.Participant, 0, len(room.Participants))
	for sid, member := range room.Participants {
		existing = append(existing, signal.Participant{SessionID: sid, UserID: member.UserID})
	}

	room.Participants[client.SessionID] = client
	client.RoomID = room.ID

	h.broadcast(room, &signal.Envelope{
		Type:      signal.TypeParticipantJoined,
		SessionID: client.SessionID,
		UserID:    client.UserID,
	}, client.SessionID)

	client.Send <- &signal.Envelope{
		Type:         signal.TypeRoomJoined,
		RoomID:       room.ID,
		UserID:       client.UserID,
		Participants: existing,
	}

	slog.Info("participant joined", "room", room.ID, "user", client.UserID)
}

// forward relays a negotiation envelope to its target participant,
// stamping From so the target can route the reply.
func (h *Hub) forward(sender *Client, env *signal.Envelope) {
	if sender.RoomID == "" {
		sender.Send <- &signal.Envelope{Type: signal.TypeError, Message: "You must join a room first"}
		return
	}

	room, ok := h.rooms[sender.RoomID]
	if !ok {
		sender.Send <- &signal.Envelope{Type: signal.TypeError, Message: "Room not found"}
		return
	}

	target, ok := room.Participants[env.Target]
	if !ok {
		slog.Debug("forward target not in room", "room", room.ID, "target", env.Target)
		return
	}

	relayed := *env
	relayed.From = sender.SessionID
	target.Send <- &relayed

	slog.Debug("relayed envelope", "type", env.Type, "from", sender.SessionID, "to", env.Target)
}

func (h *Hub) removeFromRoom(client *Client) {
	if client.RoomID == "" {
		return
	}

	room, ok := h.rooms[client.RoomID]
	if !ok {
		client.RoomID = ""
		return
	}

	delete(room.Participants, client.SessionID)
	client.RoomID = ""

	h.broadcast(room, &signal.Envelope{
		Type:      signal.TypeParticipantLeft,
		SessionID: client.SessionID,
		UserID:    client.UserID,
	}, "")

	if room.Empty() {
		delete(h.rooms, room.ID)
		slog.Info("room deleted", "room", room.ID)
	}
}

// broadcast sends an envelope to every participant except excludeSID.
func (h *Hub) broadcast(room *Room, env *signal.Envelope, excludeSID string) {
	for sid, member := range room.Participants {
		if sid == excludeSID {
			continue
		}
		select {
		case member.Send <- env:
		default:
			slog.Warn("participant send buffer full, dropping", "session", sid, "type", env.Type)
		}
	}
}

func (h *Hub) sweepStaleRooms() {
	cutoff := time.Now().Add(-staleAfter)
	removed := 0

	for id, room := range h.rooms {
		if room.Empty() && room.CreatedAt.Before(cutoff) {
			delete(h.rooms, id)
			removed++
		}
	}

	if removed > 0 {
		slog.Info("swept stale rooms", "count", removed)
	}
}

func userIDOrDefault(userID, sessionID string) string {
	if userID != "" {
		return userID
	}
	return "User-" + sessionID[:8]
}
