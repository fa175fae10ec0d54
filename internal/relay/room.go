package relay

import (
	"time"
)

// MaxParticipants caps a room at the mesh size the clients can sustain:
// every member holds a direct connection to every other member.
const MaxParticipants = 4

// Room tracks the participants of one call, keyed by session id.
// Only the hub goroutine touches a Room.
type Room struct {
	ID           string
	Participants map[string]*Client
	CreatedAt    time.Time
}

// NewRoom creates an empty room.
func NewRoom(id string) *Room {
	return &Room{
		ID:           id,
		Participants: make(map[string]*Client),
		CreatedAt:    time.Now(),
	}
}

// CanJoin reports whether the room has space for another participant.
func (r *Room) CanJoin() bool {
	return len(r.Participants) < MaxParticipants
}

// Empty reports whether the room has no participants left.
func (r *Room) Empty() bool {
	return len(r.Participants) == 0
}
