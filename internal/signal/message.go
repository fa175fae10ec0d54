package signal

import "encoding/json"

// DefaultPath is the websocket endpoint path on the relay.
const DefaultPath = "/signaling"

// Envelope represents all websocket messages between a participant and
// the relay. The relay routes offer/answer/ice_candidate envelopes by
// Target without inspecting the payload, stamping From on the way through.
type Envelope struct {
	Type string `json:"type"`

	RoomID    string `json:"roomId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`

	// Peer addressing: Target on the way in, From on the way out.
	Target string `json:"target,omitempty"`
	From   string `json:"from,omitempty"`

	SDP       *SessionDescription `json:"sdp,omitempty"`
	Candidate json.RawMessage     `json:"candidate,omitempty"`

	Participants []Participant `json:"participants,omitempty"`

	// Message carries the reason on error envelopes.
	Message string `json:"message,omitempty"`
}

// Envelope type constants.
const (
	TypeCreateRoom = "create_room"
	TypeJoinRoom   = "join_room"
	TypeLeaveRoom  = "leave_room"

	TypeRoomCreated       = "room_created"
	TypeRoomJoined        = "room_joined"
	TypeParticipantJoined = "participant_joined"
	TypeParticipantLeft   = "participant_left"

	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice_candidate"

	TypeError = "error"
)

// SessionDescription is the SDP half of an offer or answer envelope.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Participant identifies one room member in a room_joined roster.
type Participant struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

// Offer builds an offer envelope addressed to target.
func Offer(target string, sdp SessionDescription) *Envelope {
	return &Envelope{Type: TypeOffer, Target: target, SDP: &sdp}
}

// Answer builds an answer envelope addressed to target.
func Answer(target string, sdp SessionDescription) *Envelope {
	return &Envelope{Type: TypeAnswer, Target: target, SDP: &sdp}
}

// Candidate builds an ice_candidate envelope addressed to target.
func Candidate(target string, candidate json.RawMessage) *Envelope {
	return &Envelope{Type: TypeICECandidate, Target: target, Candidate: candidate}
}
