// Package signal defines the relay wire protocol and the websocket
// client participants use to reach it.
//
// Envelopes are JSON tagged unions. Room management envelopes
// (create_room, join_room, room_created, room_joined,
// participant_joined, participant_left) flow between one participant
// and the relay. Negotiation envelopes (offer, answer, ice_candidate)
// are addressed to a peer via Target; the relay forwards them verbatim
// with From set to the sender's session id and never inspects the SDP
// or candidate payloads.
//
// The relay owes one invariant beyond routing: negotiation roles are
// assigned by roster position. A joiner receives the current roster in
// room_joined and initiates toward every listed member; the members
// learn of the joiner only through participant_joined and answer when
// the joiner's offer arrives. Concurrent double-offers between a pair
// of peers therefore cannot occur while the invariant holds.
package signal
