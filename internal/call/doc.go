// Package call implements the peer-session engine: one Session per
// local participant per room, holding one PeerLink per remote
// participant in a mesh (no central media relay).
//
// A Session routes inbound signaling envelopes to the right link,
// creating responder links lazily on first offer, and tears links down
// on participant_left or transport failure. Each PeerLink drives the
// offer/answer/candidate handshake for its pair and owns the media and
// data-conduit lifecycle; candidates arriving before the paired
// description are buffered and replayed in order.
//
// All session and link state is owned by a single event-loop goroutine.
// pion callbacks and the public API post events onto the loop: no
// interleaved transitions, no locks, and closed links whose late
// callbacks are no-ops.
package call
