package call

import (
	"encoding/json"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/bettercallok/chillcall/internal/signal"
)

// ConduitLabel is the data channel label both sides agree on.
const ConduitLabel = "chillcall_data"

// Role fixes which side of a link drives the offer.
type Role int

const (
	Initiator Role = iota
	Responder
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

// LinkState is the connection lifecycle of one peer link.
type LinkState int

const (
	StateNew LinkState = iota
	StateNegotiating
	StateConnected
	StateClosed
)

func (s LinkState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	default:
		return "closed"
	}
}

// ConduitState is the independent sub-state of the data conduit.
type ConduitState int

const (
	ConduitClosed ConduitState = iota
	ConduitOpening
	ConduitOpen
)

// PeerLink owns the media+data connection to one remote participant.
// Every method runs on the session loop; pion callbacks post back onto
// it, so the link is single-writer and needs no lock. A closed link
// turns all subsequent callbacks into no-ops.
type PeerLink struct {
	session *Session

	peerID string
	userID string
	role   Role

	state        LinkState
	conduitState ConduitState

	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	// Candidates received before the remote description, replayed in
	// arrival order once it is set.
	remoteDescSet           bool
	pendingRemoteCandidates []webrtc.ICECandidateInit
}

// PeerID returns the link's stable peer identity.
func (l *PeerLink) PeerID() string { return l.peerID }

// Role returns the negotiation role fixed at creation.
func (l *PeerLink) Role() Role { return l.role }

// State returns the current lifecycle state.
func (l *PeerLink) State() LinkState { return l.state }

// Conduit returns the data conduit sub-state.
func (l *PeerLink) Conduit() ConduitState { return l.conduitState }

// start advances New → Negotiating. The initiator opens its conduit and
// emits the offer; the responder waits for both to arrive from the peer.
func (l *PeerLink) start() {
	l.state = StateNegotiating

	if l.role != Initiator {
		l.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			l.session.post(func() { l.adoptConduit(dc) })
		})
		return
	}

	dc, err := l.pc.CreateDataChannel(ConduitLabel, nil)
	if err != nil {
		slog.Error("negotiation failed", "error", &NegotiationError{Op: "create conduit", Peer: l.peerID, Err: err})
		return
	}
	l.adoptConduit(dc)

	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		slog.Error("negotiation failed", "error", &NegotiationError{Op: "create offer", Peer: l.peerID, Err: err})
		return
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		slog.Error("negotiation failed", "error", &NegotiationError{Op: "set local offer", Peer: l.peerID, Err: err})
		return
	}

	// Trickle ICE: the offer goes out immediately, candidates follow
	// through OnICECandidate as they are gathered.
	local := l.pc.LocalDescription()
	l.session.transport.Send(signal.Offer(l.peerID, signal.SessionDescription{
		Type: local.Type.String(),
		SDP:  local.SDP,
	}))
}

// adoptConduit takes ownership of the data channel, whichever side
// created it, and tracks its open/close lifecycle.
func (l *PeerLink) adoptConduit(dc *webrtc.DataChannel) {
	if l.state == StateClosed {
		dc.Close()
		return
	}

	l.dc = dc
	l.conduitState = ConduitOpening

	dc.OnOpen(func() {
		l.session.post(func() {
			if l.state == StateClosed {
				return
			}
			l.conduitState = ConduitOpen
			slog.Debug("conduit open", "peer", l.peerID)
		})
	})

	// Dispatch stays off the session loop: subscribers may broadcast
	// from their handlers, and the bus guards its own state.
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		l.session.dispatch(msg.Data)
	})

	dc.OnClose(func() {
		l.session.post(func() {
			if l.state == StateClosed {
				return
			}
			l.conduitState = ConduitClosed
		})
	})
}

// handleOffer applies a remote offer and emits the answer. Responder only.
func (l *PeerLink) handleOffer(sdp *signal.SessionDescription) {
	if l.state == StateClosed {
		return
	}
	if l.role != Responder {
		slog.Warn("ignoring offer on initiator link", "peer", l.peerID)
		return
	}

	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp.SDP}
	if err := l.pc.SetRemoteDescription(remote); err != nil {
		slog.Error("negotiation failed", "error", &NegotiationError{Op: "set remote offer", Peer: l.peerID, Err: err})
		return
	}
	l.remoteDescSet = true
	l.drainCandidates()

	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		slog.Error("negotiation failed", "error", &NegotiationError{Op: "create answer", Peer: l.peerID, Err: err})
		return
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		slog.Error("negotiation failed", "error", &NegotiationError{Op: "set local answer", Peer: l.peerID, Err: err})
		return
	}

	local := l.pc.LocalDescription()
	l.session.transport.Send(signal.Answer(l.peerID, signal.SessionDescription{
		Type: local.Type.String(),
		SDP:  local.SDP,
	}))
}

// handleAnswer applies a remote answer. Initiator only; nothing further
// is emitted.
func (l *PeerLink) handleAnswer(sdp *signal.SessionDescription) {
	if l.state == StateClosed {
		return
	}
	if l.role != Initiator {
		slog.Warn("ignoring answer on responder link", "peer", l.peerID)
		return
	}

	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp.SDP}
	if err := l.pc.SetRemoteDescription(remote); err != nil {
		slog.Error("negotiation failed", "error", &NegotiationError{Op: "set remote answer", Peer: l.peerID, Err: err})
		return
	}
	l.remoteDescSet = true
	l.drainCandidates()
}

// handleCandidate applies one remote candidate, buffering it while no
// remote description exists.
func (l *PeerLink) handleCandidate(raw json.RawMessage) {
	if l.state == StateClosed {
		return
	}

	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &candidate); err != nil {
		slog.Warn("dropping malformed candidate", "peer", l.peerID, "error", err)
		return
	}

	if !l.remoteDescSet {
		l.pendingRemoteCandidates = append(l.pendingRemoteCandidates, candidate)
		return
	}

	if err := l.pc.AddICECandidate(candidate); err != nil {
		slog.Error("negotiation failed", "error", &NegotiationError{Op: "add candidate", Peer: l.peerID, Err: err})
	}
}

// drainCandidates replays the buffer in arrival order, exactly once.
func (l *PeerLink) drainCandidates() {
	for _, candidate := range l.pendingRemoteCandidates {
		if err := l.pc.AddICECandidate(candidate); err != nil {
			slog.Error("negotiation failed", "error", &NegotiationError{Op: "add buffered candidate", Peer: l.peerID, Err: err})
		}
	}
	l.pendingRemoteCandidates = nil
}

// markConnected records a usable media path (first remote track or the
// transport's own connectivity signal).
func (l *PeerLink) markConnected() {
	if l.state == StateNegotiating {
		l.state = StateConnected
		slog.Info("peer connected", "peer", l.peerID, "role", l.role.String())
	}
}

// close releases the media+data resources. Idempotent; afterwards every
// pending callback for this link is a no-op.
func (l *PeerLink) close() {
	if l.state == StateClosed {
		return
	}
	l.state = StateClosed
	l.conduitState = ConduitClosed

	if l.dc != nil {
		l.dc.Close()
	}
	l.pc.Close()
}
