package call

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/bettercallok/chillcall/internal/bus"
	"github.com/bettercallok/chillcall/internal/media"
	"github.com/bettercallok/chillcall/internal/signal"
	"github.com/bettercallok/chillcall/internal/store"
)

// Transport is the signaling side the session talks to. Send is
// fire-and-forget; inbound envelopes reach the session through
// HandleEnvelope, in delivery order.
type Transport interface {
	Send(*signal.Envelope)
}

// Options configures a session.
type Options struct {
	RoomID    string
	UserID    string
	Transport Transport

	// Source is the local media source; nil runs the session without
	// outgoing media (acquisition failure is non-fatal).
	Source media.Source

	// Store receives chat entries and remote feeds. Created if nil.
	Store *store.Store

	// ICEServers for new peer connections. Empty means host candidates
	// only, which is enough for loopback and LAN.
	ICEServers []webrtc.ICEServer
}

// Session owns the peer roster for one participant in one room. All
// state lives behind a single event-loop goroutine: inbound envelopes,
// pion callbacks, and public API calls are posted onto the loop, so
// links never need locks and advance independently of one another.
type Session struct {
	roomID    string
	userID    string
	transport Transport
	source    media.Source
	state     *store.Store
	bus       *bus.Bus
	rtcConfig webrtc.Configuration

	// links and names are owned by the loop goroutine.
	links map[string]*PeerLink
	names map[string]string

	ops       chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// New creates a session for a confirmed room membership. Call Start to
// run it and wire HandleEnvelope as the transport's envelope handler.
func New(opts Options) *Session {
	s := &Session{
		roomID:    opts.RoomID,
		userID:    opts.UserID,
		transport: opts.Transport,
		source:    opts.Source,
		state:     opts.Store,
		rtcConfig: webrtc.Configuration{ICEServers: opts.ICEServers},
		links:     make(map[string]*PeerLink),
		names:     make(map[string]string),
		ops:       make(chan func(), 64),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	if s.state == nil {
		s.state = store.New()
	}
	s.bus = bus.New(s.broadcastData, s.state, opts.UserID)
	return s
}

// Start launches the event loop.
func (s *Session) Start() {
	go s.run()
}

// Close tears the session down: leave_room is emitted, every peer link
// is closed, and all later events become no-ops. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	<-s.stopped
}

// RoomID returns the relay-assigned room identifier.
func (s *Session) RoomID() string { return s.roomID }

// UserID returns the local display identity.
func (s *Session) UserID() string { return s.userID }

// Bus returns the application message bus for this session.
func (s *Session) Bus() *bus.Bus { return s.bus }

// Store returns the chat/roster state store.
func (s *Session) Store() *store.Store { return s.state }

// HandleEnvelope routes one inbound signaling envelope. Bind it to the
// transport's envelope handler after the room confirmation.
func (s *Session) HandleEnvelope(env *signal.Envelope) {
	s.post(func() { s.routeEnvelope(env) })
}

// JoinRoom creates an initiator link toward every roster participant
// not already known. Idempotent per peer id.
func (s *Session) JoinRoom(participants []signal.Participant) {
	s.post(func() {
		for _, p := range participants {
			s.names[p.SessionID] = p.UserID
			s.ensureLink(p.SessionID, Initiator)
		}
	})
}

// Peers returns a snapshot of the roster's peer ids.
func (s *Session) Peers() []string {
	reply := make(chan []string, 1)
	if !s.post(func() {
		ids := make([]string, 0, len(s.links))
		for id := range s.links {
			ids = append(ids, id)
		}
		reply <- ids
	}) {
		return nil
	}
	select {
	case ids := <-reply:
		return ids
	case <-s.stopped:
		return nil
	}
}

// post schedules fn on the event loop. Returns false once the session
// is closed; the event is then dropped, which is what makes callbacks
// of torn-down links no-ops.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.ops <- fn:
		return true
	case <-s.done:
		return false
	}
}

// run is the event loop: the only goroutine that touches links/names.
func (s *Session) run() {
	defer close(s.stopped)

	for {
		select {
		case fn := <-s.ops:
			fn()
		case <-s.done:
			s.shutdown()
			return
		}
	}
}

func (s *Session) shutdown() {
	s.transport.Send(&signal.Envelope{Type: signal.TypeLeaveRoom})
	for id, link := range s.links {
		link.close()
		delete(s.links, id)
	}
}

// routeEnvelope dispatches by envelope type. Routing never blocks on a
// peer's negotiation; a stalled link cannot hold the others up.
func (s *Session) routeEnvelope(env *signal.Envelope) {
	switch env.Type {
	case signal.TypeParticipantJoined:
		// Informational: the responder link is created lazily when the
		// newcomer's offer arrives.
		s.names[env.SessionID] = env.UserID
		s.state.AppendChat("Peer "+env.UserID+" joined", store.SystemSender)

	case signal.TypeParticipantLeft:
		s.state.AppendChat("Peer "+env.UserID+" left", store.SystemSender)
		s.removePeer(env.SessionID)

	case signal.TypeOffer:
		if env.SDP == nil {
			slog.Warn("offer without sdp", "from", env.From)
			return
		}
		link := s.ensureLink(env.From, Responder)
		if link != nil {
			link.handleOffer(env.SDP)
		}

	case signal.TypeAnswer:
		link, ok := s.links[env.From]
		if !ok {
			slog.Warn("answer from unknown peer", "from", env.From)
			return
		}
		if env.SDP == nil {
			slog.Warn("answer without sdp", "from", env.From)
			return
		}
		link.handleAnswer(env.SDP)

	case signal.TypeICECandidate:
		link, ok := s.links[env.From]
		if !ok {
			slog.Warn("candidate from unknown peer", "from", env.From)
			return
		}
		link.handleCandidate(env.Candidate)

	case signal.TypeRoomCreated, signal.TypeRoomJoined:
		// Join-time envelopes; already consumed by the join flow.

	case signal.TypeError:
		slog.Warn("relay error", "message", env.Message)

	default:
		slog.Warn("unhandled envelope", "type", env.Type)
	}
}

// ensureLink returns the link for peerID, creating it with the given
// role on first contact. An existing link is returned as-is: creating a
// link twice is a no-op and starts no new negotiation.
func (s *Session) ensureLink(peerID string, role Role) *PeerLink {
	if link, ok := s.links[peerID]; ok {
		return link
	}

	pc, err := webrtc.NewPeerConnection(s.rtcConfig)
	if err != nil {
		slog.Error("negotiation failed", "error", &NegotiationError{Op: "create connection", Peer: peerID, Err: err})
		return nil
	}

	link := &PeerLink{
		session: s,
		peerID:  peerID,
		userID:  s.displayName(peerID),
		role:    role,
		state:   StateNew,
		pc:      pc,
	}
	s.links[peerID] = link

	// The local source is shared read-only: each link attaches its own
	// senders and never mutates the source.
	if s.source != nil {
		for _, track := range s.source.Tracks() {
			if _, err := pc.AddTrack(track); err != nil {
				slog.Error("attaching local track failed", "peer", peerID, "error", err)
			}
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		payload, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		s.transport.Send(signal.Candidate(peerID, payload))
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.post(func() {
			if link.state == StateClosed {
				return
			}
			link.markConnected()
			s.state.AddTrack(peerID, link.userID, track)
		})
	})

	pc.OnConnectionStateChange(func(connState webrtc.PeerConnectionState) {
		s.post(func() {
			if link.state == StateClosed {
				return
			}
			switch connState {
			case webrtc.PeerConnectionStateConnected:
				link.markConnected()
			case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
				slog.Warn("peer transport terminated", "peer", peerID, "state", connState.String())
				s.removePeer(peerID)
			}
		})
	})

	slog.Info("peer link created", "peer", peerID, "role", role.String())
	link.start()
	return link
}

// removePeer destroys the link and surfaces the stream removal. Safe to
// call repeatedly: the link closes exactly once and a missing link is a
// no-op.
func (s *Session) removePeer(peerID string) {
	link, ok := s.links[peerID]
	if ok {
		link.close()
		delete(s.links, peerID)
	}
	s.state.RemoveFeed(peerID)
}

// broadcastData sends one encoded payload on every open conduit and
// reports how many links received it. Called by the bus from outside
// the loop; after Close it reaches zero links.
func (s *Session) broadcastData(data []byte) int {
	reply := make(chan int, 1)
	if !s.post(func() {
		sent := 0
		for _, link := range s.links {
			if link.conduitState != ConduitOpen {
				continue
			}
			if err := link.dc.Send(data); err != nil {
				slog.Warn("conduit send failed", "peer", link.peerID, "error", err)
				continue
			}
			sent++
		}
		reply <- sent
	}) {
		return 0
	}
	select {
	case sent := <-reply:
		return sent
	case <-s.stopped:
		return 0
	}
}

// dispatch hands an inbound conduit payload to the bus. Runs on the
// data channel's delivery goroutine, not the loop: subscribers are
// allowed to broadcast from their handlers.
func (s *Session) dispatch(data []byte) {
	s.bus.Dispatch(data)
}

func (s *Session) displayName(peerID string) string {
	if name, ok := s.names[peerID]; ok && name != "" {
		return name
	}
	return peerID
}
