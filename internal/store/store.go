// Package store holds the thin reactive call state the presentation
// layer consumes: the chat log and the roster of remote media feeds.
// It is mutated only by session and bus callbacks; consumers read
// snapshots or register listeners.
package store

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// SystemSender marks chat entries generated by the session itself
// (join/leave notices) rather than received from a peer.
const SystemSender = "SYSTEM"

// ChatMessage is one chat log entry.
type ChatMessage struct {
	Text   string
	Sender string
}

// RemoteFeed is the media arriving from one peer. Tracks are appended
// as they arrive (audio and video come in separately).
type RemoteFeed struct {
	PeerID string
	UserID string
	Tracks []*webrtc.TrackRemote
}

// ChatListener observes appended chat messages.
type ChatListener func(ChatMessage)

// FeedListener observes roster changes. feed is nil when the peer's
// feed was removed.
type FeedListener func(peerID string, feed *RemoteFeed)

// Store is a threadsafe in-memory call state.
type Store struct {
	mu    sync.RWMutex
	chat  []ChatMessage
	feeds map[string]*RemoteFeed

	chatListeners []ChatListener
	feedListeners []FeedListener
}

// New creates an empty store.
func New() *Store {
	return &Store{
		feeds: make(map[string]*RemoteFeed),
	}
}

// AppendChat adds a chat entry and notifies listeners.
func (s *Store) AppendChat(text, sender string) {
	msg := ChatMessage{Text: text, Sender: sender}

	s.mu.Lock()
	s.chat = append(s.chat, msg)
	listeners := append([]ChatListener(nil), s.chatListeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(msg)
	}
}

// AddTrack records a remote track for a peer, creating the feed on
// first contact, and notifies listeners.
func (s *Store) AddTrack(peerID, userID string, track *webrtc.TrackRemote) {
	s.mu.Lock()
	feed, ok := s.feeds[peerID]
	if !ok {
		feed = &RemoteFeed{PeerID: peerID, UserID: userID}
		s.feeds[peerID] = feed
	}
	feed.Tracks = append(feed.Tracks, track)
	listeners := append([]FeedListener(nil), s.feedListeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(peerID, feed)
	}
}

// RemoveFeed drops a peer's feed and notifies listeners with nil.
func (s *Store) RemoveFeed(peerID string) {
	s.mu.Lock()
	_, ok := s.feeds[peerID]
	delete(s.feeds, peerID)
	listeners := append([]FeedListener(nil), s.feedListeners...)
	s.mu.Unlock()

	if !ok {
		return
	}
	for _, l := range listeners {
		l(peerID, nil)
	}
}

// OnChat registers a chat listener.
func (s *Store) OnChat(l ChatListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatListeners = append(s.chatListeners, l)
}

// OnFeed registers a feed listener.
func (s *Store) OnFeed(l FeedListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedListeners = append(s.feedListeners, l)
}

// ChatLog returns a snapshot of the chat history.
func (s *Store) ChatLog() []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ChatMessage(nil), s.chat...)
}

// Feeds returns a snapshot of the remote feed roster keyed by peer id.
func (s *Store) Feeds() map[string]*RemoteFeed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*RemoteFeed, len(s.feeds))
	for id, feed := range s.feeds {
		out[id] = feed
	}
	return out
}
