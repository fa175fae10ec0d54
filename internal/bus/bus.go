// Package bus is the typed publish/dispatch layer over the data
// conduits. Outbound messages are serialized once and fanned out to
// every open peer link; inbound payloads are decoded and redistributed
// to local subscribers (chat, game, media-sync).
package bus

import (
	"log/slog"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/bettercallok/chillcall/internal/store"
)

// Subscriber receives every decoded inbound application message.
type Subscriber func(Message)

// Broadcaster sends an encoded message on every open conduit and
// returns the number of links it reached. The session provides it.
type Broadcaster func(data []byte) int

// Bus routes application messages between the local subscribers and
// the session's data conduits.
type Bus struct {
	send      Broadcaster
	chat      *store.Store
	localUser string

	mu     sync.RWMutex
	nextID int
	subs   map[int]Subscriber
}

// New creates a bus. Inbound chat messages are additionally appended to
// chatStore so the chat surface needs no subscription of its own.
func New(send Broadcaster, chatStore *store.Store, localUser string) *Bus {
	return &Bus{
		send:      send,
		chat:      chatStore,
		localUser: localUser,
		subs:      make(map[int]Subscriber),
	}
}

// Subscribe registers a handler for inbound messages and returns its
// cancel function.
func (b *Bus) Subscribe(sub Subscriber) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Broadcast stamps the local sender on msg, serializes it once, and
// sends it on every open conduit. Links that are not yet open do not
// receive it; with zero open links this is a no-op, not an error.
func (b *Bus) Broadcast(msg Message) error {
	if msg.Sender == "" {
		msg.Sender = b.localUser
	}

	data, err := msgpack.Marshal(msg)
	if err != nil {
		return err
	}

	n := b.send(data)
	slog.Debug("broadcast", "type", msg.Type, "links", n)
	return nil
}

// Dispatch decodes one inbound conduit payload and delivers it to all
// subscribers. Malformed payloads are dropped; they never affect
// connection state.
func (b *Bus) Dispatch(raw []byte) {
	var msg Message
	if err := msgpack.Unmarshal(raw, &msg); err != nil {
		slog.Warn("dropping malformed conduit message", "error", err)
		return
	}

	if msg.Type == TypeChat && b.chat != nil {
		var p ChatPayload
		if err := msg.DecodePayload(&p); err != nil {
			slog.Warn("dropping malformed chat payload", "error", err)
			return
		}
		b.chat.AppendChat(p.Text, msg.Sender)
	}

	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		sub(msg)
	}
}
