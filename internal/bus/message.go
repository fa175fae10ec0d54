package bus

import "github.com/vmihailenco/msgpack/v5"

// Application message type constants.
const (
	TypeChat         = "chat"
	TypeMediaSession = "media_session"
	TypeGameSession  = "game_session"
	TypeGameMove     = "game_move"
	TypeGameReset    = "game_reset"
)

// Actions for media_session and game_session messages.
const (
	ActionOpen  = "open"
	ActionClose = "close"
)

// Message represents all application messages carried over the data
// conduits. Sender is the originating user id, stamped on broadcast, so
// consumers never have to infer it from type-specific payloads.
type Message struct {
	Type    string             `msgpack:"type"`
	Sender  string             `msgpack:"sender,omitempty"`
	Payload msgpack.RawMessage `msgpack:"payload,omitempty"`
}

// ChatPayload carries one chat line.
type ChatPayload struct {
	Text string `msgpack:"text"`
}

// MediaSessionPayload opens or closes a shared embedded media player.
type MediaSessionPayload struct {
	Action  string `msgpack:"action"`
	Service string `msgpack:"service,omitempty"`
	URL     string `msgpack:"url,omitempty"`
}

// GameSessionPayload opens or closes the mini-game surface.
type GameSessionPayload struct {
	Action string `msgpack:"action"`
}

// GameMovePayload is one tic-tac-toe move.
type GameMovePayload struct {
	Cell int    `msgpack:"cell"`
	Mark string `msgpack:"mark"`
}

// NewMessage creates a Message with the given type and encoded payload.
func NewMessage(t string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Type:    t,
		Payload: b,
	}, nil
}

// DecodePayload decodes the message payload into the provided struct.
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}
