package bus

import (
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

// TestMessageRoundTrip encodes and decodes one message of every defined
// type and verifies the payload survives unchanged.
func TestMessageRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		msgType string
		payload any
		decoded any
	}{
		{"chat", TypeChat, ChatPayload{Text: "hi"}, &ChatPayload{}},
		{"media_session", TypeMediaSession, MediaSessionPayload{Action: ActionOpen, Service: "youtube", URL: "https://example.com/v"}, &MediaSessionPayload{}},
		{"game_session", TypeGameSession, GameSessionPayload{Action: ActionClose}, &GameSessionPayload{}},
		{"game_move", TypeGameMove, GameMovePayload{Cell: 4, Mark: "X"}, &GameMovePayload{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := NewMessage(tc.msgType, tc.payload)
			if err != nil {
				t.Fatalf("NewMessage: %v", err)
			}
			msg.Sender = "mia"

			wire, err := msgpack.Marshal(msg)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			var got Message
			if err := msgpack.Unmarshal(wire, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != tc.msgType {
				t.Errorf("type = %q, want %q", got.Type, tc.msgType)
			}
			if got.Sender != "mia" {
				t.Errorf("sender = %q, want %q", got.Sender, "mia")
			}
			if err := got.DecodePayload(tc.decoded); err != nil {
				t.Fatalf("DecodePayload: %v", err)
			}

			switch want := tc.payload.(type) {
			case ChatPayload:
				if *tc.decoded.(*ChatPayload) != want {
					t.Errorf("payload = %+v, want %+v", tc.decoded, want)
				}
			case MediaSessionPayload:
				if *tc.decoded.(*MediaSessionPayload) != want {
					t.Errorf("payload = %+v, want %+v", tc.decoded, want)
				}
			case GameSessionPayload:
				if *tc.decoded.(*GameSessionPayload) != want {
					t.Errorf("payload = %+v, want %+v", tc.decoded, want)
				}
			case GameMovePayload:
				if *tc.decoded.(*GameMovePayload) != want {
					t.Errorf("payload = %+v, want %+v", tc.decoded, want)
				}
			}
		})
	}
}

// TestGameResetRoundTrip covers the payload-less message type.
func TestGameResetRoundTrip(t *testing.T) {
	wire, err := msgpack.Marshal(Message{Type: TypeGameReset, Sender: "mia"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Message
	if err := msgpack.Unmarshal(wire, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != TypeGameReset || got.Sender != "mia" {
		t.Errorf("got %+v", got)
	}
}
