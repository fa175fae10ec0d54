package cli

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/bettercallok/chillcall/internal/bus"
	"github.com/bettercallok/chillcall/internal/call"
	"github.com/bettercallok/chillcall/internal/config"
	"github.com/bettercallok/chillcall/internal/media"
	"github.com/bettercallok/chillcall/internal/signal"
	"github.com/bettercallok/chillcall/internal/store"
	"github.com/bettercallok/chillcall/internal/ui"
)

const joinTimeout = 15 * time.Second

var (
	flagCallDomain    string
	flagCallSignalURL string
	flagCallSTUN      string
	flagCallTURN      string
	flagCallTURNUser  string
	flagCallTURNPass  string
	flagCallUser      string
)

var callCmd = &cobra.Command{
	Use:   "call [room-id]",
	Short: "Create or join a call room",
	Long: `Join the given room, or create a new one when no room id is given.
Chat lines read from stdin are broadcast to every connected peer.

Examples:
  chillcall call
  chillcall call 4cd2ae7a-93c0-4fd7-ba55-45e2c8f52cd1 --user mia`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID := ""
		if len(args) == 1 {
			roomID = args[0]
		}
		return runCall(roomID)
	},
}

func init() {
	callCmd.Flags().StringVar(&flagCallDomain, "domain", "", "relay domain")
	callCmd.Flags().StringVar(&flagCallSignalURL, "signal-url", "", "relay websocket URL (overrides domain)")
	callCmd.Flags().StringVar(&flagCallSTUN, "stun", "", "STUN server URL")
	callCmd.Flags().StringVar(&flagCallTURN, "turn", "", "TURN server URL")
	callCmd.Flags().StringVar(&flagCallTURNUser, "turn-user", "", "TURN username")
	callCmd.Flags().StringVar(&flagCallTURNPass, "turn-pass", "", "TURN password")
	callCmd.Flags().StringVar(&flagCallUser, "user", "", "display name")
	rootCmd.AddCommand(callCmd)
}

func runCall(roomID string) error {
	cfg, err := config.Load(config.Options{
		Domain:     flagCallDomain,
		SignalURL:  flagCallSignalURL,
		STUNServer: flagCallSTUN,
		TURNServer: flagCallTURN,
		TURNUser:   flagCallTURNUser,
		TURNPass:   flagCallTURNPass,
	})
	if err != nil {
		return err
	}

	userID := flagCallUser
	if userID == "" {
		userID = fmt.Sprintf("User-%05d", rand.Intn(100000))
	}

	client := signal.NewClient(cfg.SignalURL, userID)

	// Join-time handler: only the room confirmation matters here; the
	// session takes over envelope handling once it exists.
	joined := make(chan *signal.Envelope, 1)
	client.OnEnvelope(func(env *signal.Envelope) {
		switch env.Type {
		case signal.TypeRoomCreated, signal.TypeRoomJoined, signal.TypeError:
			select {
			case joined <- env:
			default:
			}
		}
	})

	if err := client.Connect(roomID); err != nil {
		return err
	}
	defer client.Close()

	var confirmation *signal.Envelope
	select {
	case confirmation = <-joined:
	case <-time.After(joinTimeout):
		return errors.New("timeout waiting for room confirmation")
	}
	if confirmation.Type == signal.TypeError {
		return fmt.Errorf("relay rejected join: %s", confirmation.Message)
	}

	var source media.Source
	if src, err := media.NewSampleSource(); err != nil {
		if ae, ok := media.IsAcquireError(err); ok {
			ui.PrintError(fmt.Sprintf("no local media (%s), continuing without it", ae.Reason))
		}
	} else {
		source = src
		defer src.Close()
	}

	state := store.New()
	state.OnChat(func(msg store.ChatMessage) {
		fmt.Printf("%s %s\n", ui.ChatSenderStyle.Render(msg.Sender+":"), msg.Text)
	})
	state.OnFeed(func(peerID string, feed *store.RemoteFeed) {
		if feed == nil {
			ui.PrintStatus("stream removed: " + peerID)
			return
		}
		ui.PrintStatus(fmt.Sprintf("stream from %s (%d tracks)", feed.UserID, len(feed.Tracks)))
	})

	session := call.New(call.Options{
		RoomID:     confirmation.RoomID,
		UserID:     confirmation.UserID,
		Transport:  client,
		Source:     source,
		Store:      state,
		ICEServers: iceServers(cfg),
	})
	session.Start()
	defer session.Close()

	client.OnEnvelope(session.HandleEnvelope)
	session.JoinRoom(confirmation.Participants)

	ui.PrintSuccess("room " + confirmation.RoomID)
	ui.PrintStatus(fmt.Sprintf("you are %s; type to chat, ctrl-d to leave", confirmation.UserID))

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		msg, err := bus.NewMessage(bus.TypeChat, bus.ChatPayload{Text: text})
		if err != nil {
			ui.PrintError(err.Error())
			continue
		}
		if err := session.Bus().Broadcast(msg); err != nil {
			ui.PrintError(err.Error())
			continue
		}
		state.AppendChat(text, confirmation.UserID)
	}

	return scanner.Err()
}

// iceServers builds the pion ICE configuration from the loaded config.
func iceServers(cfg *config.Config) []webrtc.ICEServer {
	servers := []webrtc.ICEServer{{URLs: cfg.GetSTUNServers()}}

	if turn := cfg.GetTURNServers(); turn != nil {
		username, password := cfg.GetTURNCredentials()
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   username,
			Credential: password,
		})
	}

	return servers
}
