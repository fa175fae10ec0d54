package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/bettercallok/chillcall/internal/config"
	"github.com/bettercallok/chillcall/internal/relay"
	"github.com/bettercallok/chillcall/internal/ui"
)

var flagRelayAddr string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the signaling relay",
	Long: `Run the rendezvous relay that allocates rooms and forwards signaling
envelopes between participants. The relay never sees media or chat;
it only bootstraps the peer connections.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelay()
	},
}

func init() {
	relayCmd.Flags().StringVar(&flagRelayAddr, "addr", "", "listen address (default :8080)")
	rootCmd.AddCommand(relayCmd)
}

func runRelay() error {
	cfg, err := config.Load(config.Options{RelayAddr: flagRelayAddr})
	if err != nil {
		return err
	}

	hub := relay.NewHub()
	go hub.Run()
	defer hub.Stop()

	ui.PrintStatus(fmt.Sprintf("relay listening on %s", cfg.RelayAddr))
	return http.ListenAndServe(cfg.RelayAddr, relay.Handler(hub))
}
