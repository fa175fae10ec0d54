package cli

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/bettercallok/chillcall/internal/ui"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chillcall",
	Short: "Peer-to-peer group calls with chat over WebRTC",
	Long: `ChillCall connects participants of a room directly to each other over
WebRTC: audio/video flows peer to peer in a mesh, and a data channel
carries chat, game moves, and media-sync events. A small relay only
bootstraps the connections.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
