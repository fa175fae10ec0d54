package config

import (
	"fmt"
	"os"

	"github.com/bettercallok/chillcall/internal/signal"
)

// Default configuration values (production)
const (
	DefaultDomain    = "chillcall.example.com"
	DefaultSTUN      = "stun:stun.l.google.com:19302"
	DefaultRelayAddr = ":8080"
)

// Config holds application configuration
type Config struct {
	// Domain is the relay server domain
	Domain string

	// SignalURL is the websocket endpoint constructed from domain
	SignalURL string

	// RelayAddr is the listen address for the relay command
	RelayAddr string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	SignalURL  string
	RelayAddr  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := firstOf(opts.Domain, os.Getenv("DOMAIN"), DefaultDomain)
	relayAddr := firstOf(opts.RelayAddr, os.Getenv("RELAY_ADDR"), DefaultRelayAddr)
	stunServer := firstOf(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN)
	turnServer := firstOf(opts.TURNServer, os.Getenv("TURN_SERVER"))
	turnUser := firstOf(opts.TURNUser, os.Getenv("TURN_USERNAME"))
	turnPass := firstOf(opts.TURNPass, os.Getenv("TURN_PASSWORD"))

	// An explicit signaling URL (for local relays) beats the domain-derived one.
	signalURL := firstOf(opts.SignalURL, os.Getenv("SIGNAL_URL"),
		fmt.Sprintf("wss://%s%s", domain, signal.DefaultPath))

	return &Config{
		Domain:     domain,
		SignalURL:  signalURL,
		RelayAddr:  relayAddr,
		STUNServer: stunServer,
		TURNServer: turnServer,
		TURNUser:   turnUser,
		TURNPass:   turnPass,
	}, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
