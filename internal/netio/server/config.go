// Package server implements the server-side lifecycle core (C8) and its
// input handler (C9), grounded on
// _examples/original_source/include/sims3000/net/NetworkServer.h and
// InputHandler.h.
package server

import "time"

// Config mirrors NetworkServer.h's ServerConfig, defaults recovered in
// SPEC_FULL.md's SUPPLEMENTED DETAIL section.
type Config struct {
	Port            int
	MaxPlayers      int
	ServerName      string
	TickRate        int
	SessionGracePeriod time.Duration
	HeartbeatInterval  time.Duration
	HeartbeatWarningThreshold    int
	HeartbeatDisconnectThreshold int
}

// DefaultConfig returns NetworkServer.h's exact defaults.
func DefaultConfig() Config {
	return Config{
		Port:                         7777,
		MaxPlayers:                   4,
		ServerName:                   "ZergCity Server",
		TickRate:                     20,
		SessionGracePeriod:           30 * time.Second,
		HeartbeatInterval:            time.Second,
		HeartbeatWarningThreshold:    5,
		HeartbeatDisconnectThreshold: 10,
	}
}
