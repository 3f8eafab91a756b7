// Package client implements the client-side connection core (C10),
// grounded on
// _examples/original_source/include/sims3000/net/NetworkClient.h.
package client

import "time"

// Config mirrors NetworkClient.h's ConnectionConfig, defaults recovered in
// SPEC_FULL.md's SUPPLEMENTED DETAIL section.
type Config struct {
	InitialReconnectDelay time.Duration
	MaxReconnectDelay     time.Duration
	HeartbeatInterval     time.Duration
	TimeoutIndicator      time.Duration
	TimeoutBanner         time.Duration
	TimeoutFullUI         time.Duration
	ConnectTimeout        time.Duration
	// PlayerName is presented on Join. Not part of NetworkClient.h's
	// ConnectionConfig (which has no identity field); added so the
	// embedding process doesn't have to reach into Client internals.
	PlayerName string

	// PendingActionTimeout is how long a tracked Input may sit in Pending
	// before updatePendingActions moves it to TimedOut, per spec.md §5's "Cancellation
	// and timeouts" default of 5s.
	PendingActionTimeout time.Duration
	// PendingActionRetention is how long a Resolved entry (Confirmed,
	// Rejected, or TimedOut) is kept around for PollRejection/inspection
	// before updatePendingActions evicts it. spec.md:140 requires eviction
	// but leaves the window itself unspecified; the default is equal to
	// PendingActionTimeout, since there is no other signal in spec.md to
	// size it by.
	PendingActionRetention time.Duration
}

// DefaultConfig returns NetworkClient.h's exact defaults.
func DefaultConfig() Config {
	return Config{
		InitialReconnectDelay:  2 * time.Second,
		MaxReconnectDelay:      30 * time.Second,
		HeartbeatInterval:      time.Second,
		TimeoutIndicator:       2 * time.Second,
		TimeoutBanner:          5 * time.Second,
		TimeoutFullUI:          15 * time.Second,
		ConnectTimeout:         10 * time.Second,
		PlayerName:             "player",
		PendingActionTimeout:   5 * time.Second,
		PendingActionRetention: 5 * time.Second,
	}
}
