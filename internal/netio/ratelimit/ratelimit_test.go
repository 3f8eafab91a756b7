package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zergcity/internal/netio/proto"
)

// fakeClock lets tests advance time deterministically instead of sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg Config) (*Limiter, *fakeClock) {
	l := New(cfg)
	clock := &fakeClock{t: time.Unix(0, 0)}
	l.now = clock.now
	return l, clock
}

func TestBurstThenRateWindow(t *testing.T) {
	// Property from spec.md §8: starting full, the max number of
	// consecutive consume() calls allowed within a 1s window is
	// floor(burst) + floor(rate) - 1, within rounding.
	cfg := DefaultConfig()
	l, clock := newTestLimiter(cfg)
	l.RegisterPlayer(1)

	rate := cfg.Categories[proto.CategoryBuilding].RatePerSecond
	burst := cfg.Categories[proto.CategoryBuilding].Burst

	allowed := 0
	for i := 0; i < 1000; i++ {
		res := l.CheckAction(1, proto.InputPlaceBuilding)
		if res.Allowed {
			allowed++
		}
		clock.advance(time.Millisecond)
		if clock.t.Sub(time.Unix(0, 0)) > time.Second {
			break
		}
	}

	maxExpected := int(burst) + int(rate)
	require.LessOrEqual(t, allowed, maxExpected)
	require.GreaterOrEqual(t, allowed, int(burst))
}

func TestRateLimitDropsExcessSilently(t *testing.T) {
	// Scenario 4: 50 Input{PlaceBuilding} within 1s, bucket rate=10 burst=15.
	cfg := DefaultConfig()
	l, _ := newTestLimiter(cfg)
	l.RegisterPlayer(1)

	accepted, dropped := 0, 0
	for i := 0; i < 50; i++ {
		res := l.CheckAction(1, proto.InputPlaceBuilding)
		if res.Allowed {
			accepted++
		} else {
			dropped++
		}
	}

	require.Equal(t, 15, accepted)
	require.Equal(t, 35, dropped)

	total, _, ok := l.GetPlayerState(1)
	require.True(t, ok)
	require.EqualValues(t, 35, total)
	require.EqualValues(t, 35, l.GetTotalDropped())
}

func TestRefillOverTimeRestoresTokens(t *testing.T) {
	cfg := DefaultConfig()
	l, clock := newTestLimiter(cfg)
	l.RegisterPlayer(1)

	for i := 0; i < 15; i++ {
		require.True(t, l.CheckAction(1, proto.InputPlaceBuilding).Allowed)
	}
	require.False(t, l.CheckAction(1, proto.InputPlaceBuilding).Allowed)

	clock.advance(time.Second) // building refills at 10/s
	res := l.CheckAction(1, proto.InputPlaceBuilding)
	require.True(t, res.Allowed)
}

func TestAbuseThresholdRecordsEventButDoesNotBlock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AbuseThreshold = 3
	l, _ := newTestLimiter(cfg)
	l.RegisterPlayer(1)

	var sawAbuse bool
	for i := 0; i < 10; i++ {
		res := l.CheckAction(1, proto.InputPlaceBuilding)
		if res.IsAbuse {
			sawAbuse = true
		}
	}
	require.True(t, sawAbuse)
	require.Greater(t, l.GetTotalAbuseEvents(), uint64(0))
}

func TestUnregisterClearsState(t *testing.T) {
	l, _ := newTestLimiter(DefaultConfig())
	l.RegisterPlayer(1)
	l.CheckAction(1, proto.InputPlaceBuilding)
	l.UnregisterPlayer(1)

	_, _, ok := l.GetPlayerState(1)
	require.False(t, ok)
}

func TestCheckActionAutoRegistersUnknownPlayer(t *testing.T) {
	l, _ := newTestLimiter(DefaultConfig())
	res := l.CheckAction(42, proto.InputZone)
	require.True(t, res.Allowed)
}
