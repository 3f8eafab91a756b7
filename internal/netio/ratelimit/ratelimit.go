// Package ratelimit implements the per-player, per-category token-bucket
// rate limiter (C6), grounded on
// _examples/original_source/include/sims3000/net/RateLimiter.h.
package ratelimit

import (
	"sync"
	"time"

	"zergcity/internal/netio/proto"
)

const numCategories = 5

// categoryIndex maps an ActionCategory to its slot in the fixed-size bucket
// array, mirroring the original source's `buckets[5]`.
func categoryIndex(c proto.ActionCategory) int { return int(c) }

// TokenBucket refills continuously and is consumed one token per action.
type TokenBucket struct {
	Tokens       float64
	MaxTokens    float64
	RefillPerSec float64
	lastRefill   time.Time
}

func newBucket(rate, burst float64, now time.Time) TokenBucket {
	return TokenBucket{Tokens: burst, MaxTokens: burst, RefillPerSec: rate, lastRefill: now}
}

func (b *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.Tokens += elapsed * b.RefillPerSec
	if b.Tokens > b.MaxTokens {
		b.Tokens = b.MaxTokens
	}
	b.lastRefill = now
}

func (b *TokenBucket) tryConsume(now time.Time) bool {
	b.refill(now)
	if b.Tokens < 1 {
		return false
	}
	b.Tokens--
	return true
}

// CategoryConfig is one category's rate/burst pair.
type CategoryConfig struct {
	RatePerSecond float64
	Burst         float64
}

// Config holds the per-category defaults and the global abuse threshold.
// Defaults match RateLimiter.h exactly.
type Config struct {
	Categories     [numCategories]CategoryConfig
	AbuseThreshold int
}

// DefaultConfig returns the exact defaults recovered from the original
// source: building 10/15, zoning 20/30 (drag-painting allowance),
// infrastructure 15/20, economy 5/10, game-control 5/10, abuse threshold
// 100 actions/second.
func DefaultConfig() Config {
	var cfg Config
	cfg.Categories[proto.CategoryBuilding] = CategoryConfig{RatePerSecond: 10, Burst: 15}
	cfg.Categories[proto.CategoryZoning] = CategoryConfig{RatePerSecond: 20, Burst: 30}
	cfg.Categories[proto.CategoryInfrastructure] = CategoryConfig{RatePerSecond: 15, Burst: 20}
	cfg.Categories[proto.CategoryEconomy] = CategoryConfig{RatePerSecond: 5, Burst: 10}
	cfg.Categories[proto.CategoryGameControl] = CategoryConfig{RatePerSecond: 5, Burst: 10}
	cfg.AbuseThreshold = 100
	return cfg
}

// playerState is one player's full rate-limit state: one bucket per
// category plus the rolling abuse-detection window.
type playerState struct {
	buckets         [numCategories]TokenBucket
	actionsThisSec  int
	secondStart     time.Time
	totalDropped    uint64
	abuseEventCount uint64
}

func newPlayerState(cfg Config, now time.Time) *playerState {
	ps := &playerState{secondStart: now}
	for i, c := range cfg.Categories {
		ps.buckets[i] = newBucket(c.RatePerSecond, c.Burst, now)
	}
	return ps
}

func (p *playerState) updateAbuseDetection(now time.Time, threshold int) bool {
	if now.Sub(p.secondStart) >= time.Second {
		p.secondStart = now
		p.actionsThisSec = 0
	}
	p.actionsThisSec++
	if p.actionsThisSec > threshold {
		p.abuseEventCount++
		return true
	}
	return false
}

// CheckResult reports the outcome of one rate-limit check.
type CheckResult struct {
	Allowed      bool
	IsAbuse      bool
	TotalDropped uint64
}

// Limiter tracks per-player rate-limit state. It is not safe to share
// across goroutines without the embedded mutex, since the server's main
// context is the sole owner per spec.md §5 — the mutex here is defensive,
// not part of the concurrency contract.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	players map[proto.PlayerID]*playerState
	now     func() time.Time

	totalDroppedGlobal uint64
	totalAbuseGlobal   uint64
}

// New returns a Limiter configured with cfg.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg,
		players: make(map[proto.PlayerID]*playerState),
		now:     time.Now,
	}
}

// RegisterPlayer initializes rate-limit state for a newly joined player.
func (l *Limiter) RegisterPlayer(id proto.PlayerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.players[id] = newPlayerState(l.cfg, l.now())
}

// UnregisterPlayer discards a player's rate-limit state on disconnect.
func (l *Limiter) UnregisterPlayer(id proto.PlayerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.players, id)
}

// ResetPlayer restores a player's buckets to full and clears its abuse
// window, without discarding registration.
func (l *Limiter) ResetPlayer(id proto.PlayerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.players[id]; ok {
		l.players[id] = newPlayerState(l.cfg, l.now())
	}
}

// CheckAction consumes one token from the category bucket for kind's
// category. If the bucket is empty the action is refused — per spec.md
// §4.6, this is always a silent drop; no rejection is ever sent for it, so
// abusers get no timing signal.
func (l *Limiter) CheckAction(id proto.PlayerID, kind proto.InputKind) CheckResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	ps, ok := l.players[id]
	if !ok {
		ps = newPlayerState(l.cfg, l.now())
		l.players[id] = ps
	}

	now := l.now()
	isAbuse := ps.updateAbuseDetection(now, l.cfg.AbuseThreshold)
	if isAbuse {
		l.totalAbuseGlobal++
	}

	idx := categoryIndex(kind.Category())
	allowed := ps.buckets[idx].tryConsume(now)
	if !allowed {
		ps.totalDropped++
		l.totalDroppedGlobal++
	}

	return CheckResult{Allowed: allowed, IsAbuse: isAbuse, TotalDropped: ps.totalDropped}
}

// GetPlayerState returns a snapshot of a player's dropped/abuse counters.
// The bool is false if the player is not registered.
func (l *Limiter) GetPlayerState(id proto.PlayerID) (dropped, abuseEvents uint64, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ps, exists := l.players[id]
	if !exists {
		return 0, 0, false
	}
	return ps.totalDropped, ps.abuseEventCount, true
}

// GetTotalDropped returns the process-wide count of silently dropped actions.
func (l *Limiter) GetTotalDropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalDroppedGlobal
}

// GetTotalAbuseEvents returns the process-wide count of abuse-threshold
// crossings.
func (l *Limiter) GetTotalAbuseEvents() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalAbuseGlobal
}

// Config returns the limiter's configuration.
func (l *Limiter) Config() Config { return l.cfg }
