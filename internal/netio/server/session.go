package server

import (
	"time"

	"github.com/google/uuid"

	"zergcity/internal/netio/proto"
)

// ClientConnection is one live transport-level peer, before or after it has
// joined (bound to a PlayerID).
type ClientConnection struct {
	Peer       proto.PeerID
	PlayerID   proto.PlayerID // InvalidPlayerID until Join succeeds
	ConnectedAt time.Time

	LastHeartbeatSent time.Time
	LastHeartbeatAck  time.Time
	MissedHeartbeats  int
	HeartbeatSequence uint32
}

// PlayerSession is the durable identity behind a PlayerID: it survives a
// transport disconnect for SessionGracePeriod so the same player can
// reconnect without losing their slot.
type PlayerSession struct {
	PlayerID proto.PlayerID
	Name     string
	Token    uuid.UUID

	// Peer is InvalidPeerID while the session is disconnected and within
	// its grace period.
	Peer proto.PeerID

	DisconnectedAt time.Time
	connected      bool
}

// tokenBytes returns the session token as the 16 raw bytes that cross the
// wire, never uuid's canonical string form.
func (s *PlayerSession) tokenBytes() proto.SessionToken {
	var t proto.SessionToken
	copy(t[:], s.Token[:])
	return t
}

// newSessionToken draws a fresh 128-bit credential. uuid.NewRandom reads
// from crypto/rand internally, which is what makes a UUID an adequate
// session token stand-in here: any other 16 bytes drawn from crypto/rand
// would do exactly as well, and the pack already depends on this library
// for other identifier needs.
func newSessionToken() (uuid.UUID, error) {
	return uuid.NewRandom()
}

// sessionTable owns the PlayerID allocation and the PlayerID -> session map.
type sessionTable struct {
	maxPlayers int
	byPlayerID map[proto.PlayerID]*PlayerSession
	byToken    map[uuid.UUID]*PlayerSession

	// expiredTokens remembers tokens briefly after their session is reaped,
	// so a late Reconnect can be told SessionExpired instead of the
	// indistinguishable-looking InvalidToken (spec.md §8 Scenario 3).
	expiredTokens map[uuid.UUID]time.Time
}

func newSessionTable(maxPlayers int) *sessionTable {
	return &sessionTable{
		maxPlayers:    maxPlayers,
		byPlayerID:    make(map[proto.PlayerID]*PlayerSession),
		byToken:       make(map[uuid.UUID]*PlayerSession),
		expiredTokens: make(map[uuid.UUID]time.Time),
	}
}

// errServerFull is returned by allocate when every PlayerID slot in
// [1, maxPlayers] is occupied.
var errServerFull = &serverFullError{}

type serverFullError struct{}

func (*serverFullError) Error() string { return "server: no free player slots" }

// allocate assigns the lowest free PlayerID in [1, maxPlayers], per
// spec.md §4.8's allocation rule.
func (t *sessionTable) allocate() (proto.PlayerID, error) {
	for id := proto.PlayerID(1); int(id) <= t.maxPlayers; id++ {
		if _, taken := t.byPlayerID[id]; !taken {
			return id, nil
		}
	}
	return proto.InvalidPlayerID, errServerFull
}

func (t *sessionTable) insert(s *PlayerSession) {
	t.byPlayerID[s.PlayerID] = s
	t.byToken[s.Token] = s
}

func (t *sessionTable) remove(id proto.PlayerID) {
	if s, ok := t.byPlayerID[id]; ok {
		delete(t.byToken, s.Token)
		delete(t.byPlayerID, id)
	}
}

// expire removes id's session like remove, but first records its token in
// expiredTokens so wasRecentlyExpired can later tell a genuinely-expired
// reconnect attempt apart from one presenting a token that never existed.
func (t *sessionTable) expire(id proto.PlayerID, now time.Time) {
	if s, ok := t.byPlayerID[id]; ok {
		t.expiredTokens[s.Token] = now
		delete(t.byToken, s.Token)
		delete(t.byPlayerID, id)
	}
}

// wasRecentlyExpired reports whether tok belonged to a session reaped
// within the last retention window, pruning the entry once it ages out so
// the map doesn't grow without bound.
func (t *sessionTable) wasRecentlyExpired(tok proto.SessionToken, now time.Time, retention time.Duration) bool {
	id, err := uuid.FromBytes(tok[:])
	if err != nil {
		return false
	}
	expiredAt, ok := t.expiredTokens[id]
	if !ok {
		return false
	}
	if now.Sub(expiredAt) > retention {
		delete(t.expiredTokens, id)
		return false
	}
	return true
}

func (t *sessionTable) byPlayer(id proto.PlayerID) (*PlayerSession, bool) {
	s, ok := t.byPlayerID[id]
	return s, ok
}

func (t *sessionTable) byTokenBytes(tok proto.SessionToken) (*PlayerSession, bool) {
	id, err := uuid.FromBytes(tok[:])
	if err != nil {
		return nil, false
	}
	s, ok := t.byToken[id]
	return s, ok
}

// expiredSessions returns every disconnected session whose grace period has
// elapsed as of now, so the caller can free their PlayerID slots.
func (t *sessionTable) expiredSessions(now time.Time, grace time.Duration) []*PlayerSession {
	var expired []*PlayerSession
	for _, s := range t.byPlayerID {
		if !s.connected && now.Sub(s.DisconnectedAt) >= grace {
			expired = append(expired, s)
		}
	}
	return expired
}
