package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"zergcity/internal/netio/ioworker"
	"zergcity/internal/netio/metrics"
	"zergcity/internal/netio/proto"
	"zergcity/internal/netio/ratelimit"
	"zergcity/internal/netio/snapshot"
	"zergcity/internal/netio/terrain"
	"zergcity/internal/netio/transport"
	"zergcity/internal/netio/validate"
	"zergcity/internal/netio/wire"
)

// TerrainApplier applies a validated TerrainModifyRequest to the embedding
// process's own terrain representation (out of scope for this core per
// spec.md §1) and reports the outcome.
type TerrainApplier func(req proto.TerrainModifyRequest) (newElevation int16, accepted bool, reason proto.RejectionReason)

// chatCap is the flat per-connection chat rate, independent of the
// per-category rate limiter (resolved open question #2 — chat has no
// ActionCategory in RateLimiter.h).
const chatCap = 5 // messages per chatWindow
const chatWindow = 10 * time.Second

type chatState struct {
	sent      int
	windowAt  time.Time
}

// Server implements the server-side lifecycle core (C8): state machine,
// connection/session tables, heartbeat/timeout detection, and message
// routing, grounded on
// _examples/original_source/include/sims3000/net/NetworkServer.h.
type Server struct {
	cfg       Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
	factory   *wire.Factory
	worker    *ioworker.Worker
	validator *validate.Validator
	limiter   *ratelimit.Limiter
	input     *InputHandler
	now       func() time.Time

	snapshotGen      *snapshot.Generator
	snapshotProducer snapshot.Producer

	terrainJournal  *terrain.Journal
	terrainChecksum func() uint32
	terrainApply    TerrainApplier

	mu           sync.Mutex
	state        LifecycleState
	conns        map[proto.PeerID]*ClientConnection
	sessions     *sessionTable
	chat         map[proto.PlayerID]*chatState
	tick         proto.Tick
	snapshotPeer proto.PeerID
}

// New constructs a Server around t. The caller still must call Start to
// bind the transport and begin the lifecycle state machine.
func New(cfg Config, t transport.Transport, logger *zap.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		factory:   proto.NewFactory(),
		worker:    ioworker.New(t, logger),
		validator: validate.New(),
		limiter:   ratelimit.New(ratelimit.DefaultConfig()),
		input:     NewInputHandler(),
		now:       time.Now,
		state:     Initializing,
		conns:     make(map[proto.PeerID]*ClientConnection),
		sessions:  newSessionTable(cfg.MaxPlayers),
		chat:      make(map[proto.PlayerID]*chatState),

		snapshotGen: snapshot.NewGenerator(),
	}
}

// InputHandler exposes the C9 handler so the embedding process can
// register the simulation's validate/apply/rollback callbacks before
// calling Start.
func (s *Server) InputHandler() *InputHandler { return s.input }

// SetSnapshotProducer registers the callback used to produce a consistent
// full-state buffer for C12 snapshot generation. Without one, RequestSnapshot
// always fails.
func (s *Server) SetSnapshotProducer(p snapshot.Producer) { s.snapshotProducer = p }

// SetTerrainJournal wires the C13 terrain modification journal and the
// embedding process's checksum function (the terrain grid representation
// itself is an external collaborator, spec.md §1). Once set, every Join
// triggers a TerrainSyncRequest.
func (s *Server) SetTerrainJournal(j *terrain.Journal, checksum func() uint32) {
	s.terrainJournal = j
	s.terrainChecksum = checksum
}

// SetTerrainApplier registers the callback that applies a validated
// TerrainModifyRequest to the embedding process's terrain representation.
func (s *Server) SetTerrainApplier(a TerrainApplier) { s.terrainApply = a }

func (s *Server) terrainChecksumValue() uint32 {
	if s.terrainChecksum == nil {
		return 0
	}
	return s.terrainChecksum()
}

// RequestSnapshot starts C12 snapshot generation for peer at tick. Only one
// generation may run at a time; callers should check IsSnapshotting first if
// they'd rather queue than receive ErrGenerationInProgress.
func (s *Server) RequestSnapshot(peer proto.PeerID, tick proto.Tick, entityCount uint32) error {
	if s.snapshotProducer == nil {
		return errors.New("server: no snapshot producer configured")
	}
	if err := s.snapshotGen.Start(tick, entityCount, s.snapshotProducer); err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshotPeer = peer
	s.mu.Unlock()
	return nil
}

// IsSnapshotting reports whether a snapshot generation is currently running.
func (s *Server) IsSnapshotting() bool { return s.snapshotGen.IsGenerating() }

// State returns the server's current lifecycle state.
func (s *Server) State() LifecycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// advance transitions the server's lifecycle state, logging the change. It
// is a no-op (returns false) if the transition is not permitted.
func (s *Server) advance(to LifecycleState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !canTransition(s.state, to) {
		return false
	}
	from := s.state
	s.state = to
	s.logger.Info("server: lifecycle transition", zap.String("from", from.String()), zap.String("to", to.String()))
	return true
}

// Start binds the transport and runs the worker and lifecycle up through
// Ready. Run must be called afterward (typically in its own goroutine) to
// actually process messages and reach Running.
func (s *Server) Start(ctx context.Context) error {
	s.advance(Loading)
	go s.worker.Run(ctx)

	if err := s.worker.EnqueueCommand(ioworker.Command{
		Kind: ioworker.CommandStartServer, Port: s.cfg.Port, MaxClients: s.cfg.MaxPlayers,
	}); err != nil {
		return err
	}
	s.advance(Ready)
	return nil
}

// Run processes inbound transport events and periodic bookkeeping
// (heartbeats, session expiry) until ctx is cancelled. The first call
// advances the server into Running.
func (s *Server) Run(ctx context.Context) {
	s.advance(Running)

	heartbeatTicker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.worker.Stop()
			s.worker.Join()
			return
		case <-heartbeatTicker.C:
			s.tickHeartbeats()
			s.reapExpiredSessions()
		default:
		}

		if start, chunks, end, ok := s.snapshotGen.Take(); ok {
			s.flushSnapshot(start, chunks, end)
		}

		if ev, ok := s.worker.PollInbound(); ok {
			s.handleEvent(ev)
		} else {
			time.Sleep(time.Millisecond)
		}
	}
}

// flushSnapshot sends a completed C12 snapshot to the peer that requested
// it as Start, then every Chunk in order, then End.
func (s *Server) flushSnapshot(start proto.SnapshotStart, chunks []proto.SnapshotChunk, end proto.SnapshotEnd) {
	s.mu.Lock()
	peer := s.snapshotPeer
	s.mu.Unlock()

	s.sendTo(peer, &start, transport.Reliable)
	for i := range chunks {
		s.sendTo(peer, &chunks[i], transport.Reliable)
	}
	s.sendTo(peer, &end, transport.Reliable)
}

func (s *Server) handleEvent(ev transport.Event) {
	switch ev.Type {
	case transport.EventConnect:
		s.handleConnect(ev.Peer)
	case transport.EventDisconnect, transport.EventTimeout:
		s.handleDisconnect(ev.Peer)
	case transport.EventReceive:
		s.handleReceive(ev.Peer, ev.Data)
	}
}

func (s *Server) handleConnect(peer proto.PeerID) {
	s.mu.Lock()
	s.conns[peer] = &ClientConnection{Peer: peer, ConnectedAt: s.now()}
	s.mu.Unlock()
	s.logger.Debug("server: peer connected", zap.Uint32("peer", uint32(peer)))
}

func (s *Server) handleDisconnect(peer proto.PeerID) {
	s.mu.Lock()
	conn, ok := s.conns[peer]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.conns, peer)
	playerID := conn.PlayerID
	var session *PlayerSession
	if playerID != proto.InvalidPlayerID {
		session, _ = s.sessions.byPlayer(playerID)
		if session != nil {
			session.connected = false
			session.Peer = proto.InvalidPeerID
			session.DisconnectedAt = s.now()
		}
	}
	s.mu.Unlock()

	if playerID != proto.InvalidPlayerID {
		// Pending actions are not rolled back here: spec.md §8 Scenario 2
		// keeps them present across a disconnect within the grace period.
		// Rollback is deferred to reapExpiredSessions, once the grace
		// period has actually elapsed (Scenario 3).
		s.logger.Info("server: player disconnected, grace period started",
			zap.Uint8("playerId", uint8(playerID)), zap.Duration("grace", s.cfg.SessionGracePeriod))
	}
}

func (s *Server) handleReceive(peer proto.PeerID, data []byte) {
	playerID := s.connPlayerID(peer)
	ctx := validate.Context{Peer: peer, ExpectedPlayerID: playerID, CurrentTimeMs: uint64(s.now().UnixMilli())}

	out := s.validator.ValidateRaw(data, ctx, s.factory)
	if s.metrics != nil && out.Result != validate.Valid {
		s.metrics.ValidationFailures.WithLabelValues(out.Result.String()).Inc()
	}
	if out.Result != validate.Valid {
		return
	}

	_, payloadBytes, msg, err := wire.DecodeEnvelope(data, s.factory)
	if err != nil {
		return
	}

	// Payload validation pass: SafeDeserialize catches a buffer
	// underrun/overflow during unmarshal and confirms the envelope's
	// declared length matches what deserialization actually consumed.
	safeOut := s.validator.SafeDeserialize(msg, payloadBytes, len(payloadBytes))
	if s.metrics != nil && safeOut.Result != validate.Valid {
		s.metrics.ValidationFailures.WithLabelValues(safeOut.Result.String()).Inc()
	}
	if safeOut.Result != validate.Valid {
		return
	}

	if s.metrics != nil {
		s.metrics.MessagesReceived.Inc()
		s.metrics.BytesReceived.Add(float64(len(data)))
	}

	s.dispatch(peer, msg)
}

func (s *Server) connPlayerID(peer proto.PeerID) proto.PlayerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conns[peer]; ok {
		return c.PlayerID
	}
	return proto.InvalidPlayerID
}

func (s *Server) dispatch(peer proto.PeerID, msg wire.Payload) {
	switch p := msg.(type) {
	case *proto.Join:
		s.handleJoin(peer, p)
	case *proto.Reconnect:
		s.handleReconnect(peer, p)
	case *proto.Heartbeat:
		s.handleHeartbeat(peer, p)
	case *proto.Disconnect:
		s.handleDisconnect(peer)
	case *proto.Chat:
		s.handleChat(peer, p)
	case *proto.Input:
		s.handleInput(peer, p)
	case *proto.TerrainSyncVerify:
		s.handleTerrainSyncVerify(peer, p)
	case *proto.TerrainModifyRequest:
		s.handleTerrainModify(peer, p)
	}
}

func (s *Server) handleJoin(peer proto.PeerID, msg *proto.Join) {
	s.mu.Lock()
	if s.state != Running && s.state != Ready {
		s.mu.Unlock()
		s.sendTo(peer, &proto.JoinReject{Reason: proto.KickReasonServerShutdown, Message: "server not ready"}, transport.Reliable)
		return
	}

	playerID, err := s.sessions.allocate()
	if err != nil {
		s.mu.Unlock()
		s.sendTo(peer, &proto.JoinReject{Reason: proto.KickReasonFull, Message: "server full"}, transport.Reliable)
		return
	}

	token, tokenErr := newSessionToken()
	if tokenErr != nil {
		s.mu.Unlock()
		s.sendTo(peer, &proto.JoinReject{Reason: proto.KickReasonInvalidToken, Message: "could not issue session"}, transport.Reliable)
		return
	}

	session := &PlayerSession{PlayerID: playerID, Name: msg.Name, Token: token, Peer: peer, connected: true}
	s.sessions.insert(session)
	conn, ok := s.conns[peer]
	if !ok {
		conn = &ClientConnection{Peer: peer, ConnectedAt: s.now()}
		s.conns[peer] = conn
	}
	conn.PlayerID = playerID
	tick := s.tick
	s.mu.Unlock()

	s.limiter.RegisterPlayer(playerID)
	s.sendTo(peer, &proto.JoinAccept{PlayerID: playerID, ServerTime: uint64(s.now().UnixMilli()), Token: session.tokenBytes(), StartTick: tick}, transport.Reliable)
	if s.terrainJournal != nil {
		req := s.terrainJournal.SyncRequest(s.terrainChecksumValue())
		s.sendTo(peer, &req, transport.Reliable)
	}
	s.broadcastPlayerList()
	s.logger.Info("server: player joined", zap.Uint8("playerId", uint8(playerID)), zap.String("name", msg.Name))
}

// handleReconnect implements the "newer credential wins" rule: presenting a
// valid, still-in-grace token rebinds that session to the presenting peer,
// even if another (stale) connection still claims the same PlayerID.
func (s *Server) handleReconnect(peer proto.PeerID, msg *proto.Reconnect) {
	s.mu.Lock()
	session, ok := s.sessions.byTokenBytes(msg.Token)
	if !ok {
		expired := s.sessions.wasRecentlyExpired(msg.Token, s.now(), expiredTokenRetention(s.cfg.SessionGracePeriod))
		s.mu.Unlock()
		if expired {
			s.sendTo(peer, &proto.JoinReject{Reason: proto.KickReasonSessionExpired, Message: "grace period elapsed"}, transport.Reliable)
			return
		}
		s.sendTo(peer, &proto.JoinReject{Reason: proto.KickReasonInvalidToken, Message: "unknown session"}, transport.Reliable)
		return
	}
	if !session.connected && s.now().Sub(session.DisconnectedAt) > s.cfg.SessionGracePeriod {
		playerID := session.PlayerID
		s.sessions.expire(playerID, s.now())
		s.mu.Unlock()
		s.input.RollbackPlayer(playerID)
		s.sendTo(peer, &proto.JoinReject{Reason: proto.KickReasonSessionExpired, Message: "grace period elapsed"}, transport.Reliable)
		return
	}

	oldPeer := session.Peer
	session.Peer = peer
	session.connected = true
	s.conns[peer] = &ClientConnection{Peer: peer, PlayerID: session.PlayerID, ConnectedAt: s.now()}
	tick := s.tick
	s.mu.Unlock()

	if oldPeer != proto.InvalidPeerID && oldPeer != peer {
		// The stale connection loses: disconnect it outright so it cannot
		// keep acting as this player.
		s.worker.EnqueueCommand(ioworker.Command{Kind: ioworker.CommandDisconnect, Peer: oldPeer})
	}

	s.sendTo(peer, &proto.JoinAccept{PlayerID: session.PlayerID, ServerTime: uint64(s.now().UnixMilli()), Token: session.tokenBytes(), StartTick: tick}, transport.Reliable)
	s.logger.Info("server: player reconnected", zap.Uint8("playerId", uint8(session.PlayerID)))
}

func (s *Server) handleHeartbeat(peer proto.PeerID, msg *proto.Heartbeat) {
	s.mu.Lock()
	conn, ok := s.conns[peer]
	if ok {
		conn.LastHeartbeatAck = s.now()
		conn.MissedHeartbeats = 0
	}
	tick := s.tick
	s.mu.Unlock()
	if !ok {
		return
	}
	s.sendTo(peer, &proto.HeartbeatResponse{Sequence: msg.Sequence, EchoedTimeMs: msg.ClientTimeMs, ServerTick: tick}, transport.Reliable)
}

// handleChat enforces the flat per-connection chat cap rather than the
// per-category token-bucket limiter (resolved open question #2).
func (s *Server) handleChat(peer proto.PeerID, msg *proto.Chat) {
	playerID := s.connPlayerID(peer)
	if playerID == proto.InvalidPlayerID {
		return
	}

	s.mu.Lock()
	cs, ok := s.chat[playerID]
	now := s.now()
	if !ok || now.Sub(cs.windowAt) >= chatWindow {
		cs = &chatState{windowAt: now}
		s.chat[playerID] = cs
	}
	cs.sent++
	allowed := cs.sent <= chatCap
	s.mu.Unlock()

	if !allowed {
		return
	}
	s.broadcast(&proto.Chat{From: playerID, Message: msg.Message}, transport.Reliable)
}

func (s *Server) handleInput(peer proto.PeerID, msg *proto.Input) {
	playerID := s.connPlayerID(peer)
	if playerID == proto.InvalidPlayerID {
		return
	}

	// An Input carries its own PlayerID field; confirm it cannot be spoofed
	// to act on another player's behalf before it ever reaches the rate
	// limiter or the simulation.
	idCheck := s.validator.ValidatePlayerID(msg.PlayerID, validate.Context{ExpectedPlayerID: playerID})
	if idCheck.Result != validate.Valid {
		if s.metrics != nil {
			s.metrics.ValidationFailures.WithLabelValues(idCheck.Result.String()).Inc()
		}
		return
	}

	if s.metrics != nil {
		s.metrics.InputsReceived.Inc()
	}

	result := s.limiter.CheckAction(playerID, msg.Kind)
	if !result.Allowed {
		if s.metrics != nil {
			s.metrics.RateLimitDropped.WithLabelValues(categoryName(msg.Kind.Category())).Inc()
			if result.IsAbuse {
				s.metrics.AbuseEventsTotal.Inc()
			}
		}
		return // silent drop per spec.md §4.6 — no timing signal to abusers
	}

	outcome := s.input.Handle(playerID, *msg, s.now())
	if outcome.Accepted {
		if s.metrics != nil {
			s.metrics.InputsAccepted.Inc()
		}
		s.sendTo(peer, &proto.InputAck{ServerTick: s.tick, Sequence: msg.Sequence, Accepted: true}, transport.Reliable)
		return
	}

	if s.metrics != nil {
		s.metrics.InputsRejected.Inc()
	}
	s.sendTo(peer, &proto.Rejection{Sequence: msg.Sequence, Reason: outcome.Reason}, transport.Reliable)
}

// handleTerrainSyncVerify compares the client's post-replay checksum against
// the server's own and tells it whether it may proceed or must fall back to
// the C12 snapshot path for terrain data.
func (s *Server) handleTerrainSyncVerify(peer proto.PeerID, msg *proto.TerrainSyncVerify) {
	success := msg.Checksum == s.terrainChecksumValue()
	s.sendTo(peer, &proto.TerrainSyncComplete{Success: success}, transport.Reliable)
	if !success {
		s.logger.Warn("server: terrain checksum mismatch", zap.Uint32("peer", uint32(peer)))
	}
}

// handleTerrainModify validates and rate-limits a terrain edit, applies it
// through the embedding process's TerrainApplier, and on success journals it
// and broadcasts a TerrainModifiedEvent to every connected client.
func (s *Server) handleTerrainModify(peer proto.PeerID, msg *proto.TerrainModifyRequest) {
	playerID := s.connPlayerID(peer)
	if playerID == proto.InvalidPlayerID || s.terrainApply == nil || s.terrainJournal == nil {
		return
	}

	// TerrainOp has no ActionCategory of its own; terrain edits share the
	// building bucket.
	result := s.limiter.CheckAction(playerID, proto.InputPlaceBuilding)
	if !result.Allowed {
		return // silent drop per spec.md §4.6
	}

	newElevation, accepted, reason := s.terrainApply(*msg)
	s.sendTo(peer, &proto.TerrainModifyResponse{Sequence: msg.Sequence, Accepted: accepted, Reason: reason}, transport.Reliable)
	if !accepted {
		return
	}

	s.mu.Lock()
	tick := s.tick
	s.mu.Unlock()
	mod := s.terrainJournal.Record(playerID, msg.Operation, msg.Affected, newElevation, tick)
	s.broadcast(&proto.TerrainModifiedEvent{Modification: mod}, transport.Reliable)
}

func categoryName(c proto.ActionCategory) string {
	switch c {
	case proto.CategoryBuilding:
		return "building"
	case proto.CategoryZoning:
		return "zoning"
	case proto.CategoryInfrastructure:
		return "infrastructure"
	case proto.CategoryEconomy:
		return "economy"
	default:
		return "game_control"
	}
}

// tickHeartbeats sends a heartbeat to every connection due for one and
// disconnects any that has missed HeartbeatDisconnectThreshold in a row,
// logging a warning once HeartbeatWarningThreshold is crossed.
func (s *Server) tickHeartbeats() {
	s.mu.Lock()
	due := make([]*ClientConnection, 0, len(s.conns))
	for _, c := range s.conns {
		due = append(due, c)
	}
	s.mu.Unlock()

	now := s.now()
	for _, c := range due {
		s.mu.Lock()
		c.MissedHeartbeats++
		c.HeartbeatSequence++
		seq := c.HeartbeatSequence
		missed := c.MissedHeartbeats
		peer := c.Peer
		s.mu.Unlock()

		if missed >= s.cfg.HeartbeatDisconnectThreshold {
			s.logger.Warn("server: disconnecting unresponsive peer", zap.Uint32("peer", uint32(peer)))
			s.worker.EnqueueCommand(ioworker.Command{Kind: ioworker.CommandDisconnect, Peer: peer})
			continue
		}
		if missed == s.cfg.HeartbeatWarningThreshold {
			s.logger.Warn("server: peer missed heartbeats", zap.Uint32("peer", uint32(peer)), zap.Int("missed", missed))
		}
		s.sendTo(peer, &proto.Heartbeat{Sequence: seq, ClientTimeMs: uint64(now.UnixMilli())}, transport.Reliable)
	}
}

// expiredTokenRetention bounds how long a reaped session's token is
// remembered purely to distinguish a late Reconnect (KickReasonSessionExpired)
// from one presenting a token that never existed (KickReasonInvalidToken).
func expiredTokenRetention(grace time.Duration) time.Duration {
	return 10 * grace
}

// reapExpiredSessions frees PlayerID slots whose disconnect grace period
// has elapsed, rolling back each player's pending actions at the moment
// their session actually expires (spec.md §8 Scenario 3), not at the
// moment of transport disconnect.
func (s *Server) reapExpiredSessions() {
	s.mu.Lock()
	expired := s.sessions.expiredSessions(s.now(), s.cfg.SessionGracePeriod)
	for _, sess := range expired {
		s.sessions.expire(sess.PlayerID, s.now())
	}
	s.mu.Unlock()

	for _, sess := range expired {
		s.input.RollbackPlayer(sess.PlayerID)
		s.limiter.UnregisterPlayer(sess.PlayerID)
		s.logger.Info("server: session expired, pending actions rolled back, slot freed",
			zap.Uint8("playerId", uint8(sess.PlayerID)))
	}
	if len(expired) > 0 {
		s.broadcastPlayerList()
	}
}

func (s *Server) broadcastPlayerList() {
	s.mu.Lock()
	entries := make([]proto.PlayerEntry, 0, len(s.sessions.byPlayerID))
	for _, sess := range s.sessions.byPlayerID {
		status := uint8(0)
		if sess.connected {
			status = 1
		}
		entries = append(entries, proto.PlayerEntry{PlayerID: sess.PlayerID, Name: sess.Name, Status: status})
	}
	s.mu.Unlock()
	s.broadcast(&proto.PlayerList{Players: entries}, transport.Reliable)
}

// Kick disconnects peer after notifying it why.
func (s *Server) Kick(peer proto.PeerID, reason proto.KickReason, message string) {
	s.sendTo(peer, &proto.Kick{Reason: reason, Message: message}, transport.Reliable)
	s.worker.EnqueueCommand(ioworker.Command{Kind: ioworker.CommandDisconnect, Peer: peer})
}

// sendTo encodes and enqueues payload for delivery to peer.
func (s *Server) sendTo(peer proto.PeerID, p wire.Payload, ch transport.Channel) {
	data := wire.Encode(p)
	if err := s.worker.EnqueueOutbound(ioworker.OutboundMessage{Peer: peer, Data: data, Channel: ch}); err != nil {
		s.logger.Debug("server: outbound queue full, dropping", zap.Uint32("peer", uint32(peer)))
		return
	}
	if s.metrics != nil {
		s.metrics.MessagesSent.Inc()
		s.metrics.BytesSent.Add(float64(len(data)))
	}
}

// broadcast encodes payload once and enqueues it for delivery to every
// connected peer.
func (s *Server) broadcast(p wire.Payload, ch transport.Channel) {
	data := wire.Encode(p)
	if err := s.worker.EnqueueOutbound(ioworker.OutboundMessage{Data: data, Channel: ch, Broadcast: true}); err != nil {
		s.logger.Debug("server: outbound queue full, dropping broadcast")
		return
	}
	if s.metrics != nil {
		s.metrics.MessagesSent.Inc()
		s.metrics.BytesSent.Add(float64(len(data)))
	}
}

// PlayerCount returns the number of currently bound (not necessarily
// connected — may be within grace period) sessions.
func (s *Server) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions.byPlayerID)
}

// AdvanceTick bumps the server's simulation tick counter, called by the
// embedding process's own tick loop (outside this core's scope).
func (s *Server) AdvanceTick() proto.Tick {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick++
	return s.tick
}
