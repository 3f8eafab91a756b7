package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"zergcity/internal/netio/ioworker"
	"zergcity/internal/netio/metrics"
	"zergcity/internal/netio/proto"
	"zergcity/internal/netio/snapshot"
	deltasync "zergcity/internal/netio/sync"
	"zergcity/internal/netio/terrain"
	"zergcity/internal/netio/transport"
	"zergcity/internal/netio/validate"
	"zergcity/internal/netio/wire"
)

// pendingInput is one Input this client has sent, tracked from the moment
// it is sent through to its resolution, per spec.md:140's pending-action
// tracker: state moves Pending -> {Confirmed, Rejected} on a matching
// InputAck/Rejection, or Pending -> TimedOut if updatePendingActions finds it still
// unresolved after PendingActionTimeout.
type pendingInput struct {
	input            proto.Input
	state            PendingActionState
	rejectionReason  proto.RejectionReason
	rejectionMessage string
	sentTime         time.Time
	resolvedTime     time.Time
}

func (p *pendingInput) resolve(state PendingActionState, now time.Time) {
	p.state = state
	p.resolvedTime = now
}

// RejectionFeedback is delivered to the embedding UI/process when the
// server refuses a previously sent Input, per spec.md:140.
type RejectionFeedback struct {
	Input        proto.Input
	Reason       proto.RejectionReason
	Message      string
	Timestamp    time.Time
	Acknowledged bool
}

// Client implements the client-side connection core (C10): state machine,
// reconnect backoff, RTT tracking, timeout-level derivation, and
// input/state queues, grounded on
// _examples/original_source/include/sims3000/net/NetworkClient.h.
type Client struct {
	cfg       Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
	factory   *wire.Factory
	worker    *ioworker.Worker
	validator *validate.Validator
	now       func() time.Time

	serverAddress string
	serverPort    int

	mu               sync.Mutex
	state            ConnectionState
	serverPeer       proto.PeerID
	playerID         proto.PlayerID
	token            proto.SessionToken
	hasToken         bool
	reconnectDelay   time.Duration
	lastReconnectAt  time.Time

	lastSendAt    time.Time
	lastRecvAt    time.Time
	smoothedRTT   time.Duration
	heartbeatSeq  uint32
	outSequence   uint32

	pendingInputs []*pendingInput          // by position: insertion order
	pendingBySeq  map[uint32]*pendingInput // by sequence: O(1) ack/reject lookup
	stateUpdates  []proto.StateUpdate
	rejections    []RejectionFeedback
	applier       *deltasync.Applier

	snapshotRecv  *snapshot.Receiver
	snapshotApply func(raw []byte)

	terrainRecv     *terrain.Receiver
	terrainGenerate terrain.Generate
	terrainApply    terrain.Apply
	terrainChecksum terrain.Checksum

	playerList []proto.PlayerEntry
}

// New constructs a Client around t (not yet connected).
func New(cfg Config, t transport.Transport, logger *zap.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:            cfg,
		logger:         logger,
		metrics:        m,
		factory:        proto.NewFactory(),
		worker:         ioworker.New(t, logger),
		validator:      validate.New(),
		now:            time.Now,
		state:          Disconnected,
		reconnectDelay: cfg.InitialReconnectDelay,
		pendingBySeq:   make(map[uint32]*pendingInput),
	}
}

// SetApplier installs the C11 delta applier used to apply incoming
// StateUpdate messages. Optional — if unset, StateUpdates are only queued
// via PollStateUpdate.
func (c *Client) SetApplier(a *deltasync.Applier) { c.applier = a }

// SetSnapshotApplier installs the C12 snapshot receiver and the callback
// that applies a fully reassembled full-state buffer to the embedding
// process's own state. Optional — without it, SnapshotStart/Chunk/End
// messages are ignored.
func (c *Client) SetSnapshotApplier(apply func(raw []byte)) {
	c.snapshotRecv = snapshot.NewReceiver()
	c.snapshotApply = apply
}

// SetTerrainSync installs the C13 terrain receiver and the embedding
// process's generate/apply/checksum callbacks (the terrain representation
// itself is an external collaborator, spec.md §1). Optional — without it,
// terrain sync messages are ignored.
func (c *Client) SetTerrainSync(generate terrain.Generate, apply terrain.Apply, checksum terrain.Checksum) {
	c.terrainRecv = terrain.NewReceiver()
	c.terrainGenerate = generate
	c.terrainApply = apply
	c.terrainChecksum = checksum
}

// TerrainState reports the current C13 handshake state, or terrain.StatePending
// if SetTerrainSync was never called.
func (c *Client) TerrainState() terrain.State {
	if c.terrainRecv == nil {
		return terrain.StatePending
	}
	return c.terrainRecv.State()
}

// State returns the client's current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(to ConnectionState) {
	c.mu.Lock()
	from := c.state
	if !canTransition(from, to) {
		c.mu.Unlock()
		return
	}
	c.state = to
	c.mu.Unlock()
	c.logger.Info("client: state transition", zap.String("from", from.String()), zap.String("to", to.String()))
}

// Connect begins connecting to address:port. The caller must also start
// Run in its own goroutine to drive the connection forward.
func (c *Client) Connect(ctx context.Context, address string, port int) error {
	c.serverAddress, c.serverPort = address, port
	c.setState(Connecting)
	go c.worker.Run(ctx)
	return c.worker.EnqueueCommand(ioworker.Command{Kind: ioworker.CommandConnect, Address: address, Port: port})
}

// Run processes inbound transport events and periodic bookkeeping
// (heartbeat send, timeout-level recompute, reconnect backoff) until ctx is
// cancelled.
func (c *Client) Run(ctx context.Context) {
	heartbeatTicker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.worker.Stop()
			c.worker.Join()
			return
		case <-heartbeatTicker.C:
			c.sendHeartbeat()
			c.maybeReconnect()
			c.updatePendingActions()
		default:
		}

		if ev, ok := c.worker.PollInbound(); ok {
			c.handleEvent(ev)
		} else {
			time.Sleep(time.Millisecond)
		}
	}
}

func (c *Client) handleEvent(ev transport.Event) {
	switch ev.Type {
	case transport.EventConnect:
		c.mu.Lock()
		c.serverPeer = ev.Peer
		c.mu.Unlock()
		c.setState(Connected)
		c.sendJoinOrReconnect()
	case transport.EventDisconnect, transport.EventTimeout:
		c.handleLostConnection()
	case transport.EventReceive:
		c.lastRecvAt = c.now()
		c.handleReceive(ev.Data)
	}
}

func (c *Client) sendJoinOrReconnect() {
	c.mu.Lock()
	hasToken := c.hasToken
	token := c.token
	c.mu.Unlock()

	if hasToken {
		c.send(&proto.Reconnect{Token: token}, transport.Reliable)
	} else {
		c.send(&proto.Join{Name: c.cfg.PlayerName}, transport.Reliable)
	}
}

func (c *Client) handleLostConnection() {
	st := c.State()
	if st == Disconnected {
		return
	}
	c.setState(Reconnecting)
	c.mu.Lock()
	c.lastReconnectAt = c.now()
	c.mu.Unlock()
}

// maybeReconnect fires a reconnect attempt once the exponential backoff
// delay has elapsed, doubling the delay up to MaxReconnectDelay each try.
func (c *Client) maybeReconnect() {
	if c.State() != Reconnecting {
		return
	}
	c.mu.Lock()
	due := c.now().Sub(c.lastReconnectAt) >= c.reconnectDelay
	if due {
		c.lastReconnectAt = c.now()
		c.reconnectDelay *= 2
		if c.reconnectDelay > c.cfg.MaxReconnectDelay {
			c.reconnectDelay = c.cfg.MaxReconnectDelay
		}
	}
	c.mu.Unlock()
	if !due {
		return
	}
	c.logger.Info("client: attempting reconnect")
	_ = c.worker.EnqueueCommand(ioworker.Command{Kind: ioworker.CommandConnect, Address: c.serverAddress, Port: c.serverPort})
}

func (c *Client) handleReceive(data []byte) {
	c.mu.Lock()
	peer := c.serverPeer
	c.mu.Unlock()
	ctx := validate.Context{Peer: peer, CurrentTimeMs: uint64(c.now().UnixMilli())}

	out := c.validator.ValidateRaw(data, ctx, c.factory)
	if c.metrics != nil && out.Result != validate.Valid {
		c.metrics.ValidationFailures.WithLabelValues(out.Result.String()).Inc()
	}
	if out.Result != validate.Valid {
		return
	}

	_, payloadBytes, msg, err := wire.DecodeEnvelope(data, c.factory)
	if err != nil {
		return
	}

	// Payload validation pass: SafeDeserialize catches a buffer
	// underrun/overflow during unmarshal and confirms the envelope's
	// declared length matches what deserialization actually consumed.
	safeOut := c.validator.SafeDeserialize(msg, payloadBytes, len(payloadBytes))
	if c.metrics != nil && safeOut.Result != validate.Valid {
		c.metrics.ValidationFailures.WithLabelValues(safeOut.Result.String()).Inc()
	}
	if safeOut.Result != validate.Valid {
		return
	}

	if c.metrics != nil {
		c.metrics.MessagesReceived.Inc()
	}

	switch p := msg.(type) {
	case *proto.JoinAccept:
		c.mu.Lock()
		c.playerID = p.PlayerID
		c.token = p.Token
		c.hasToken = true
		c.reconnectDelay = c.cfg.InitialReconnectDelay
		c.mu.Unlock()
		c.setState(Playing)
	case *proto.JoinReject:
		c.setState(Disconnected)
	case *proto.HeartbeatResponse:
		c.recordRTTSample(p)
	case *proto.StateUpdate:
		if c.snapshotRecv != nil && c.snapshotRecv.IsReceiving() {
			if err := c.snapshotRecv.BufferDelta(*p); err != nil {
				c.logger.Warn("client: delta buffer full mid-snapshot, will need a fresh snapshot")
			}
			break
		}
		c.mu.Lock()
		c.stateUpdates = append(c.stateUpdates, *p)
		c.mu.Unlock()
		if c.applier != nil {
			c.applier.ApplyDelta(*p)
		}
	case *proto.InputAck:
		c.confirmInput(p.Sequence)
	case *proto.Rejection:
		c.rejectInput(p)
	case *proto.PlayerList:
		c.mu.Lock()
		c.playerList = p.Players
		c.mu.Unlock()
	case *proto.Kick:
		c.setState(Disconnected)
	case *proto.SnapshotStart:
		if c.snapshotRecv != nil {
			c.snapshotRecv.HandleStart(*p)
		}
	case *proto.SnapshotChunk:
		if c.snapshotRecv != nil {
			c.snapshotRecv.HandleChunk(*p)
		}
	case *proto.SnapshotEnd:
		if c.snapshotRecv != nil {
			c.handleSnapshotEnd(*p)
		}
	case *proto.TerrainSyncRequest:
		if c.terrainRecv != nil {
			verify := c.terrainRecv.HandleSyncRequest(*p, c.terrainGenerate, c.terrainApply, c.terrainChecksum)
			c.send(&verify, transport.Reliable)
		}
	case *proto.TerrainSyncComplete:
		if c.terrainRecv != nil {
			c.terrainRecv.HandleSyncComplete(*p)
		}
	case *proto.TerrainModifiedEvent:
		if c.terrainRecv != nil {
			c.terrainRecv.HandleLiveEvent(*p, c.terrainApply)
		}
	}
}

// handleSnapshotEnd finishes a C12 transfer: applies the reassembled buffer
// and replays every StateUpdate that was buffered mid-transfer and is newer
// than the snapshot's own tick.
func (c *Client) handleSnapshotEnd(msg proto.SnapshotEnd) {
	raw, err := c.snapshotRecv.HandleEnd(msg)
	if err != nil {
		c.logger.Warn("client: snapshot transfer failed", zap.Error(err))
		return
	}
	if c.snapshotApply != nil {
		c.snapshotApply(raw)
	}
	for _, d := range c.snapshotRecv.DrainBufferedDeltas() {
		c.mu.Lock()
		c.stateUpdates = append(c.stateUpdates, d)
		c.mu.Unlock()
		if c.applier != nil {
			c.applier.ApplyDelta(d)
		}
	}
}

func (c *Client) recordRTTSample(p *proto.HeartbeatResponse) {
	sample := time.Duration(uint64(c.now().UnixMilli())-p.EchoedTimeMs) * time.Millisecond
	if sample < 0 {
		return
	}
	c.mu.Lock()
	if c.smoothedRTT == 0 {
		c.smoothedRTT = sample
	} else {
		// EWMA with ~1/8 weight, the standard TCP-style smoothing factor.
		c.smoothedRTT += (sample - c.smoothedRTT) / 8
	}
	rtt := c.smoothedRTT
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.SmoothedRTTMillis.Set(float64(rtt.Milliseconds()))
	}
}

// TimeoutLevel derives the current UI escalation level from how long it has
// been since the last inbound traffic.
func (c *Client) TimeoutLevel() TimeoutLevel {
	c.mu.Lock()
	last := c.lastRecvAt
	c.mu.Unlock()
	if last.IsZero() {
		return TimeoutNone
	}
	age := c.now().Sub(last)
	switch {
	case age >= c.cfg.TimeoutFullUI:
		return TimeoutFullUI
	case age >= c.cfg.TimeoutBanner:
		return TimeoutBanner
	case age >= c.cfg.TimeoutIndicator:
		return TimeoutIndicator
	default:
		return TimeoutNone
	}
}

func (c *Client) sendHeartbeat() {
	if c.State() != Playing && c.State() != Connected {
		return
	}
	c.mu.Lock()
	c.heartbeatSeq++
	seq := c.heartbeatSeq
	c.mu.Unlock()
	c.send(&proto.Heartbeat{Sequence: seq, ClientTimeMs: uint64(c.now().UnixMilli())}, transport.Reliable)
}

// SendInput transmits in with the next local sequence number and tracks it
// (track-action, per spec.md:140) as Pending until an InputAck, Rejection,
// or updatePendingActions-driven timeout resolves it.
func (c *Client) SendInput(in proto.Input) {
	c.mu.Lock()
	c.outSequence++
	in.Sequence = c.outSequence
	in.PlayerID = c.playerID
	p := &pendingInput{input: in, state: ActionPending, sentTime: c.now()}
	c.pendingInputs = append(c.pendingInputs, p)
	c.pendingBySeq[in.Sequence] = p
	c.mu.Unlock()
	c.send(&in, transport.Reliable)
}

func (c *Client) confirmInput(sequence uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pendingBySeq[sequence]
	if !ok || p.state != ActionPending {
		return
	}
	p.resolve(ActionConfirmed, c.now())
}

func (c *Client) rejectInput(r *proto.Rejection) {
	c.mu.Lock()
	p, ok := c.pendingBySeq[r.Sequence]
	if !ok || p.state != ActionPending {
		c.mu.Unlock()
		return
	}
	now := c.now()
	p.rejectionReason = r.Reason
	p.rejectionMessage = r.Message
	p.resolve(ActionRejected, now)
	feedback := RejectionFeedback{
		Input:     p.input,
		Reason:    r.Reason,
		Message:   r.Message,
		Timestamp: now,
	}
	c.rejections = append(c.rejections, feedback)
	c.mu.Unlock()
}

// updatePendingActions is the periodic `update` spec.md:140 describes: it
// moves entries still Pending past PendingActionTimeout to TimedOut, then
// evicts Resolved entries whose resolvedTime is older than
// PendingActionRetention.
func (c *Client) updatePendingActions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	for _, p := range c.pendingInputs {
		if p.state == ActionPending && now.Sub(p.sentTime) > c.cfg.PendingActionTimeout {
			p.resolve(ActionTimedOut, now)
		}
	}

	kept := c.pendingInputs[:0]
	for _, p := range c.pendingInputs {
		if p.state.resolved() && now.Sub(p.resolvedTime) > c.cfg.PendingActionRetention {
			delete(c.pendingBySeq, p.input.Sequence)
			continue
		}
		kept = append(kept, p)
	}
	c.pendingInputs = kept
}

// PendingInputCount reports how many sent Inputs are still Pending (not
// yet confirmed, rejected, or timed out).
func (c *Client) PendingInputCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, p := range c.pendingInputs {
		if p.state == ActionPending {
			n++
		}
	}
	return n
}

// PollRejection returns and removes the oldest unacknowledged rejection,
// marking it acknowledged as it is handed to the caller. Returns false if
// none is queued.
func (c *Client) PollRejection() (RejectionFeedback, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rejections) == 0 {
		return RejectionFeedback{}, false
	}
	r := c.rejections[0]
	c.rejections = c.rejections[1:]
	r.Acknowledged = true
	return r, true
}

// PollStateUpdate returns and removes the oldest unread StateUpdate.
func (c *Client) PollStateUpdate() (proto.StateUpdate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.stateUpdates) == 0 {
		return proto.StateUpdate{}, false
	}
	u := c.stateUpdates[0]
	c.stateUpdates = c.stateUpdates[1:]
	return u, true
}

// PlayerList returns the most recently received roster.
func (c *Client) PlayerList() []proto.PlayerEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]proto.PlayerEntry(nil), c.playerList...)
}

// SmoothedRTT returns the current EWMA round-trip-time estimate.
func (c *Client) SmoothedRTT() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.smoothedRTT
}

// PlayerID returns the locally assigned PlayerID, or InvalidPlayerID before
// a JoinAccept has been received.
func (c *Client) PlayerID() proto.PlayerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

func (c *Client) send(p wire.Payload, ch transport.Channel) {
	c.mu.Lock()
	peer := c.serverPeer
	c.mu.Unlock()
	data := wire.Encode(p)
	if err := c.worker.EnqueueOutbound(ioworker.OutboundMessage{Peer: peer, Data: data, Channel: ch}); err != nil {
		c.logger.Debug("client: outbound queue full, dropping")
		return
	}
	c.lastSendAt = c.now()
	if c.metrics != nil {
		c.metrics.MessagesSent.Inc()
		c.metrics.BytesSent.Add(float64(len(data)))
	}
}

// Disconnect sends a graceful Disconnect and tears down the connection.
func (c *Client) Disconnect(reason string) {
	c.send(&proto.Disconnect{Reason: reason}, transport.Reliable)
	c.mu.Lock()
	peer := c.serverPeer
	c.mu.Unlock()
	_ = c.worker.EnqueueCommand(ioworker.Command{Kind: ioworker.CommandDisconnect, Peer: peer})
	c.setState(Disconnected)
}
