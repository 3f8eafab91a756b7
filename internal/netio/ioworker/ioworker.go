// Package ioworker implements the dedicated I/O worker (C5): the transport
// is owned entirely by a worker goroutine, and the main context exchanges
// events with it only through three bounded, non-blocking channel queues
// plus a set of atomic counters — the Go equivalent of the moodycamel SPSC
// queues in
// _examples/original_source/include/sims3000/net/NetworkThread.h (that
// queue type is a C++-only dependency; a buffered channel with a
// select/default enqueue is the idiomatic Go substitute for the same
// lock-free, bounded, single-producer/single-consumer contract).
package ioworker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"zergcity/internal/netio/proto"
	"zergcity/internal/netio/transport"
)

// DefaultQueueCapacity matches NetworkThread.h's DEFAULT_QUEUE_CAPACITY.
const DefaultQueueCapacity = 4096

// PollTimeout matches NetworkThread.h's POLL_TIMEOUT_MS.
const PollTimeout = time.Millisecond

// CommandKind enumerates the commands the main context may enqueue.
type CommandKind uint8

const (
	CommandStartServer CommandKind = iota
	CommandConnect
	CommandDisconnect
	CommandDisconnectAll
)

// Command is one transport operation the worker should perform.
type Command struct {
	Kind       CommandKind
	Port       int
	MaxClients int
	Address    string
	Peer       proto.PeerID
}

// OutboundMessage is one send the worker should perform on the transport.
type OutboundMessage struct {
	Peer      proto.PeerID
	Data      []byte
	Channel   transport.Channel
	Broadcast bool
}

// ErrQueueFull is returned by the Enqueue* methods when the corresponding
// bounded queue has no free slot. Per spec.md §8, this must never block —
// the producer decides whether to retry or drop.
var ErrQueueFull = errors.New("ioworker: queue full")

// Counters holds the atomic byte/message counters the main context may read
// at any time without synchronizing with the worker.
type Counters struct {
	MessagesSent     uint64
	MessagesReceived uint64
	BytesSent        uint64
	BytesReceived    uint64
}

// Worker owns a Transport and bridges it to the main context via three
// bounded queues. The main context must never call methods on the
// Transport directly once the worker has started.
type Worker struct {
	transport transport.Transport
	logger    *zap.Logger

	commands chan Command
	outbound chan OutboundMessage
	inbound  chan transport.Event

	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
	bytesSent        atomic.Uint64
	bytesReceived    atomic.Uint64

	stopFlag atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// New constructs a Worker around t with the default queue capacities.
func New(t transport.Transport, logger *zap.Logger) *Worker {
	return &Worker{
		transport: t,
		logger:    logger,
		commands:  make(chan Command, DefaultQueueCapacity),
		outbound:  make(chan OutboundMessage, DefaultQueueCapacity),
		inbound:   make(chan transport.Event, DefaultQueueCapacity),
		done:      make(chan struct{}),
	}
}

// EnqueueCommand offers cmd to the command queue without blocking.
func (w *Worker) EnqueueCommand(cmd Command) error {
	select {
	case w.commands <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// EnqueueOutbound offers msg to the outbound queue without blocking.
func (w *Worker) EnqueueOutbound(msg OutboundMessage) error {
	select {
	case w.outbound <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// PollInbound returns the next available inbound event and true, or a zero
// Event and false if none is currently queued. Never blocks.
func (w *Worker) PollInbound() (transport.Event, bool) {
	select {
	case ev := <-w.inbound:
		return ev, true
	default:
		return transport.Event{}, false
	}
}

// InboundCount returns the number of events currently queued for the main
// context to drain.
func (w *Worker) InboundCount() int { return len(w.inbound) }

// OutboundCount returns the number of sends currently queued for the worker
// to perform.
func (w *Worker) OutboundCount() int { return len(w.outbound) }

// Counters returns a consistent snapshot of the atomic traffic counters.
func (w *Worker) Counters() Counters {
	return Counters{
		MessagesSent:     w.messagesSent.Load(),
		MessagesReceived: w.messagesReceived.Load(),
		BytesSent:        w.bytesSent.Load(),
		BytesReceived:    w.bytesReceived.Load(),
	}
}

// Run is the worker's loop: drain commands, drain outbound sends, poll the
// transport once, forward events inbound. It returns only after Stop has
// been called or ctx has been cancelled, and the worker has finished its
// cooperative shutdown sequence (flush outbound, disconnect peers, exit). Run is meant to be
// launched with `go worker.Run(ctx)`.
func (w *Worker) Run(ctx context.Context) {
	w.wg.Add(1)
	defer w.wg.Done()
	defer close(w.done)

	for {
		if w.stopFlag.Load() {
			w.drainOutboundOnce()
			w.transport.Flush()
			w.transport.DisconnectAll()
			return
		}

		select {
		case <-ctx.Done():
			w.stopFlag.Store(true)
			continue
		default:
		}

		w.processCommands()
		w.processOutbound()
		w.pollTransportOnce()
	}
}

func (w *Worker) processCommands() {
	for {
		select {
		case cmd := <-w.commands:
			w.applyCommand(cmd)
		default:
			return
		}
	}
}

func (w *Worker) applyCommand(cmd Command) {
	var err error
	switch cmd.Kind {
	case CommandStartServer:
		err = w.transport.StartServer(cmd.Port, cmd.MaxClients)
	case CommandConnect:
		_, err = w.transport.Connect(cmd.Address, cmd.Port)
	case CommandDisconnect:
		err = w.transport.Disconnect(cmd.Peer)
	case CommandDisconnectAll:
		w.transport.DisconnectAll()
	}
	if err != nil && w.logger != nil {
		w.logger.Warn("ioworker: command failed", zap.Uint8("kind", uint8(cmd.Kind)), zap.Error(err))
	}
}

func (w *Worker) processOutbound() {
	for {
		select {
		case msg := <-w.outbound:
			w.sendOne(msg)
		default:
			return
		}
	}
}

// drainOutboundOnce flushes whatever is left in the outbound queue exactly
// once during shutdown, per spec.md §4.5's "flushes outbound" stop
// sequence.
func (w *Worker) drainOutboundOnce() {
	for {
		select {
		case msg := <-w.outbound:
			w.sendOne(msg)
		default:
			return
		}
	}
}

func (w *Worker) sendOne(msg OutboundMessage) {
	if msg.Broadcast {
		w.transport.Broadcast(msg.Data, msg.Channel)
	} else if err := w.transport.Send(msg.Peer, msg.Data, msg.Channel); err != nil {
		if w.logger != nil {
			w.logger.Debug("ioworker: send failed", zap.Uint32("peer", uint32(msg.Peer)), zap.Error(err))
		}
		return
	}
	w.messagesSent.Add(1)
	w.bytesSent.Add(uint64(len(msg.Data)))
}

func (w *Worker) pollTransportOnce() {
	ev := w.transport.Poll(PollTimeout)
	if ev.Type == transport.EventNone {
		return
	}
	if ev.Type == transport.EventReceive {
		w.messagesReceived.Add(1)
		w.bytesReceived.Add(uint64(len(ev.Data)))
	}
	select {
	case w.inbound <- ev:
	default:
		if w.logger != nil {
			w.logger.Warn("ioworker: inbound queue full, dropping event", zap.Uint8("type", uint8(ev.Type)))
		}
	}
}

// Stop requests cooperative shutdown: the worker finishes its current
// iteration, flushes outbound, disconnects all peers, and exits. Stop does
// not block; call Join to wait for exit.
func (w *Worker) Stop() { w.stopFlag.Store(true) }

// Join blocks until Run has returned.
func (w *Worker) Join() { w.wg.Wait() }

// Done returns a channel closed once the worker has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }
