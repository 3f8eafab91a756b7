package server

import (
	"time"

	"zergcity/internal/netio/proto"
)

// Validator decides whether an Input is legal against the simulation's
// current state. The simulation lives outside this core (spec.md §1); this
// core only carries the callback.
type Validator func(proto.PlayerID, proto.Input) (bool, proto.RejectionReason)

// Applicator performs an already-validated Input's effect against the
// simulation. Errors here are treated the same as validation failures: the
// input is rejected with RejectionRuleViolation and is not tracked as
// pending; no rollback callback runs for it.
type Applicator func(proto.PlayerID, proto.Input) error

// pendingAction is one input this handler has accepted but not yet seen
// confirmed by a later full tick/snapshot boundary — tracked so it can be
// rolled back if the issuing player disconnects and its session's grace
// period expires before that happens, per spec.md §4.9 "disconnect rollback".
type pendingAction struct {
	input     proto.Input
	appliedAt time.Time
}

// InputHandler implements C9: per-InputKind validate/apply tables plus
// pending-action tracking for disconnect rollback, grounded on
// _examples/original_source/include/sims3000/net/InputHandler.h.
type InputHandler struct {
	validators  map[proto.InputKind]Validator
	applicators map[proto.InputKind]Applicator

	// rollback, given the same input that was applied, undoes its effect.
	// Only kinds that register one are eligible for rollback; kinds with no
	// rollback registered are treated as already-durable once applied (e.g.
	// Pause/Resume, which are idempotent to replay rather than undo).
	rollbacks map[proto.InputKind]Applicator

	pending map[proto.PlayerID][]pendingAction
}

// NewInputHandler returns an InputHandler with empty per-kind tables. The
// simulation registers its validators/applicators/rollbacks at startup via
// RegisterKind.
func NewInputHandler() *InputHandler {
	return &InputHandler{
		validators:  make(map[proto.InputKind]Validator),
		applicators: make(map[proto.InputKind]Applicator),
		rollbacks:   make(map[proto.InputKind]Applicator),
		pending:     make(map[proto.PlayerID][]pendingAction),
	}
}

// RegisterKind installs the validate/apply/rollback callbacks for one
// InputKind. rollback may be nil for kinds with no undo operation.
func (h *InputHandler) RegisterKind(kind proto.InputKind, validate Validator, apply Applicator, rollback Applicator) {
	h.validators[kind] = validate
	h.applicators[kind] = apply
	if rollback != nil {
		h.rollbacks[kind] = rollback
	}
}

// HandleResult is the outcome of processing one Input.
type HandleResult struct {
	Accepted bool
	Reason   proto.RejectionReason
}

// Handle validates and, if legal, applies in against the simulation, then
// tracks it as pending for possible rollback. now is injected for
// deterministic tests.
func (h *InputHandler) Handle(player proto.PlayerID, in proto.Input, now time.Time) HandleResult {
	validate, hasValidator := h.validators[in.Kind]
	apply, hasApplicator := h.applicators[in.Kind]
	if !hasValidator || !hasApplicator {
		return HandleResult{Accepted: false, Reason: proto.RejectionRuleViolation}
	}

	ok, reason := validate(player, in)
	if !ok {
		return HandleResult{Accepted: false, Reason: reason}
	}

	if err := apply(player, in); err != nil {
		return HandleResult{Accepted: false, Reason: proto.RejectionRuleViolation}
	}

	if _, hasRollback := h.rollbacks[in.Kind]; hasRollback {
		h.pending[player] = append(h.pending[player], pendingAction{input: in, appliedAt: now})
	}
	return HandleResult{Accepted: true}
}

// Confirm discards a player's pending actions up to and including
// upToSequence, once the simulation has durably committed them (e.g. past a
// snapshot boundary). Actions are never rolled back after confirmation.
func (h *InputHandler) Confirm(player proto.PlayerID, upToSequence uint32) {
	actions := h.pending[player]
	kept := actions[:0]
	for _, a := range actions {
		if a.input.Sequence > upToSequence {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		delete(h.pending, player)
		return
	}
	h.pending[player] = kept
}

// RollbackPlayer undoes every still-pending action for player, in reverse
// application order, and clears its pending list. Called when a
// disconnected player's session expires (its grace period elapses) before
// its actions are confirmed.
func (h *InputHandler) RollbackPlayer(player proto.PlayerID) {
	actions := h.pending[player]
	for i := len(actions) - 1; i >= 0; i-- {
		a := actions[i]
		if rollback, ok := h.rollbacks[a.input.Kind]; ok {
			_ = rollback(player, a.input)
		}
	}
	delete(h.pending, player)
}

// PendingCount reports how many unconfirmed actions player currently has.
func (h *InputHandler) PendingCount(player proto.PlayerID) int {
	return len(h.pending[player])
}
