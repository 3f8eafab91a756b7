package wire

// SequenceTracker hands out monotonic outbound sequence numbers for one
// direction and tracks the highest inbound sequence number seen, with a
// wraparound-aware comparison so a 32-bit counter can run indefinitely.
type SequenceTracker struct {
	next     uint32
	lastSeen uint32
	hasSeen  bool
}

// NewSequenceTracker returns a tracker whose first NextSequence call yields 1.
func NewSequenceTracker() *SequenceTracker {
	return &SequenceTracker{next: 1}
}

// NextSequence returns the next outbound sequence number and advances the
// counter, wrapping past zero (0 is skipped so it stays available as a
// sentinel for "no sequence").
func (s *SequenceTracker) NextSequence() uint32 {
	v := s.next
	s.next++
	if s.next == 0 {
		s.next = 1
	}
	return v
}

// CurrentSequence returns the next value NextSequence would return, without
// advancing the counter.
func (s *SequenceTracker) CurrentSequence() uint32 { return s.next }

// RecordReceived updates the tracker's notion of the highest sequence number
// seen if seq is newer than what was previously recorded.
func (s *SequenceTracker) RecordReceived(seq uint32) {
	if !s.hasSeen || IsNewer(seq, s.lastSeen) {
		s.lastSeen = seq
		s.hasSeen = true
	}
}

// LastReceived returns the highest sequence number recorded so far.
func (s *SequenceTracker) LastReceived() uint32 { return s.lastSeen }

// Reset clears both the outbound counter and the inbound high-water mark.
func (s *SequenceTracker) Reset() {
	s.next = 1
	s.lastSeen = 0
	s.hasSeen = false
}

// IsNewer reports whether a is "after" b in a wraparound-aware sense, using
// signed-difference comparison over the 32-bit sequence space: a is newer
// than b iff the signed difference a-b is positive, so a sequence number can
// wrap past 0 without every subsequent value appearing "older."
func IsNewer(a, b uint32) bool {
	return int32(a-b) > 0
}
