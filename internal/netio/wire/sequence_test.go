package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequenceTrackerOutboundIsMonotonic(t *testing.T) {
	s := NewSequenceTracker()
	require.EqualValues(t, 1, s.CurrentSequence())
	require.EqualValues(t, 1, s.NextSequence())
	require.EqualValues(t, 2, s.NextSequence())
	require.EqualValues(t, 3, s.CurrentSequence())
}

func TestSequenceTrackerSkipsZeroOnWrap(t *testing.T) {
	s := &SequenceTracker{next: math.MaxUint32}
	require.EqualValues(t, math.MaxUint32, s.NextSequence())
	require.EqualValues(t, 1, s.NextSequence())
}

func TestSequenceTrackerInboundIsNewer(t *testing.T) {
	s := NewSequenceTracker()
	s.RecordReceived(10)
	require.EqualValues(t, 10, s.LastReceived())

	s.RecordReceived(5) // older, ignored
	require.EqualValues(t, 10, s.LastReceived())

	s.RecordReceived(11)
	require.EqualValues(t, 11, s.LastReceived())
}

func TestIsNewerHandlesWraparound(t *testing.T) {
	require.True(t, IsNewer(11, 10))
	require.False(t, IsNewer(10, 11))
	require.True(t, IsNewer(1, math.MaxUint32)) // wrapped past zero
	require.False(t, IsNewer(math.MaxUint32, 1))
}

func TestSequenceTrackerReset(t *testing.T) {
	s := NewSequenceTracker()
	s.NextSequence()
	s.RecordReceived(99)
	s.Reset()
	require.EqualValues(t, 1, s.CurrentSequence())
	require.EqualValues(t, 0, s.LastReceived())
}
