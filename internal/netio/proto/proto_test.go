package proto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"zergcity/internal/netio/wire"
)

func roundTrip(t *testing.T, p wire.Payload) wire.Payload {
	t.Helper()
	buf := wire.NewBuffer()
	p.MarshalPayload(buf)

	f := NewFactory()
	out := f.Create(p.Type())
	require.NotNil(t, out, "type %d must be registered", p.Type())
	require.NoError(t, out.UnmarshalPayload(wire.NewBufferFromBytes(buf.Raw())))
	return out
}

func TestEveryPayloadRoundTrips(t *testing.T) {
	token := SessionToken{}
	copy(token[:], []byte("0123456789abcdef"))

	cases := []wire.Payload{
		&Join{Name: "founder", Capabilities: 7},
		&JoinAccept{PlayerID: 3, ServerTime: 99999, Token: token, StartTick: 42},
		&JoinReject{Reason: KickReasonFull, Message: "server full"},
		&Reconnect{Token: token},
		&Disconnect{Reason: "bye"},
		&Heartbeat{Sequence: 5, ClientTimeMs: 123456},
		&HeartbeatResponse{Sequence: 5, EchoedTimeMs: 123456, ServerTick: 10},
		&ServerStatus{State: ServerRunning, MapSize: MapSizeMedium, CurrentTick: 500, ConnectedCount: 2},
		&PlayerList{Players: []PlayerEntry{{PlayerID: 1, Name: "a"}, {PlayerID: 2, Name: "b"}}},
		&Chat{From: 1, Message: "hello"},
		&Kick{Reason: KickReasonKicked, Message: "afk"},
		&CursorUpdate{PlayerID: 1, Position: GridPosition{X: -5, Y: 10}},
		&Input{Tick: 7, PlayerID: 1, Kind: InputPlaceBuilding, Sequence: 9, TargetPos: GridPosition{X: 1, Y: 2}, Param1: 3, Param2: 4, Value: -1},
		&InputAck{ServerTick: 7, Sequence: 9, Accepted: true},
		&Rejection{Sequence: 9, Reason: RejectionCannotAfford, Message: "too poor"},
		&StateUpdate{Tick: 8, Changes: []EntityChange{
			{Entity: 1, Kind: ChangeCreated, ComponentMask: 0b11, Components: []byte{1, 2}},
			{Entity: 2, Kind: ChangeUpdated, ComponentMask: 0b01, Components: []byte{9}},
			{Entity: 3, Kind: ChangeDestroyed},
		}},
		&SnapshotStart{Tick: 1, TotalChunks: 2, TotalBytes: 100, EntityCount: 10},
		&SnapshotChunk{Tick: 1, ChunkIndex: 0, Data: []byte{1, 2, 3}},
		&SnapshotEnd{Tick: 1, Checksum: 0xABCD},
		&TerrainSyncRequest{Seed: 77, MapSize: MapSizeLarge, Modifications: []TerrainModification{
			{Sequence: 1, Player: 1, Operation: TerrainOpLevel, Affected: TerrainRect{0, 0, 5, 5}, NewElevation: 3, Tick: 1},
		}, Checksum: 1234},
		&TerrainSyncVerify{Checksum: 1234},
		&TerrainSyncComplete{Success: true},
		&TerrainModifyRequest{Sequence: 1, Operation: TerrainOpRaise, Affected: TerrainRect{1, 1, 2, 2}},
		&TerrainModifyResponse{Sequence: 1, Accepted: false, Reason: RejectionOutOfBounds},
		&TerrainModifiedEvent{Modification: TerrainModification{Sequence: 2, Operation: TerrainOpClear, Tick: 2}},
	}

	for _, c := range cases {
		got := roundTrip(t, c)
		require.Equal(t, c, got, "type %d did not round-trip", c.Type())
	}
}

func TestInputPayloadIsFixedThirtyBytes(t *testing.T) {
	buf := wire.NewBuffer()
	(&Input{Tick: 1, PlayerID: 1, Kind: InputZone, Sequence: 1, TargetPos: GridPosition{X: 1, Y: 1}, Param1: 1, Param2: 1, Value: 1}).MarshalPayload(buf)
	require.Equal(t, InputSerializedSize, buf.Size())
}

func TestInputKindCategoryMapping(t *testing.T) {
	require.Equal(t, CategoryBuilding, InputPlaceBuilding.Category())
	require.Equal(t, CategoryBuilding, InputDemolish.Category())
	require.Equal(t, CategoryZoning, InputZone.Category())
	require.Equal(t, CategoryInfrastructure, InputBuildRoad.Category())
	require.Equal(t, CategoryInfrastructure, InputBuildUtility.Category())
	require.Equal(t, CategoryEconomy, InputSetTax.Category())
	require.Equal(t, CategoryEconomy, InputTrade.Category())
	require.Equal(t, CategoryGameControl, InputPause.Category())
}

func TestJoinRejectsOverlongName(t *testing.T) {
	buf := wire.NewBuffer()
	long := make([]byte, MaxNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	buf.WriteString(string(long))
	buf.WriteU32(0)

	var j Join
	err := j.UnmarshalPayload(wire.NewBufferFromBytes(buf.Raw()))
	require.ErrorIs(t, err, ErrNameTooLong)
}
