package proto

import "zergcity/internal/netio/wire"

// NewFactory returns a wire.Factory with every payload type in this package
// registered. Both client and server construct one of these at startup.
func NewFactory() *wire.Factory {
	f := wire.NewFactory()
	f.Register(wire.TypeJoin, func() wire.Payload { return &Join{} })
	f.Register(wire.TypeJoinAccept, func() wire.Payload { return &JoinAccept{} })
	f.Register(wire.TypeJoinReject, func() wire.Payload { return &JoinReject{} })
	f.Register(wire.TypeReconnect, func() wire.Payload { return &Reconnect{} })
	f.Register(wire.TypeDisconnect, func() wire.Payload { return &Disconnect{} })
	f.Register(wire.TypeHeartbeat, func() wire.Payload { return &Heartbeat{} })
	f.Register(wire.TypeHeartbeatResponse, func() wire.Payload { return &HeartbeatResponse{} })
	f.Register(wire.TypeServerStatus, func() wire.Payload { return &ServerStatus{} })
	f.Register(wire.TypePlayerList, func() wire.Payload { return &PlayerList{} })
	f.Register(wire.TypeChat, func() wire.Payload { return &Chat{} })
	f.Register(wire.TypeKick, func() wire.Payload { return &Kick{} })
	f.Register(wire.TypeCursorUpdate, func() wire.Payload { return &CursorUpdate{} })

	f.Register(wire.TypeSnapshotStart, func() wire.Payload { return &SnapshotStart{} })
	f.Register(wire.TypeSnapshotChunk, func() wire.Payload { return &SnapshotChunk{} })
	f.Register(wire.TypeSnapshotEnd, func() wire.Payload { return &SnapshotEnd{} })

	f.Register(wire.TypeTerrainSyncRequest, func() wire.Payload { return &TerrainSyncRequest{} })
	f.Register(wire.TypeTerrainSyncVerify, func() wire.Payload { return &TerrainSyncVerify{} })
	f.Register(wire.TypeTerrainSyncComplete, func() wire.Payload { return &TerrainSyncComplete{} })
	f.Register(wire.TypeTerrainModifyRequest, func() wire.Payload { return &TerrainModifyRequest{} })
	f.Register(wire.TypeTerrainModifyReply, func() wire.Payload { return &TerrainModifyResponse{} })
	f.Register(wire.TypeTerrainModifiedEvent, func() wire.Payload { return &TerrainModifiedEvent{} })

	f.Register(wire.TypeInput, func() wire.Payload { return &Input{} })
	f.Register(wire.TypeInputAck, func() wire.Payload { return &InputAck{} })
	f.Register(wire.TypeRejection, func() wire.Payload { return &Rejection{} })
	f.Register(wire.TypeStateUpdate, func() wire.Payload { return &StateUpdate{} })
	return f
}
