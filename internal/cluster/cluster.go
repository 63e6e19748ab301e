// Package cluster implements the cross-node resource protocol used to place rooms.
package cluster

import (
	"context"
	"errors"

	"github.com/dkeye/Conductor/internal/domain"
)

var (
	ErrUnknownNode = errors.New("unknown cluster node")
	ErrNotBound    = errors.New("node has no coordinator bound")
)

type NodeID string

// Usage is one node's answer to a resource request.
type Usage struct {
	Node        NodeID `json:"node" msgpack:"node"`
	ActiveRooms int    `json:"activeRooms" msgpack:"active_rooms"`
}

// CreateRoomResult is what the hosting node returns for a new room.
type CreateRoomResult struct {
	Room domain.RoomSnapshot `json:"room" msgpack:"room"`
	// Host is the externally reachable host:port of the hosting node.
	Host string `json:"host" msgpack:"host"`
}

// Handler is the node-local side of the protocol, served to other nodes.
type Handler interface {
	LocalUsage() Usage
	CreateLocalRoom(ctx context.Context, cfg domain.RoomConfig) (CreateRoomResult, error)
}

// Transport reaches the coordinators of other nodes.
type Transport interface {
	Self() NodeID
	// Members lists every known node, the local one included.
	Members(ctx context.Context) ([]NodeID, error)
	RequestUsage(ctx context.Context, node NodeID) (Usage, error)
	CreateRoom(ctx context.Context, node NodeID, cfg domain.RoomConfig) (CreateRoomResult, error)
	Bind(h Handler)
}
