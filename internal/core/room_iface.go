package core

import (
	"context"

	"github.com/dkeye/Conductor/internal/domain"
)

// RoomService is the caller-facing API of one running room.
// Every call is serialized inside the room; none of them touch the Directory.
type RoomService interface {
	ID() domain.RoomID
	Config() domain.RoomConfig

	Query(ctx context.Context) (domain.RoomSnapshot, error)
	AddPeer(ctx context.Context, typ domain.PeerType, opts map[string]any) (domain.Peer, error)
	RemovePeer(ctx context.Context, id domain.PeerID) error
	AddComponent(ctx context.Context, typ domain.ComponentType, opts map[string]any) (domain.Component, error)
	RemoveComponent(ctx context.Context, id domain.ComponentID) error

	// Stop requests a normal termination and waits for the room to exit.
	Stop(ctx context.Context) error
	// Done is closed once the room has exited; Err then reports why (nil = normal).
	Done() <-chan struct{}
	Err() error
}

// RoomDirectory maps room ids to the rooms running on this node.
type RoomDirectory interface {
	Lookup(id domain.RoomID) (RoomService, bool)
	List() []RoomService
	Len() int
}
