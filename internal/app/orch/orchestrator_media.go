package orch

import (
	"context"

	"github.com/dkeye/Conductor/internal/domain"
)

func (o *Orchestrator) AddPeer(ctx context.Context, roomID domain.RoomID, typ domain.PeerType, opts map[string]any) (domain.Peer, error) {
	room, err := o.lookup(roomID)
	if err != nil {
		return domain.Peer{}, err
	}
	peer, err := room.AddPeer(ctx, typ, opts)
	return peer, notFoundIfStopped(err)
}

func (o *Orchestrator) RemovePeer(ctx context.Context, roomID domain.RoomID, id domain.PeerID) error {
	room, err := o.lookup(roomID)
	if err != nil {
		return err
	}
	return notFoundIfStopped(room.RemovePeer(ctx, id))
}

func (o *Orchestrator) AddComponent(ctx context.Context, roomID domain.RoomID, typ domain.ComponentType, opts map[string]any) (domain.Component, error) {
	room, err := o.lookup(roomID)
	if err != nil {
		return domain.Component{}, err
	}
	comp, err := room.AddComponent(ctx, typ, opts)
	return comp, notFoundIfStopped(err)
}

func (o *Orchestrator) RemoveComponent(ctx context.Context, roomID domain.RoomID, id domain.ComponentID) error {
	room, err := o.lookup(roomID)
	if err != nil {
		return err
	}
	return notFoundIfStopped(room.RemoveComponent(ctx, id))
}
