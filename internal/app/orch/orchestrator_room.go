package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Conductor/internal/app"
	"github.com/dkeye/Conductor/internal/cluster"
	"github.com/dkeye/Conductor/internal/core"
	"github.com/dkeye/Conductor/internal/domain"
	"github.com/dkeye/Conductor/internal/metrics"
	"github.com/dkeye/Conductor/internal/notify"
)

// CreateRoom validates the raw options and starts the room on the least loaded node.
func (o *Orchestrator) CreateRoom(ctx context.Context, maxPeers, videoCodec any) (cluster.CreateRoomResult, error) {
	cfg, err := domain.NewRoomConfig(maxPeers, videoCodec)
	if err != nil {
		return cluster.CreateRoomResult{}, err
	}

	res := cluster.Gather(ctx, o.Cluster, o.LocalUsage(), o.resourceTimeout)
	metrics.GatherMissing.Add(float64(len(res.Missing)))

	target, ok := o.Policy.Pick(res.Usages)
	if !ok || target == o.Cluster.Self() {
		return o.CreateLocalRoom(ctx, cfg)
	}

	o.logger.Info().Str("target", string(target)).Msg("forwarding room creation")
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	out, err := o.Cluster.CreateRoom(callCtx, target, cfg)
	if err != nil {
		o.logger.Error().Err(err).Str("target", string(target)).Msg("forwarded room creation failed")
		return cluster.CreateRoomResult{}, fmt.Errorf("create room on %s: %w", target, err)
	}
	metrics.Placements.WithLabelValues("forwarded").Inc()
	return out, nil
}

// CreateLocalRoom starts a room on this node. cfg must already be validated.
func (o *Orchestrator) CreateLocalRoom(ctx context.Context, cfg domain.RoomConfig) (cluster.CreateRoomResult, error) {
	room, err := app.StartRoom(ctx, o.deps, cfg)
	if err != nil {
		return cluster.CreateRoomResult{}, err
	}
	snap, err := room.Query(ctx)
	if err != nil {
		_ = room.Stop(context.Background())
		return cluster.CreateRoomResult{}, fmt.Errorf("query new room: %w", err)
	}

	o.Registry.Bind(room)
	o.monitors.Add(1)
	go o.monitor(room)

	metrics.RoomsActive.Inc()
	metrics.Placements.WithLabelValues("local").Inc()
	o.logger.Info().Str("room_id", string(room.ID())).Msg("room created")
	o.publish(ctx, notify.ServerTopic, notify.Event{Type: notify.RoomCreated, RoomID: room.ID()})

	return cluster.CreateRoomResult{Room: snap, Host: o.host}, nil
}

// DeleteRoom stops a local room. A room that vanished or crashed mid-way counts as deleted
// and room_deleted is not published for it.
func (o *Orchestrator) DeleteRoom(ctx context.Context, id domain.RoomID) error {
	room, ok := o.Rooms.Lookup(id)
	if !ok {
		return domain.ErrRoomNotFound
	}
	if err := room.Stop(ctx); err != nil {
		if errors.Is(err, domain.ErrRoomStopped) {
			o.logger.Warn().Str("room_id", string(id)).Msg("room already gone")
			return nil
		}
		return fmt.Errorf("stop room %s: %w", id, err)
	}
	if exitErr := room.Err(); exitErr != nil {
		// The room crashed before the stop landed; its monitor reports room_crashed.
		o.logger.Warn().Err(exitErr).Str("room_id", string(id)).Msg("room crashed during delete")
		return nil
	}
	o.logger.Info().Str("room_id", string(id)).Msg("room deleted")
	o.publish(ctx, notify.ServerTopic, notify.Event{Type: notify.RoomDeleted, RoomID: id})
	return nil
}

func (o *Orchestrator) GetRoom(ctx context.Context, id domain.RoomID) (domain.RoomSnapshot, error) {
	room, err := o.lookup(id)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	snap, err := room.Query(ctx)
	return snap, notFoundIfStopped(err)
}

// ListRooms returns a snapshot of every live room on this node.
func (o *Orchestrator) ListRooms(ctx context.Context) ([]domain.RoomSnapshot, error) {
	rooms := o.Rooms.List()
	out := make([]domain.RoomSnapshot, 0, len(rooms))
	for _, room := range rooms {
		snap, err := room.Query(ctx)
		switch {
		case errors.Is(err, domain.ErrRoomStopped):
			continue
		case err != nil:
			return nil, fmt.Errorf("query room %s: %w", room.ID(), err)
		}
		out = append(out, snap)
	}
	return out, nil
}

func (o *Orchestrator) lookup(id domain.RoomID) (core.RoomService, error) {
	room, ok := o.Rooms.Lookup(id)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func notFoundIfStopped(err error) error {
	if errors.Is(err, domain.ErrRoomStopped) {
		return domain.ErrRoomNotFound
	}
	return err
}

func (o *Orchestrator) monitor(room core.RoomService) {
	defer o.monitors.Done()
	<-room.Done()
	o.handleExit(room, room.Err())
}

// handleExit runs once per room; repeated signals for a room already handled are ignored.
func (o *Orchestrator) handleExit(room core.RoomService, reason error) {
	id, ok := o.Registry.Take(room)
	if !ok {
		o.logger.Warn().Str("room_id", string(room.ID())).Msg("exit of untracked room ignored")
		return
	}
	metrics.RoomsActive.Dec()
	ctx := context.Background()

	if reason == nil {
		metrics.RoomExits.WithLabelValues("normal").Inc()
		o.publish(ctx, notify.RoomTopic(id), notify.Event{Type: notify.RoomStopped, RoomID: id})
		return
	}

	metrics.RoomExits.WithLabelValues("crash").Inc()
	o.logger.Error().Err(reason).Str("room_id", string(id)).Msg("room crashed")
	ev := notify.Event{Type: notify.RoomCrashed, RoomID: id, Reason: reason.Error()}
	o.publish(ctx, notify.RoomTopic(id), ev)
	o.publish(ctx, notify.ServerTopic, ev)
}
