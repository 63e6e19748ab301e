package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dkeye/Conductor/internal/core"
	"github.com/dkeye/Conductor/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrEngineCrashed = errors.New("engine terminated abnormally")

// RoomDeps is what every room on a node is started with.
type RoomDeps struct {
	Directory *Directory
	Engines   core.EngineFactory
	Settings  Settings
}

// Room owns one room's membership and the engine instance backing it.
// All state is touched only by the room's own goroutine.
type Room struct {
	*Task

	id      domain.RoomID
	config  domain.RoomConfig
	network NetworkOptions
	hlsRoot string
	engine  core.Engine
	dir     *Directory
	logger  zerolog.Logger

	peers      map[domain.PeerID]*domain.Peer
	components map[domain.ComponentID]*domain.Component

	mailbox    chan func()
	stopCh     chan struct{}
	stopOnce   sync.Once
	engineDown chan error
}

var _ core.RoomService = (*Room)(nil)

// StartRoom creates the room, its engine instance and registers it in the directory.
// If the engine cannot start the room never becomes visible.
func StartRoom(ctx context.Context, deps RoomDeps, cfg domain.RoomConfig) (*Room, error) {
	id := domain.RoomID(uuid.NewString())
	logger := log.With().Str("module", "app.room").Str("room_id", string(id)).Logger()

	engine, err := deps.Engines.Start(ctx, core.EngineOptions{RoomID: id, VideoCodec: cfg.VideoCodec})
	if err != nil {
		logger.Error().Err(err).Msg("engine start failed")
		return nil, fmt.Errorf("start engine for room %s: %w", id, err)
	}

	r := &Room{
		Task:       newTask(),
		id:         id,
		config:     cfg,
		network:    deps.Settings.networkOptions(),
		hlsRoot:    deps.Settings.HLSOutputDir,
		engine:     engine,
		dir:        deps.Directory,
		logger:     logger,
		peers:      make(map[domain.PeerID]*domain.Peer),
		components: make(map[domain.ComponentID]*domain.Component),
		mailbox:    make(chan func()),
		stopCh:     make(chan struct{}),
		engineDown: make(chan error, 1),
	}
	engine.RegisterObserver(r)
	r.dir.register(id, r)
	r.run(r.loop)

	logger.Info().Interface("config", cfg).Msg("room started")
	return r, nil
}

func (r *Room) ID() domain.RoomID         { return r.id }
func (r *Room) Config() domain.RoomConfig { return r.config }

// OnEngineTerminated is called by the engine, possibly from its own goroutine.
func (r *Room) OnEngineTerminated(reason error) {
	select {
	case r.engineDown <- reason:
	default:
	}
}

func (r *Room) loop() (exitErr error) {
	engineGone := false
	defer func() {
		if !engineGone {
			r.engine.Terminate(context.Background())
		}
		r.dir.unregister(r.id, r)
		if exitErr != nil {
			r.logger.Error().Err(exitErr).Msg("room exited abnormally")
		} else {
			r.logger.Info().Msg("room stopped")
		}
	}()

	for {
		select {
		case fn := <-r.mailbox:
			// A dead engine wins over queued work; the caller sees ErrRoomStopped.
			select {
			case reason := <-r.engineDown:
				engineGone = true
				return engineExit(reason)
			default:
			}
			fn()
		case reason := <-r.engineDown:
			engineGone = true
			return engineExit(reason)
		case <-r.stopCh:
			return nil
		}
	}
}

func engineExit(reason error) error {
	if reason != nil {
		return fmt.Errorf("%w: %w", ErrEngineCrashed, reason)
	}
	return nil
}

// call runs fn inside the room goroutine and waits for it to finish.
func (r *Room) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case r.mailbox <- func() { defer close(done); fn() }:
	case <-r.Done():
		return domain.ErrRoomStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-r.Done():
		select {
		case <-done:
			return nil
		default:
			return domain.ErrRoomStopped
		}
	}
}

func roomCall[T any](ctx context.Context, r *Room, fn func() (T, error)) (T, error) {
	var (
		res T
		err error
	)
	if cerr := r.call(ctx, func() { res, err = fn() }); cerr != nil {
		return res, cerr
	}
	// The engine may stop while fn runs, before its termination reaches the loop.
	if errors.Is(err, core.ErrEngineTerminated) {
		var zero T
		return zero, domain.ErrRoomStopped
	}
	return res, err
}

// Query returns the room with only the peers and components the engine reports active.
func (r *Room) Query(ctx context.Context) (domain.RoomSnapshot, error) {
	return roomCall(ctx, r, func() (domain.RoomSnapshot, error) {
		active, err := r.engine.ActiveEndpointIDs(ctx)
		if err != nil {
			return domain.RoomSnapshot{}, fmt.Errorf("list active endpoints: %w", err)
		}
		snap := domain.RoomSnapshot{
			ID:         r.id,
			Config:     r.config,
			Peers:      make([]domain.Peer, 0, len(r.peers)),
			Components: make([]domain.Component, 0, len(r.components)),
		}
		for id, p := range r.peers {
			if _, ok := active[string(id)]; ok {
				snap.Peers = append(snap.Peers, *p)
			}
		}
		for id, c := range r.components {
			if _, ok := active[string(id)]; ok {
				snap.Components = append(snap.Components, *c)
			}
		}
		slices.SortFunc(snap.Peers, func(a, b domain.Peer) int { return cmp.Compare(a.ID, b.ID) })
		slices.SortFunc(snap.Components, func(a, b domain.Component) int { return cmp.Compare(a.ID, b.ID) })
		return snap, nil
	})
}

func (r *Room) AddPeer(ctx context.Context, typ domain.PeerType, opts map[string]any) (domain.Peer, error) {
	return roomCall(ctx, r, func() (domain.Peer, error) {
		if r.config.PeerLimitReached(len(r.peers)) {
			return domain.Peer{}, domain.ErrReachedPeersLimit
		}
		peer, err := newPeer(r.id, typ, opts, r.network)
		if err != nil {
			return domain.Peer{}, err
		}
		if err := r.engine.AddEndpoint(ctx, string(peer.ID), peer.Endpoint); err != nil {
			return domain.Peer{}, fmt.Errorf("add peer endpoint: %w", err)
		}
		r.peers[peer.ID] = &peer
		r.logger.Info().Str("peer_id", string(peer.ID)).Str("type", string(typ)).Msg("peer added")
		return peer, nil
	})
}

func (r *Room) RemovePeer(ctx context.Context, id domain.PeerID) error {
	_, err := roomCall(ctx, r, func() (struct{}, error) {
		if _, ok := r.peers[id]; !ok {
			return struct{}{}, domain.ErrPeerNotFound
		}
		delete(r.peers, id)
		if err := r.engine.RemoveEndpoint(ctx, string(id)); err != nil {
			r.logger.Warn().Err(err).Str("peer_id", string(id)).Msg("remove peer endpoint")
		}
		r.logger.Info().Str("peer_id", string(id)).Msg("peer removed")
		return struct{}{}, nil
	})
	return err
}

func (r *Room) AddComponent(ctx context.Context, typ domain.ComponentType, opts map[string]any) (domain.Component, error) {
	return roomCall(ctx, r, func() (domain.Component, error) {
		comp, err := newComponent(typ, opts, componentScope{
			roomID:     r.id,
			codec:      r.config.VideoCodec,
			hlsRoot:    r.hlsRoot,
			components: r.components,
		})
		if err != nil {
			return domain.Component{}, err
		}
		if err := r.engine.AddEndpoint(ctx, string(comp.ID), comp.Endpoint); err != nil {
			return domain.Component{}, fmt.Errorf("add component endpoint: %w", err)
		}
		r.components[comp.ID] = &comp
		r.logger.Info().Str("component_id", string(comp.ID)).Str("type", string(typ)).Msg("component added")
		return comp, nil
	})
}

func (r *Room) RemoveComponent(ctx context.Context, id domain.ComponentID) error {
	_, err := roomCall(ctx, r, func() (struct{}, error) {
		if _, ok := r.components[id]; !ok {
			return struct{}{}, domain.ErrComponentNotFound
		}
		delete(r.components, id)
		if err := r.engine.RemoveEndpoint(ctx, string(id)); err != nil {
			r.logger.Warn().Err(err).Str("component_id", string(id)).Msg("remove component endpoint")
		}
		r.logger.Info().Str("component_id", string(id)).Msg("component removed")
		return struct{}{}, nil
	})
	return err
}

// Stop asks the room to terminate normally and waits until it has exited.
// A room that is already gone reports ErrRoomStopped.
func (r *Room) Stop(ctx context.Context) error {
	select {
	case <-r.Done():
		return domain.ErrRoomStopped
	default:
	}
	r.stopOnce.Do(func() { close(r.stopCh) })
	select {
	case <-r.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
