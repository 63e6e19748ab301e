// Package engine is the in-process media engine the server binary runs rooms on.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dkeye/Conductor/internal/adapters/rtc"
	"github.com/dkeye/Conductor/internal/core"
	"github.com/dkeye/Conductor/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrTerminated        = core.ErrEngineTerminated
	ErrDuplicateEndpoint = errors.New("endpoint id already in use")
	ErrUnknownEndpoint   = errors.New("unknown endpoint")
)

// Factory starts instances and keeps them by room until they terminate.
type Factory struct {
	mu        sync.RWMutex
	instances map[domain.RoomID]*Instance
}

var _ core.EngineFactory = (*Factory)(nil)

func NewFactory() *Factory {
	return &Factory{instances: make(map[domain.RoomID]*Instance)}
}

func (f *Factory) Start(_ context.Context, opts core.EngineOptions) (core.Engine, error) {
	inst := &Instance{
		opts:      opts,
		endpoints: make(map[string]endpoint),
		logger:    log.With().Str("module", "engine").Str("room_id", string(opts.RoomID)).Logger(),
		release:   func() { f.release(opts.RoomID) },
	}

	f.mu.Lock()
	if _, ok := f.instances[opts.RoomID]; ok {
		f.mu.Unlock()
		return nil, fmt.Errorf("engine for room %s already running", opts.RoomID)
	}
	f.instances[opts.RoomID] = inst
	f.mu.Unlock()

	inst.logger.Info().Str("video_codec", string(opts.VideoCodec)).Msg("engine started")
	return inst, nil
}

func (f *Factory) release(id domain.RoomID) {
	f.mu.Lock()
	delete(f.instances, id)
	f.mu.Unlock()
}

// Instance returns the running instance of a room.
func (f *Factory) Instance(id domain.RoomID) (*Instance, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	inst, ok := f.instances[id]
	return inst, ok
}

func (f *Factory) Running() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.instances)
}

type endpoint interface {
	Close()
}

// Instance routes media for one room.
type Instance struct {
	opts    core.EngineOptions
	logger  zerolog.Logger
	release func()

	mu         sync.RWMutex
	endpoints  map[string]endpoint
	observers  []core.EngineObserver
	terminated bool
}

var _ core.Engine = (*Instance)(nil)

func (i *Instance) RegisterObserver(o core.EngineObserver) {
	i.mu.Lock()
	i.observers = append(i.observers, o)
	i.mu.Unlock()
}

func (i *Instance) AddEndpoint(_ context.Context, id string, ep domain.Endpoint) error {
	i.mu.RLock()
	_, dup := i.endpoints[id]
	done := i.terminated
	i.mu.RUnlock()
	if done {
		return ErrTerminated
	}
	if dup {
		return fmt.Errorf("%w: %s", ErrDuplicateEndpoint, id)
	}

	e, err := i.build(id, ep)
	if err != nil {
		return fmt.Errorf("endpoint %s: %w", id, err)
	}

	i.mu.Lock()
	if i.terminated {
		i.mu.Unlock()
		e.Close()
		return ErrTerminated
	}
	i.endpoints[id] = e
	i.mu.Unlock()

	i.logger.Info().Str("endpoint_id", id).Str("kind", string(ep.Kind())).Msg("endpoint added")
	return nil
}

func (i *Instance) build(id string, ep domain.Endpoint) (endpoint, error) {
	switch ep := ep.(type) {
	case *domain.WebRTCEndpoint:
		return rtc.NewWebRTCConnection(id, *ep, func() { i.drop(id) })
	case *domain.HLSEndpoint:
		return newHLSSink(*ep)
	case *domain.RTSPEndpoint:
		return newRTSPSource(*ep, i.logger), nil
	default:
		return nil, fmt.Errorf("unsupported endpoint kind %q", ep.Kind())
	}
}

// drop removes an endpoint that went away without being asked to.
func (i *Instance) drop(id string) {
	i.mu.Lock()
	e, ok := i.endpoints[id]
	delete(i.endpoints, id)
	i.mu.Unlock()
	if ok {
		i.logger.Warn().Str("endpoint_id", id).Msg("endpoint failed, dropped")
		go e.Close()
	}
}

func (i *Instance) RemoveEndpoint(_ context.Context, id string) error {
	i.mu.Lock()
	if i.terminated {
		i.mu.Unlock()
		return ErrTerminated
	}
	e, ok := i.endpoints[id]
	delete(i.endpoints, id)
	i.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEndpoint, id)
	}
	e.Close()
	i.logger.Info().Str("endpoint_id", id).Msg("endpoint removed")
	return nil
}

func (i *Instance) ActiveEndpointIDs(context.Context) (map[string]struct{}, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.terminated {
		return nil, ErrTerminated
	}
	out := make(map[string]struct{}, len(i.endpoints))
	for id := range i.endpoints {
		out[id] = struct{}{}
	}
	return out, nil
}

func (i *Instance) Terminate(context.Context) { i.stop(nil) }

// Crash tears the instance down and reports reason as an abnormal exit.
func (i *Instance) Crash(reason error) {
	if reason == nil {
		reason = errors.New("engine crashed")
	}
	i.stop(reason)
}

func (i *Instance) stop(reason error) {
	i.mu.Lock()
	if i.terminated {
		i.mu.Unlock()
		return
	}
	i.terminated = true
	endpoints := i.endpoints
	i.endpoints = make(map[string]endpoint)
	observers := append([]core.EngineObserver(nil), i.observers...)
	i.mu.Unlock()

	for _, e := range endpoints {
		e.Close()
	}
	i.release()

	if reason != nil {
		i.logger.Error().Err(reason).Msg("engine crashed")
	} else {
		i.logger.Info().Msg("engine terminated")
	}
	for _, o := range observers {
		o.OnEngineTerminated(reason)
	}
}

type hlsSink struct {
	dir string
}

func newHLSSink(ep domain.HLSEndpoint) (*hlsSink, error) {
	if err := os.MkdirAll(ep.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create hls output: %w", err)
	}
	return &hlsSink{dir: ep.OutputDir}, nil
}

func (*hlsSink) Close() {}

type rtspSource struct {
	ep     domain.RTSPEndpoint
	logger zerolog.Logger
}

func newRTSPSource(ep domain.RTSPEndpoint, logger zerolog.Logger) *rtspSource {
	logger.Info().
		Str("source", ep.SourceURI).
		Int("rtp_port", ep.RTPPort).
		Dur("reconnect_delay", ep.ReconnectDelay).
		Dur("keep_alive", ep.KeepAliveInterval).
		Bool("pierce_nat", ep.PierceNAT).
		Msg("rtsp source registered")
	return &rtspSource{ep: ep, logger: logger}
}

func (s *rtspSource) Close() {
	s.logger.Info().Str("source", s.ep.SourceURI).Msg("rtsp source released")
}
