// Package enginetest provides an in-memory engine for tests.
package enginetest

import (
	"context"
	"sync"

	"github.com/dkeye/Conductor/internal/core"
	"github.com/dkeye/Conductor/internal/domain"
)

var ErrTerminated = core.ErrEngineTerminated

// Factory hands out Engines and remembers them by room.
type Factory struct {
	mu       sync.Mutex
	engines  map[domain.RoomID]*Engine
	order    []*Engine
	startErr error
	addErr   error
}

var _ core.EngineFactory = (*Factory)(nil)

func NewFactory() *Factory {
	return &Factory{engines: make(map[domain.RoomID]*Engine)}
}

// FailStart makes every following Start return err.
func (f *Factory) FailStart(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

// FailAdd makes AddEndpoint of engines started afterwards return err.
func (f *Factory) FailAdd(err error) {
	f.mu.Lock()
	f.addErr = err
	f.mu.Unlock()
}

func (f *Factory) Start(_ context.Context, opts core.EngineOptions) (core.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	e := &Engine{opts: opts, endpoints: make(map[string]domain.Endpoint), addErr: f.addErr}
	f.engines[opts.RoomID] = e
	f.order = append(f.order, e)
	return e, nil
}

func (f *Factory) Engine(id domain.RoomID) (*Engine, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.engines[id]
	return e, ok
}

func (f *Factory) Started() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

// Engine keeps endpoints in a map and reports every one of them active.
type Engine struct {
	opts   core.EngineOptions
	addErr error

	mu         sync.Mutex
	endpoints  map[string]domain.Endpoint
	observers  []core.EngineObserver
	terminated bool
	removed    int
}

var _ core.Engine = (*Engine)(nil)

func (e *Engine) Options() core.EngineOptions { return e.opts }

func (e *Engine) RegisterObserver(o core.EngineObserver) {
	e.mu.Lock()
	e.observers = append(e.observers, o)
	e.mu.Unlock()
}

func (e *Engine) AddEndpoint(_ context.Context, id string, ep domain.Endpoint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminated {
		return ErrTerminated
	}
	if e.addErr != nil {
		return e.addErr
	}
	e.endpoints[id] = ep
	return nil
}

func (e *Engine) RemoveEndpoint(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminated {
		return ErrTerminated
	}
	delete(e.endpoints, id)
	e.removed++
	return nil
}

func (e *Engine) ActiveEndpointIDs(context.Context) (map[string]struct{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminated {
		return nil, ErrTerminated
	}
	out := make(map[string]struct{}, len(e.endpoints))
	for id := range e.endpoints {
		out[id] = struct{}{}
	}
	return out, nil
}

func (e *Engine) Endpoint(id string) (domain.Endpoint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ep, ok := e.endpoints[id]
	return ep, ok
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.endpoints)
}

func (e *Engine) Removed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removed
}

// DropEndpoint removes an endpoint behind the room's back, as a failed peer would.
func (e *Engine) DropEndpoint(id string) {
	e.mu.Lock()
	delete(e.endpoints, id)
	e.mu.Unlock()
}

func (e *Engine) Terminate(context.Context) { e.stop(nil) }

// Crash terminates the engine and reports reason to its observers.
func (e *Engine) Crash(reason error) { e.stop(reason) }

func (e *Engine) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated
}

func (e *Engine) stop(reason error) {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return
	}
	e.terminated = true
	e.endpoints = make(map[string]domain.Endpoint)
	observers := append([]core.EngineObserver(nil), e.observers...)
	e.mu.Unlock()

	for _, o := range observers {
		o.OnEngineTerminated(reason)
	}
}
