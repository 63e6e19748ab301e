package core

import (
	"context"
	"errors"

	"github.com/dkeye/Conductor/internal/domain"
)

// ErrEngineTerminated is returned by engine calls made after the instance stopped.
var ErrEngineTerminated = errors.New("engine terminated")

// EngineOptions configures one engine instance. One instance backs exactly one room.
type EngineOptions struct {
	RoomID     domain.RoomID
	VideoCodec domain.VideoCodec
}

// EngineFactory starts media-engine instances.
type EngineFactory interface {
	Start(ctx context.Context, opts EngineOptions) (Engine, error)
}

// EngineObserver receives lifecycle signals of an engine instance.
// A nil reason means the instance stopped normally.
type EngineObserver interface {
	OnEngineTerminated(reason error)
}

// Engine is the media-routing collaborator owned by a room.
// Only the owning room calls into it.
type Engine interface {
	RegisterObserver(EngineObserver)
	// AddEndpoint attaches an endpoint under id. The endpoint becomes active asynchronously.
	AddEndpoint(ctx context.Context, id string, ep domain.Endpoint) error
	RemoveEndpoint(ctx context.Context, id string) error
	ActiveEndpointIDs(ctx context.Context) (map[string]struct{}, error)
	// Terminate stops the instance; observers are told with a nil reason.
	Terminate(ctx context.Context)
}
