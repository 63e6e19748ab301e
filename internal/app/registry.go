package app

import (
	"sync"

	"github.com/dkeye/Conductor/internal/core"
	"github.com/dkeye/Conductor/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry maps the room handles a coordinator started to their ids.
// An entry is taken exactly once, so a room's termination is handled once.
type Registry struct {
	mu    sync.Mutex
	rooms map[core.RoomService]domain.RoomID
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[core.RoomService]domain.RoomID)}
}

func (r *Registry) Bind(room core.RoomService) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room] = room.ID()
	log.Debug().Str("module", "app.registry").Str("room_id", string(room.ID())).Msg("bound room")
}

// Take removes the entry for room and reports the id it was bound to.
func (r *Registry) Take(room core.RoomService) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.rooms[room]
	if ok {
		delete(r.rooms, room)
	}
	return id, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Rooms returns a snapshot of the bound handles.
func (r *Registry) Rooms() []core.RoomService {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.RoomService, 0, len(r.rooms))
	for room := range r.rooms {
		out = append(out, room)
	}
	return out
}
