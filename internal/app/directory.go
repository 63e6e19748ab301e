package app

import (
	"sync"
	"sync/atomic"

	"github.com/dkeye/Conductor/internal/core"
	"github.com/dkeye/Conductor/internal/domain"
	"github.com/rs/zerolog/log"
)

// Directory maps room ids to the rooms running on this node.
// Only rooms mutate it (on start and exit); lookups never take a lock.
type Directory struct {
	rooms sync.Map // domain.RoomID -> core.RoomService
	count atomic.Int64
}

var _ core.RoomDirectory = (*Directory)(nil)

func NewDirectory() *Directory {
	return &Directory{}
}

func (d *Directory) register(id domain.RoomID, room core.RoomService) {
	if _, loaded := d.rooms.LoadOrStore(id, room); loaded {
		log.Warn().Str("module", "app.directory").Str("room_id", string(id)).Msg("room id already registered")
		return
	}
	d.count.Add(1)
}

func (d *Directory) unregister(id domain.RoomID, room core.RoomService) {
	if d.rooms.CompareAndDelete(id, room) {
		d.count.Add(-1)
	}
}

func (d *Directory) Lookup(id domain.RoomID) (core.RoomService, bool) {
	v, ok := d.rooms.Load(id)
	if !ok {
		return nil, false
	}
	return v.(core.RoomService), true
}

func (d *Directory) List() []core.RoomService {
	out := make([]core.RoomService, 0, d.Len())
	d.rooms.Range(func(_, v any) bool {
		out = append(out, v.(core.RoomService))
		return true
	})
	return out
}

// Len is the active room count this node reports to the cluster.
func (d *Directory) Len() int {
	return int(d.count.Load())
}
