// Package orch places rooms across the cluster and supervises the ones hosted here.
package orch

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Conductor/internal/app"
	"github.com/dkeye/Conductor/internal/cluster"
	"github.com/dkeye/Conductor/internal/notify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

type Options struct {
	// Host is the externally reachable address reported for local rooms.
	Host            string
	ResourceTimeout time.Duration
	CallTimeout     time.Duration
	Policy          app.Policy
}

// Orchestrator is the node's room placement coordinator.
// Only the ownership registry is shared state; gathers and forwarded
// creations run on the caller's goroutine so one slow node never stalls the rest.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.Directory
	Policy   app.Policy
	Cluster  cluster.Transport
	Notifier notify.Publisher

	deps            app.RoomDeps
	host            string
	resourceTimeout time.Duration
	callTimeout     time.Duration
	logger          zerolog.Logger
	monitors        sync.WaitGroup
}

var _ cluster.Handler = (*Orchestrator)(nil)

// New binds the orchestrator to the transport so other nodes can reach it.
func New(deps app.RoomDeps, transport cluster.Transport, notifier notify.Publisher, opts Options) *Orchestrator {
	if opts.Policy == nil {
		opts.Policy = app.LeastLoaded{}
	}
	if opts.ResourceTimeout <= 0 {
		opts.ResourceTimeout = time.Second
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Second
	}
	o := &Orchestrator{
		Registry:        app.NewRegistry(),
		Rooms:           deps.Directory,
		Policy:          opts.Policy,
		Cluster:         transport,
		Notifier:        notifier,
		deps:            deps,
		host:            opts.Host,
		resourceTimeout: opts.ResourceTimeout,
		callTimeout:     opts.CallTimeout,
		logger:          log.With().Str("module", "orch").Str("node", string(transport.Self())).Logger(),
	}
	transport.Bind(o)
	return o
}

// LocalUsage reports this node's load. It never blocks.
func (o *Orchestrator) LocalUsage() cluster.Usage {
	return cluster.Usage{Node: o.Cluster.Self(), ActiveRooms: o.Rooms.Len()}
}

func (o *Orchestrator) publish(ctx context.Context, topic notify.Topic, ev notify.Event) {
	ev.Node = string(o.Cluster.Self())
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	o.Notifier.Publish(ctx, topic, ev)
}

// Shutdown stops every room hosted here and waits for their exits to be handled.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	rooms := o.Registry.Rooms()
	o.logger.Info().Int("rooms", len(rooms)).Msg("shutting down rooms")

	var wg conc.WaitGroup
	for _, room := range rooms {
		wg.Go(func() {
			if err := room.Stop(ctx); err != nil {
				o.logger.Warn().Err(err).Str("room_id", string(room.ID())).Msg("stop room")
			}
		})
	}
	wg.Wait()

	done := make(chan struct{})
	go func() {
		o.monitors.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
