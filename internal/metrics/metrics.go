package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "conductor",
		Name:      "rooms_active",
		Help:      "Rooms currently hosted by this node.",
	})

	// Placements counts CreateRoom outcomes by where the room landed.
	Placements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conductor",
		Name:      "room_placements_total",
		Help:      "Rooms placed, labelled local or forwarded.",
	}, []string{"target"})

	RoomExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conductor",
		Name:      "room_exits_total",
		Help:      "Room terminations by reason.",
	}, []string{"reason"})

	GatherMissing = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "conductor",
		Name:      "resource_replies_missing_total",
		Help:      "Nodes that did not answer a resource request in time.",
	})

	ServiceOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conductor",
		Name:      "service_operations_total",
		Help:      "API operations by name and outcome.",
	}, []string{"op", "status", "code"})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
