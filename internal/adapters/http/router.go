package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/Conductor/internal/adapters/signal"
	"github.com/dkeye/Conductor/internal/app/orch"
	"github.com/dkeye/Conductor/internal/config"
	"github.com/dkeye/Conductor/internal/metrics"
	"github.com/dkeye/Conductor/internal/notify"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RequestLogger logs each request with zerolog once it has been served.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("module", "adapters.http").
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, bus *notify.Bus) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(RequestLogger())
	}
	r.Use(gin.Recovery())

	h := &handlers{orch: o}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "up", "node": o.Cluster.Self(), "rooms": o.Rooms.Len()})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	room := r.Group("/room")
	room.POST("", h.createRoom)
	room.GET("", h.listRooms)
	room.GET("/:room_id", h.getRoom)
	room.DELETE("/:room_id", h.deleteRoom)
	room.POST("/:room_id/peer", h.addPeer)
	room.DELETE("/:room_id/peer/:id", h.removePeer)
	room.POST("/:room_id/component", h.addComponent)
	room.DELETE("/:room_id/component/:id", h.removeComponent)

	events := signal.NewEventsWSController(bus)
	r.GET("/socket/server/websocket", func(c *gin.Context) {
		events.HandleEvents(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
