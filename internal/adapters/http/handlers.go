package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/dkeye/Conductor/internal/app/orch"
	"github.com/dkeye/Conductor/internal/domain"
	"github.com/dkeye/Conductor/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	orch *orch.Orchestrator
}

type createRoomRequest struct {
	MaxPeers   any `json:"maxPeers"`
	VideoCodec any `json:"videoCodec"`
}

type addEndpointRequest struct {
	Type    string         `json:"type" binding:"required"`
	Options map[string]any `json:"options"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrPeerNotFound),
		errors.Is(err, domain.ErrComponentNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrReachedPeersLimit):
		return http.StatusServiceUnavailable
	case domain.ErrorCode(err) != "":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, op string, err error) {
	status := statusOf(err)
	code := domain.ErrorCode(err)
	metrics.ServiceOperations.WithLabelValues(op, "error", code).Inc()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("op", op).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func succeeded(op string) {
	metrics.ServiceOperations.WithLabelValues(op, "success", "").Inc()
}

func (h *handlers) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := h.orch.CreateRoom(c.Request.Context(), req.MaxPeers, req.VideoCodec)
	if err != nil {
		respondError(c, "create_room", err)
		return
	}
	succeeded("create_room")
	c.JSON(http.StatusCreated, gin.H{"data": res})
}

func (h *handlers) listRooms(c *gin.Context) {
	rooms, err := h.orch.ListRooms(c.Request.Context())
	if err != nil {
		respondError(c, "list_rooms", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rooms})
}

func (h *handlers) getRoom(c *gin.Context) {
	snap, err := h.orch.GetRoom(c.Request.Context(), domain.RoomID(c.Param("room_id")))
	if err != nil {
		respondError(c, "get_room", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snap})
}

func (h *handlers) deleteRoom(c *gin.Context) {
	if err := h.orch.DeleteRoom(c.Request.Context(), domain.RoomID(c.Param("room_id"))); err != nil {
		respondError(c, "delete_room", err)
		return
	}
	succeeded("delete_room")
	c.Status(http.StatusNoContent)
}

func (h *handlers) addPeer(c *gin.Context) {
	var req addEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "peer type not provided"})
		return
	}
	peer, err := h.orch.AddPeer(c.Request.Context(), domain.RoomID(c.Param("room_id")), domain.PeerType(req.Type), req.Options)
	if err != nil {
		respondError(c, "add_peer", err)
		return
	}
	succeeded("add_peer")
	c.JSON(http.StatusCreated, gin.H{"data": peer})
}

func (h *handlers) removePeer(c *gin.Context) {
	err := h.orch.RemovePeer(c.Request.Context(), domain.RoomID(c.Param("room_id")), domain.PeerID(c.Param("id")))
	if err != nil {
		respondError(c, "remove_peer", err)
		return
	}
	succeeded("remove_peer")
	c.Status(http.StatusNoContent)
}

func (h *handlers) addComponent(c *gin.Context) {
	var req addEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "component type not provided"})
		return
	}
	comp, err := h.orch.AddComponent(c.Request.Context(), domain.RoomID(c.Param("room_id")), domain.ComponentType(req.Type), req.Options)
	if err != nil {
		respondError(c, "add_component", err)
		return
	}
	succeeded("add_component")
	c.JSON(http.StatusCreated, gin.H{"data": comp})
}

func (h *handlers) removeComponent(c *gin.Context) {
	err := h.orch.RemoveComponent(c.Request.Context(), domain.RoomID(c.Param("room_id")), domain.ComponentID(c.Param("id")))
	if err != nil {
		respondError(c, "remove_component", err)
		return
	}
	succeeded("remove_component")
	c.Status(http.StatusNoContent)
}
