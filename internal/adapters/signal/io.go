package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Conductor/internal/domain"
	"github.com/dkeye/Conductor/internal/notify"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type eventMessage struct {
	Type  string       `json:"type"`
	Topic notify.Topic `json:"topic"`
	Event notify.Event `json:"event"`
}

type controlMessage struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId,omitempty"`
}

func (ctl *EventsWSController) writePump(ctx context.Context, c *WsEventConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			c.Close()
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *EventsWSController) readPump(ctx context.Context, c *WsEventConn) {
	defer func() {
		log.Info().Str("module", "signal").Msg("readPump closing")
		c.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Str("module", "signal").Msg("readPump read error")
			}
			return
		}
		ctl.handleControl(ctx, c, data)
	}
}

func (ctl *EventsWSController) handleControl(ctx context.Context, c *WsEventConn, data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch msg.Type {
	case "ping":
		ctl.sendJSON(c, controlMessage{Type: "pong"})
	case "subscribe":
		if msg.RoomID == "" {
			return
		}
		ctl.subscribe(ctx, c, notify.RoomTopic(msg.RoomID))
		ctl.sendJSON(c, controlMessage{Type: "subscribed", RoomID: msg.RoomID})
	case "unsubscribe":
		ctl.unsubscribe(c, notify.RoomTopic(msg.RoomID))
	default:
		log.Warn().Str("module", "signal").Str("type", msg.Type).Msg("unknown control message")
	}
}

func (ctl *EventsWSController) sendJSON(c *WsEventConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("event not delivered")
	}
}
