package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/dkeye/Conductor/internal/notify"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

// EventsWSController streams notification bus events to websocket clients.
type EventsWSController struct {
	Bus *notify.Bus
}

func NewEventsWSController(bus *notify.Bus) *EventsWSController {
	return &EventsWSController{Bus: bus}
}

type WsEventConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
	subs   map[notify.Topic]*notify.Subscription
}

func (c *WsEventConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsEventConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleEvents upgrades the request and subscribes it to the server topic.
func (ctl *EventsWSController) HandleEvents(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("remote", c.ClientIP()).Msg("new events WS connection")

	conn := &WsEventConn{
		conn: ws,
		send: make(chan []byte, 32),
		subs: make(map[notify.Topic]*notify.Subscription),
	}
	ctx, cancel := context.WithCancel(ctx)
	ctl.subscribe(ctx, conn, notify.ServerTopic)

	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, conn)
	}()
}

// subscribe forwards one topic to conn until ctx ends or conn closes.
func (ctl *EventsWSController) subscribe(ctx context.Context, conn *WsEventConn, topic notify.Topic) {
	conn.mu.Lock()
	if conn.closed {
		conn.mu.Unlock()
		return
	}
	if _, ok := conn.subs[topic]; ok {
		conn.mu.Unlock()
		return
	}
	sub := ctl.Bus.Subscribe(topic)
	conn.subs[topic] = sub
	conn.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				ctl.sendJSON(conn, eventMessage{Type: "event", Topic: topic, Event: ev})
			}
		}
	}()
}

func (ctl *EventsWSController) unsubscribe(conn *WsEventConn, topic notify.Topic) {
	conn.mu.Lock()
	sub, ok := conn.subs[topic]
	delete(conn.subs, topic)
	conn.mu.Unlock()
	if ok {
		sub.Close()
	}
}
