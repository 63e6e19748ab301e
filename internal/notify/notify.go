// Package notify delivers room lifecycle events to topic subscribers.
package notify

import (
	"context"
	"time"

	"github.com/dkeye/Conductor/internal/domain"
)

//go:generate mockgen -destination=mock_notify/mock_publisher.go -package=mock_notify github.com/dkeye/Conductor/internal/notify Publisher

type Topic string

// ServerTopic carries events about every room on the node.
const ServerTopic Topic = "server_notification"

func RoomTopic(id domain.RoomID) Topic { return Topic("room:" + string(id)) }

type EventType string

const (
	RoomCreated EventType = "room_created"
	RoomDeleted EventType = "room_deleted"
	RoomStopped EventType = "room_stopped"
	RoomCrashed EventType = "room_crashed"
)

type Event struct {
	Type   EventType     `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	Node   string        `json:"node,omitempty"`
	Reason string        `json:"reason,omitempty"`
	At     time.Time     `json:"at"`
}

// Publisher never blocks the caller on slow subscribers.
type Publisher interface {
	Publish(ctx context.Context, topic Topic, ev Event)
}

// Fanout publishes every event to all of its publishers in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, topic Topic, ev Event) {
	for _, p := range f {
		p.Publish(ctx, topic, ev)
	}
}
