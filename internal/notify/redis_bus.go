package notify

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const channelPrefix = "conductor:notify:"

// RedisBus mirrors events to redis so other processes can follow them.
type RedisBus struct {
	rdb *redis.Client
}

// NewRedisBus verifies connectivity before returning.
func NewRedisBus(ctx context.Context, rdb *redis.Client) (*RedisBus, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisBus{rdb: rdb}, nil
}

func channel(topic Topic) string { return channelPrefix + string(topic) }

func (b *RedisBus) Publish(ctx context.Context, topic Topic, ev Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		log.Error().Str("module", "notify.redis").Err(err).Msg("encode event")
		return
	}
	if err := b.rdb.Publish(ctx, channel(topic), raw).Err(); err != nil {
		log.Warn().Str("module", "notify.redis").Str("topic", string(topic)).Err(err).Msg("publish failed")
	}
}

// Subscribe invokes fn for every event on every topic until ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context, fn func(Topic, Event)) {
	pubsub := b.rdb.PSubscribe(ctx, channel("*"))
	defer pubsub.Close()
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil || ev.Type == "" {
				continue
			}
			fn(Topic(strings.TrimPrefix(msg.Channel, channelPrefix)), ev)
		}
	}
}

// Forward replays events published by other nodes into dst until ctx is done.
// Events from self are skipped because they already reached dst locally.
func (b *RedisBus) Forward(ctx context.Context, dst Publisher, self string) {
	b.Subscribe(ctx, func(topic Topic, ev Event) {
		if ev.Node == self {
			return
		}
		dst.Publish(ctx, topic, ev)
	})
}

func (b *RedisBus) Close() error { return b.rdb.Close() }
