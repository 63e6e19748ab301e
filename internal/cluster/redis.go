package cluster

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Conductor/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	kindUsageRequest  = "usage_req"
	kindUsageReply    = "usage_resp"
	kindCreateRequest = "create_req"
	kindCreateReply   = "create_resp"
)

type envelope struct {
	Kind    string             `msgpack:"kind"`
	ID      string             `msgpack:"id"`
	From    NodeID             `msgpack:"from"`
	Code    string             `msgpack:"code,omitempty"`
	Message string             `msgpack:"message,omitempty"`
	Body    msgpack.RawMessage `msgpack:"body,omitempty"`
}

type RedisOptions struct {
	// Prefix namespaces every key and channel, "conductor" when empty.
	Prefix    string
	Heartbeat time.Duration
	MemberTTL time.Duration
}

// RedisTransport discovers members through a heartbeat sorted set and
// exchanges requests over one pub/sub channel per node.
type RedisTransport struct {
	rdb     *redis.Client
	self    NodeID
	opts    RedisOptions
	handler atomic.Pointer[Handler]
	logger  zerolog.Logger

	mu      sync.Mutex
	pending map[string]chan envelope

	pubsub *redis.PubSub
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Transport = (*RedisTransport)(nil)

func NewRedisTransport(rdb *redis.Client, self NodeID, opts RedisOptions) *RedisTransport {
	if opts.Prefix == "" {
		opts.Prefix = "conductor"
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 2 * time.Second
	}
	if opts.MemberTTL <= 0 {
		opts.MemberTTL = 3 * opts.Heartbeat
	}
	return &RedisTransport{
		rdb:     rdb,
		self:    self,
		opts:    opts,
		logger:  log.With().Str("module", "cluster.redis").Str("node", string(self)).Logger(),
		pending: make(map[string]chan envelope),
	}
}

func (t *RedisTransport) Self() NodeID   { return t.self }
func (t *RedisTransport) Bind(h Handler) { t.handler.Store(&h) }

func (t *RedisTransport) membersKey() string { return t.opts.Prefix + ":nodes" }

func (t *RedisTransport) channel(node NodeID) string {
	return t.opts.Prefix + ":node:" + string(node)
}

// Start subscribes to this node's channel and begins heartbeating.
// It returns once the subscription is confirmed.
func (t *RedisTransport) Start(ctx context.Context) error {
	ps := t.rdb.Subscribe(ctx, t.channel(t.self))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("subscribe %s: %w", t.channel(t.self), err)
	}
	if err := t.beat(ctx); err != nil {
		_ = ps.Close()
		return err
	}
	t.pubsub = ps

	runCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.wg.Add(2)
	go func() { defer t.wg.Done(); t.serve(runCtx, ps.Channel()) }()
	go func() { defer t.wg.Done(); t.heartbeat(runCtx) }()

	t.logger.Info().Str("channel", t.channel(t.self)).Msg("cluster transport started")
	return nil
}

// Close leaves the member set and stops serving requests.
func (t *RedisTransport) Close() error {
	if t.cancel == nil {
		return nil
	}
	t.cancel()
	err := t.pubsub.Close()
	t.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if rerr := t.rdb.ZRem(ctx, t.membersKey(), string(t.self)).Err(); rerr != nil {
		err = errors.Join(err, rerr)
	}
	return err
}

func (t *RedisTransport) beat(ctx context.Context) error {
	now := time.Now()
	pipe := t.rdb.TxPipeline()
	pipe.ZAdd(ctx, t.membersKey(), redis.Z{Score: float64(now.UnixMilli()), Member: string(t.self)})
	pipe.ZRemRangeByScore(ctx, t.membersKey(), "-inf", "("+strconv.FormatInt(now.Add(-t.opts.MemberTTL).UnixMilli(), 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

func (t *RedisTransport) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(t.opts.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.beat(ctx); err != nil && ctx.Err() == nil {
				t.logger.Warn().Err(err).Msg("heartbeat failed")
			}
		}
	}
}

func (t *RedisTransport) Members(ctx context.Context) ([]NodeID, error) {
	floor := strconv.FormatInt(time.Now().Add(-t.opts.MemberTTL).UnixMilli(), 10)
	names, err := t.rdb.ZRangeByScore(ctx, t.membersKey(), &redis.ZRangeBy{Min: floor, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	out := make([]NodeID, 0, len(names)+1)
	for _, n := range names {
		out = append(out, NodeID(n))
	}
	if !slices.Contains(out, t.self) {
		out = append(out, t.self)
	}
	slices.Sort(out)
	return out, nil
}

func (t *RedisTransport) RequestUsage(ctx context.Context, node NodeID) (Usage, error) {
	resp, err := t.request(ctx, node, kindUsageRequest, nil)
	if err != nil {
		return Usage{}, err
	}
	var u Usage
	if err := msgpack.Unmarshal(resp.Body, &u); err != nil {
		return Usage{}, fmt.Errorf("decode usage from %s: %w", node, err)
	}
	return u, nil
}

func (t *RedisTransport) CreateRoom(ctx context.Context, node NodeID, cfg domain.RoomConfig) (CreateRoomResult, error) {
	resp, err := t.request(ctx, node, kindCreateRequest, cfg)
	if err != nil {
		return CreateRoomResult{}, err
	}
	var res CreateRoomResult
	if err := msgpack.Unmarshal(resp.Body, &res); err != nil {
		return CreateRoomResult{}, fmt.Errorf("decode room from %s: %w", node, err)
	}
	return res, nil
}

func (t *RedisTransport) request(ctx context.Context, node NodeID, kind string, body any) (envelope, error) {
	req := envelope{Kind: kind, ID: uuid.NewString(), From: t.self}
	if body != nil {
		raw, err := msgpack.Marshal(body)
		if err != nil {
			return envelope{}, fmt.Errorf("encode %s: %w", kind, err)
		}
		req.Body = raw
	}
	payload, err := msgpack.Marshal(req)
	if err != nil {
		return envelope{}, fmt.Errorf("encode %s: %w", kind, err)
	}

	ch := make(chan envelope, 1)
	t.mu.Lock()
	t.pending[req.ID] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, req.ID)
		t.mu.Unlock()
	}()

	receivers, err := t.rdb.Publish(ctx, t.channel(node), payload).Result()
	if err != nil {
		return envelope{}, fmt.Errorf("publish %s to %s: %w", kind, node, err)
	}
	if receivers == 0 {
		return envelope{}, fmt.Errorf("%w: %s", ErrUnknownNode, node)
	}

	select {
	case resp := <-ch:
		if resp.Code != "" || resp.Message != "" {
			return resp, remoteError(node, resp)
		}
		return resp, nil
	case <-ctx.Done():
		return envelope{}, ctx.Err()
	}
}

func remoteError(node NodeID, resp envelope) error {
	if err := domain.ErrorFromCode(resp.Code); err != nil {
		return fmt.Errorf("node %s: %w", node, err)
	}
	return fmt.Errorf("node %s: %s", node, resp.Message)
}

func (t *RedisTransport) serve(ctx context.Context, msgs <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var env envelope
			if err := msgpack.Unmarshal([]byte(msg.Payload), &env); err != nil {
				t.logger.Warn().Err(err).Msg("malformed cluster message")
				continue
			}
			t.dispatch(ctx, env)
		}
	}
}

func (t *RedisTransport) dispatch(ctx context.Context, env envelope) {
	switch env.Kind {
	case kindUsageReply, kindCreateReply:
		t.mu.Lock()
		ch, ok := t.pending[env.ID]
		delete(t.pending, env.ID)
		t.mu.Unlock()
		if !ok {
			t.logger.Debug().Str("from", string(env.From)).Str("id", env.ID).Msg("late or duplicate reply dropped")
			return
		}
		ch <- env
	case kindUsageRequest:
		h := t.handler.Load()
		if h == nil {
			t.reply(ctx, env, kindUsageReply, nil, ErrNotBound)
			return
		}
		t.reply(ctx, env, kindUsageReply, (*h).LocalUsage(), nil)
	case kindCreateRequest:
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.serveCreate(ctx, env)
		}()
	default:
		t.logger.Warn().Str("kind", env.Kind).Msg("unknown cluster message")
	}
}

func (t *RedisTransport) serveCreate(ctx context.Context, env envelope) {
	h := t.handler.Load()
	if h == nil {
		t.reply(ctx, env, kindCreateReply, nil, ErrNotBound)
		return
	}
	var cfg domain.RoomConfig
	if err := msgpack.Unmarshal(env.Body, &cfg); err != nil {
		t.reply(ctx, env, kindCreateReply, nil, fmt.Errorf("decode room config: %w", err))
		return
	}
	res, err := (*h).CreateLocalRoom(ctx, cfg)
	if err != nil {
		t.reply(ctx, env, kindCreateReply, nil, err)
		return
	}
	t.reply(ctx, env, kindCreateReply, res, nil)
}

func (t *RedisTransport) reply(ctx context.Context, req envelope, kind string, body any, cause error) {
	resp := envelope{Kind: kind, ID: req.ID, From: t.self}
	if cause != nil {
		resp.Code = domain.ErrorCode(cause)
		resp.Message = cause.Error()
	} else if body != nil {
		raw, err := msgpack.Marshal(body)
		if err != nil {
			resp.Code, resp.Message = "", err.Error()
		} else {
			resp.Body = raw
		}
	}
	payload, err := msgpack.Marshal(resp)
	if err != nil {
		t.logger.Error().Err(err).Msg("encode reply")
		return
	}
	if err := t.rdb.Publish(ctx, t.channel(req.From), payload).Err(); err != nil {
		t.logger.Warn().Err(err).Str("to", string(req.From)).Msg("reply not delivered")
	}
}
