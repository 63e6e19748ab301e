package cluster

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Conductor/internal/domain"
)

// MemoryNetwork connects coordinators living in one process.
type MemoryNetwork struct {
	mu    sync.RWMutex
	nodes map[NodeID]*MemoryTransport
}

func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{nodes: make(map[NodeID]*MemoryTransport)}
}

// Join adds a node to the network and returns its transport.
func (n *MemoryNetwork) Join(id NodeID) *MemoryTransport {
	t := &MemoryTransport{net: n, self: id}
	n.mu.Lock()
	n.nodes[id] = t
	n.mu.Unlock()
	return t
}

func (n *MemoryNetwork) Leave(id NodeID) {
	n.mu.Lock()
	delete(n.nodes, id)
	n.mu.Unlock()
}

func (n *MemoryNetwork) node(id NodeID) (*MemoryTransport, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	t, ok := n.nodes[id]
	return t, ok
}

// MemoryTransport is one node's view of a MemoryNetwork.
type MemoryTransport struct {
	net     *MemoryNetwork
	self    NodeID
	handler atomic.Pointer[Handler]

	unresponsive atomic.Bool
	usageServed  atomic.Int64
	createServed atomic.Int64
}

var _ Transport = (*MemoryTransport)(nil)

func (t *MemoryTransport) Self() NodeID { return t.self }

func (t *MemoryTransport) Bind(h Handler) { t.handler.Store(&h) }

// SetUnresponsive makes the node swallow requests until the caller gives up.
func (t *MemoryTransport) SetUnresponsive(v bool) { t.unresponsive.Store(v) }

// UsageServed and CreateServed count requests this node has answered.
func (t *MemoryTransport) UsageServed() int64  { return t.usageServed.Load() }
func (t *MemoryTransport) CreateServed() int64 { return t.createServed.Load() }

func (t *MemoryTransport) Members(context.Context) ([]NodeID, error) {
	t.net.mu.RLock()
	out := make([]NodeID, 0, len(t.net.nodes))
	for id := range t.net.nodes {
		out = append(out, id)
	}
	t.net.mu.RUnlock()
	slices.Sort(out)
	return out, nil
}

func (t *MemoryTransport) target(ctx context.Context, node NodeID) (Handler, *MemoryTransport, error) {
	peer, ok := t.net.node(node)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownNode, node)
	}
	if peer.unresponsive.Load() {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	h := peer.handler.Load()
	if h == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotBound, node)
	}
	return *h, peer, nil
}

func (t *MemoryTransport) RequestUsage(ctx context.Context, node NodeID) (Usage, error) {
	h, peer, err := t.target(ctx, node)
	if err != nil {
		return Usage{}, err
	}
	peer.usageServed.Add(1)
	return h.LocalUsage(), nil
}

func (t *MemoryTransport) CreateRoom(ctx context.Context, node NodeID, cfg domain.RoomConfig) (CreateRoomResult, error) {
	h, peer, err := t.target(ctx, node)
	if err != nil {
		return CreateRoomResult{}, err
	}
	peer.createServed.Add(1)
	return h.CreateLocalRoom(ctx, cfg)
}
