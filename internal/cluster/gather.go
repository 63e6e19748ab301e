package cluster

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// GatherResult holds the usages that arrived before the deadline.
// Usages always contains the local node first.
type GatherResult struct {
	Usages  []Usage
	Missing []NodeID
}

// Gather asks every other member for its usage and waits at most timeout.
// Nodes that fail or stay silent are reported in Missing and never abort the round.
func Gather(ctx context.Context, t Transport, local Usage, timeout time.Duration) GatherResult {
	logger := log.With().Str("module", "cluster.gather").Str("node", string(t.Self())).Logger()
	res := GatherResult{Usages: []Usage{local}}

	members, err := t.Members(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("cluster members unavailable, using local node only")
		return res
	}
	expected := make(map[NodeID]struct{}, len(members))
	for _, m := range members {
		if m != t.Self() {
			expected[m] = struct{}{}
		}
	}
	if len(expected) == 0 {
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	replies := make(chan Usage, len(expected))
	var wg conc.WaitGroup
	for node := range expected {
		wg.Go(func() {
			u, err := t.RequestUsage(ctx, node)
			if err != nil {
				logger.Debug().Err(err).Str("peer", string(node)).Msg("usage request failed")
				return
			}
			replies <- u
		})
	}
	finished := make(chan struct{})
	go func() {
		if r := wg.WaitAndRecover(); r != nil {
			logger.Error().Str("panic", r.String()).Msg("usage request panicked")
		}
		close(finished)
	}()

	got := make(map[NodeID]Usage, len(expected))
	accept := func(u Usage) {
		if _, ok := expected[u.Node]; !ok {
			logger.Debug().Str("peer", string(u.Node)).Msg("reply from unexpected node")
			return
		}
		if _, dup := got[u.Node]; dup {
			return
		}
		got[u.Node] = u
	}

collect:
	for len(got) < len(expected) {
		select {
		case u := <-replies:
			accept(u)
		case <-finished:
			for {
				select {
				case u := <-replies:
					accept(u)
				default:
					break collect
				}
			}
		case <-ctx.Done():
			break collect
		}
	}

	for node := range expected {
		if u, ok := got[node]; ok {
			res.Usages = append(res.Usages, u)
		} else {
			res.Missing = append(res.Missing, node)
		}
	}
	slices.SortFunc(res.Usages[1:], func(a, b Usage) int { return cmp.Compare(a.Node, b.Node) })
	slices.Sort(res.Missing)

	if len(res.Missing) > 0 {
		missing := make([]string, len(res.Missing))
		for i, n := range res.Missing {
			missing[i] = string(n)
		}
		logger.Warn().Strs("nodes", missing).Dur("timeout", timeout).Msg("nodes did not report resource usage")
	}
	return res
}
