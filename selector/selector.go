// Package selector picks the slave that serves read queries.
//
// Every slave of a profile is probed once (by opening a connection to it)
// and the healthy ones are cached for a while, so that most units of work
// only pay for a cache lookup. Among the healthy slaves, Weighted picks one
// at random proportionally to its weight and RoundRobin cycles through them.
package selector

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ice-blockchain/go-dbproxy/config"
	"github.com/ice-blockchain/go-dbproxy/driver"
	"github.com/ice-blockchain/go-dbproxy/logger"
)

// DefaultTTL is how long probe results stay cached.
const DefaultTTL = time.Minute

var (
	ErrNoSlaves      = errors.New("no slaves configured")
	ErrNoHealthyNode = errors.New("no healthy slave available")
)

// Selector returns the id of one healthy node among nodes.
type Selector interface {
	Select(ctx context.Context, nodes map[string]config.Node) (string, error)
}

// Prober checks whether a node accepts connections.
type Prober interface {
	Probe(ctx context.Context, node config.Node) error
}

type ProberFunc func(ctx context.Context, node config.Node) error

func (f ProberFunc) Probe(ctx context.Context, node config.Node) error {
	return f(ctx, node)
}

// DriverProber opens and immediately closes a connection to the node.
type DriverProber struct {
	Registry *driver.Registry
}

func (p DriverProber) Probe(ctx context.Context, node config.Node) error {
	registry := p.Registry
	if registry == nil {
		registry = driver.Default
	}
	conn, err := registry.Open(ctx, node)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Candidate is a healthy node.
type Candidate struct {
	ID     string `msgpack:"id"`
	Weight int    `msgpack:"weight"`
}

type Opts struct {
	// Prober defaults to DriverProber on the default driver registry.
	Prober Prober
	// Cache defaults to DefaultCache.
	Cache HealthCache
	// TTL defaults to DefaultTTL.
	TTL    time.Duration
	Logger logger.Logger
}

func (o Opts) withDefaults() Opts {
	if o.Prober == nil {
		o.Prober = DriverProber{}
	}
	if o.Cache == nil {
		o.Cache = DefaultCache
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Logger == nil {
		o.Logger = logger.SimpleLogger{}
	}
	return o
}

type health struct {
	opts Opts
}

// Available returns the healthy nodes, ordered by id. Probe results are
// served from the cache when possible. A failing cache is reported and
// bypassed.
func (h *health) Available(ctx context.Context, nodes map[string]config.Node) ([]Candidate, error) {
	if len(nodes) == 0 {
		return nil, ErrNoSlaves
	}

	key := CacheKey(nodes)
	cached, ok, err := h.opts.Cache.Get(ctx, key)
	if err != nil {
		h.opts.Logger.Report(logger.NewHealthCacheFailedEvent(key, err))
	} else if ok {
		return cached, nil
	}

	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	candidates := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		node := nodes[id]
		if err := h.opts.Prober.Probe(ctx, node); err != nil {
			h.opts.Logger.Report(logger.NewNodeDownEvent(id, node.Host, err))
			continue
		}
		candidates = append(candidates, Candidate{ID: id, Weight: node.Weight})
	}
	if len(candidates) == 0 {
		return nil, ErrNoHealthyNode
	}

	if err := h.opts.Cache.Set(ctx, key, candidates, h.opts.TTL); err != nil {
		h.opts.Logger.Report(logger.NewHealthCacheFailedEvent(key, err))
	}
	return candidates, nil
}

// Weighted picks a healthy node at random, proportionally to its weight.
// Nodes without a positive weight count as weight 1.
type Weighted struct {
	health
	intn func(n int) int
}

var _ Selector = (*Weighted)(nil)

func NewWeighted(opts Opts) *Weighted {
	return &Weighted{
		health: health{opts: opts.withDefaults()},
		intn:   rand.Intn,
	}
}

func (w *Weighted) Select(ctx context.Context, nodes map[string]config.Node) (string, error) {
	candidates, err := w.Available(ctx, nodes)
	if err != nil {
		return "", err
	}

	total := 0
	for _, c := range candidates {
		total += weightOf(c)
	}
	pick := w.intn(total)
	for _, c := range candidates {
		pick -= weightOf(c)
		if pick < 0 {
			return c.ID, nil
		}
	}
	return candidates[len(candidates)-1].ID, nil
}

func weightOf(c Candidate) int {
	if c.Weight <= 0 {
		return 1
	}
	return c.Weight
}

// RoundRobin cycles through the healthy nodes in id order, ignoring
// weights. It is safe for concurrent use.
type RoundRobin struct {
	health
	current uint64
}

var _ Selector = (*RoundRobin)(nil)

func NewRoundRobin(opts Opts) *RoundRobin {
	return &RoundRobin{health: health{opts: opts.withDefaults()}}
}

func (r *RoundRobin) Select(ctx context.Context, nodes map[string]config.Node) (string, error) {
	candidates, err := r.Available(ctx, nodes)
	if err != nil {
		return "", err
	}
	return candidates[r.nextIndex(uint64(len(candidates)))].ID, nil
}

func (r *RoundRobin) nextIndex(size uint64) uint64 {
	next := atomic.AddUint64(&r.current, 1)
	return (next - 1) % size
}
