// Package benchmark measures named intervals for the proxy.
package benchmark

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

const (
	KeyConnections = "db_connections"
	KeyQueries     = "db_queries"
)

// Timer measures named intervals. Stop returns the time elapsed since the
// matching Start, or zero if the key was never started.
type Timer interface {
	Start(key string)
	Stop(key string) time.Duration
}

// Nop measures nothing.
type Nop struct{}

func (Nop) Start(string)               {}
func (Nop) Stop(string) time.Duration { return 0 }

// Benchmark keeps running totals per key and feeds every measurement into
// a histogram named dbproxy_timing_seconds{key="<key>"}.
type Benchmark struct {
	mu      sync.Mutex
	started map[string]time.Time
	totals  map[string]time.Duration
	counts  map[string]int
	set     *metrics.Set
	now     func() time.Time
}

func New() *Benchmark {
	return &Benchmark{
		started: make(map[string]time.Time),
		totals:  make(map[string]time.Duration),
		counts:  make(map[string]int),
		set:     metrics.NewSet(),
		now:     time.Now,
	}
}

func (b *Benchmark) Start(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.started[key] = b.now()
}

func (b *Benchmark) Stop(key string) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	start, ok := b.started[key]
	if !ok {
		return 0
	}
	delete(b.started, key)

	elapsed := b.now().Sub(start)
	b.totals[key] += elapsed
	b.counts[key]++
	b.set.GetOrCreateHistogram(histogramName(key)).Update(elapsed.Seconds())
	return elapsed
}

// Total returns the sum of every interval measured under key.
func (b *Benchmark) Total(key string) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.totals[key]
}

// Count returns how many intervals were measured under key.
func (b *Benchmark) Count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts[key]
}

// Set exposes the metrics set, e.g. to register it globally with
// metrics.RegisterSet.
func (b *Benchmark) Set() *metrics.Set {
	return b.set
}

// WritePrometheus writes the histograms in Prometheus text format.
func (b *Benchmark) WritePrometheus(w io.Writer) {
	b.set.WritePrometheus(w)
}

func histogramName(key string) string {
	return fmt.Sprintf("dbproxy_timing_seconds{key=%q}", key)
}
