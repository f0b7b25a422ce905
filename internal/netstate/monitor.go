// Package netstate turns periodic reachability probes into online/offline
// edges.
package netstate

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Edge is a change in reachability. Online edges are "connectivity restored".
type Edge struct {
	Online bool
	At     time.Time
}

// Prober checks whether the remote is reachable.
type Prober interface {
	Ping(ctx context.Context) error
}

// Monitor tracks reachability and fans edges out to subscribers. The first
// observation after start counts as an edge, so a process that starts online
// sees one "restored" edge.
type Monitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	known  bool
	online bool
	subs   []chan Edge
}

// NewMonitor creates a Monitor probing every interval.
func NewMonitor(prober Prober, interval time.Duration, log *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Monitor{prober: prober, interval: interval, timeout: 5 * time.Second, log: log}
}

// Online reports the last observed state. Unknown counts as offline.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.known && m.online
}

// Subscribe returns a channel receiving every subsequent edge. A slow
// subscriber only ever misses intermediate edges, never the latest one.
func (m *Monitor) Subscribe() <-chan Edge {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan Edge, 1)
	m.subs = append(m.subs, ch)
	return ch
}

// Observe records a reachability observation and publishes an edge when it
// differs from the previous one.
func (m *Monitor) Observe(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.known && m.online == online {
		return
	}
	m.known = true
	m.online = online

	edge := Edge{Online: online, At: time.Now()}
	if m.log != nil {
		m.log.Info("connectivity changed", "online", online)
	}
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- edge
	}
}

// Probe performs one reachability check and records the result.
func (m *Monitor) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.prober.Ping(ctx)
	if err != nil && m.log != nil {
		m.log.Debug("reachability probe failed", "error", err)
	}
	m.Observe(err == nil)
	return err == nil
}

// Run probes immediately and then every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ticker.C:
			m.Probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}
