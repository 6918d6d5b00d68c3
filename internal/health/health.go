// Package health implements Metrics & Health (C8): atomic counters for
// the events spec §7/§8 requires observability into, plus a process
// health snapshot. The counter style (plain atomics behind a struct,
// snapshot method for serving) is grounded on the teacher's
// internal/profiling.Profiler; process-level signals are grounded on
// internal/budget/cpuwatcher.go's use of gopsutil/v3.
package health

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/vthunder/bud2/internal/cache"
)

// Counters tracks the event counts spec §7/§8 call out: resolve calls,
// fallbacks, adapter failures, deadline timeouts, and resolutions by
// outcome. Cache activity is not counted here; Snapshot reads it from
// the caches themselves. Safe for concurrent use.
type Counters struct {
	ResolveCalls      int64
	FallbackCount     int64
	TimeoutCount      int64
	AdapterFailures   int64
	ContinueCount     int64
	CreateCount       int64
	BranchCount       int64
	ReactivateCount   int64
}

func (c *Counters) IncResolveCalls()    { atomic.AddInt64(&c.ResolveCalls, 1) }
func (c *Counters) IncFallback()        { atomic.AddInt64(&c.FallbackCount, 1) }
func (c *Counters) IncTimeout()         { atomic.AddInt64(&c.TimeoutCount, 1) }
func (c *Counters) IncAdapterFailure()  { atomic.AddInt64(&c.AdapterFailures, 1) }

func (c *Counters) IncAction(action string) {
	switch action {
	case "continued":
		atomic.AddInt64(&c.ContinueCount, 1)
	case "created":
		atomic.AddInt64(&c.CreateCount, 1)
	case "branched":
		atomic.AddInt64(&c.BranchCount, 1)
	case "reactivated":
		atomic.AddInt64(&c.ReactivateCount, 1)
	}
}

// Snapshot is a point-in-time, JSON-friendly copy of Counters plus
// cache and process signals.
type Snapshot struct {
	ResolveCalls    int64        `json:"resolve_calls"`
	FallbackCount   int64        `json:"fallback_count"`
	TimeoutCount    int64        `json:"timeout_count"`
	AdapterFailures int64        `json:"adapter_failures"`
	ActionCounts    map[string]int64 `json:"action_counts"`
	EmbeddingCache  cache.Stats  `json:"embedding_cache"`
	ContextCache    cache.Stats  `json:"context_cache"`
	ProcessCPUPct   float64      `json:"process_cpu_percent"`
	ProcessRSSBytes uint64       `json:"process_rss_bytes"`
	Uptime          time.Duration `json:"uptime"`
}

// Monitor owns the global counters and the process handle used for
// self health checks.
type Monitor struct {
	counters       Counters
	embeddingCache cacheStatser
	contextCache   cacheStatser
	startedAt      time.Time
	proc           *process.Process
}

// cacheStatser is satisfied by any cache.TTLCache[V] (regardless of its
// value type) or anything that exposes its own cache this way, such as
// embeddingclient.Client and threadcontext.Builder, so Monitor can
// report stats without being generic itself or reaching into either
// package's internals.
type cacheStatser interface {
	Stats() cache.Stats
}

// New creates a Monitor. Either cache may be nil if caching is disabled.
func New(embeddingCache cacheStatser, contextCache cacheStatser) *Monitor {
	m := &Monitor{
		embeddingCache: embeddingCache,
		contextCache:   contextCache,
		startedAt:      time.Now(),
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = proc
	}
	return m
}

// Counters returns the mutable counter set for the orchestrator to record against.
func (m *Monitor) Counters() *Counters { return &m.counters }

// Snapshot renders the current state for a health endpoint or log line.
func (m *Monitor) Snapshot() Snapshot {
	snap := Snapshot{
		ResolveCalls:    atomic.LoadInt64(&m.counters.ResolveCalls),
		FallbackCount:   atomic.LoadInt64(&m.counters.FallbackCount),
		TimeoutCount:    atomic.LoadInt64(&m.counters.TimeoutCount),
		AdapterFailures: atomic.LoadInt64(&m.counters.AdapterFailures),
		ActionCounts: map[string]int64{
			"continued":   atomic.LoadInt64(&m.counters.ContinueCount),
			"created":     atomic.LoadInt64(&m.counters.CreateCount),
			"branched":    atomic.LoadInt64(&m.counters.BranchCount),
			"reactivated": atomic.LoadInt64(&m.counters.ReactivateCount),
		},
		Uptime: time.Since(m.startedAt),
	}

	if m.embeddingCache != nil {
		snap.EmbeddingCache = m.embeddingCache.Stats()
	}
	if m.contextCache != nil {
		snap.ContextCache = m.contextCache.Stats()
	}

	if m.proc != nil {
		if cpuPct, err := m.proc.CPUPercent(); err == nil {
			snap.ProcessCPUPct = cpuPct
		}
		if memInfo, err := m.proc.MemoryInfo(); err == nil && memInfo != nil {
			snap.ProcessRSSBytes = memInfo.RSS
		}
	}

	return snap
}

// Healthy reports whether the service is in an acceptable state: it
// has logged fewer timeouts than resolutions that finished in time.
func (m *Monitor) Healthy() bool {
	calls := atomic.LoadInt64(&m.counters.ResolveCalls)
	timeouts := atomic.LoadInt64(&m.counters.TimeoutCount)
	if calls == 0 {
		return true
	}
	return timeouts*2 < calls
}
