package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects in-process counters for the detection funnel.
type Metrics struct {
	mu sync.Mutex

	turnTotal   atomic.Int64
	turnFailed  atomic.Int64
	escalations atomic.Int64
	llmCalls    atomic.Int64
	llmFailures atomic.Int64

	states map[string]*atomic.Int64

	durations    []time.Duration
	maxDurations int
}

// NewMetrics creates a new metrics collector keeping at most maxDurations samples.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		states:       make(map[string]*atomic.Int64),
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

// RecordTurn records a finished turn that ended in the given funnel state.
func (m *Metrics) RecordTurn(state string, d time.Duration) {
	m.turnTotal.Add(1)
	m.counter(state).Add(1)

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, d)
	m.mu.Unlock()
}

// RecordFailure records a turn that ended with an ERROR status.
func (m *Metrics) RecordFailure() {
	m.turnFailed.Add(1)
}

// RecordEscalation records an invocation of the expensive classifier.
func (m *Metrics) RecordEscalation() {
	m.escalations.Add(1)
}

// RecordLLMCall records one model call and whether it failed.
func (m *Metrics) RecordLLMCall(failed bool) {
	m.llmCalls.Add(1)
	if failed {
		m.llmFailures.Add(1)
	}
}

func (m *Metrics) counter(state string) *atomic.Int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.states[state]
	if !ok {
		c = &atomic.Int64{}
		m.states[state] = c
	}
	return c
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.turnTotal.Store(0)
	m.turnFailed.Store(0)
	m.escalations.Store(0)
	m.llmCalls.Store(0)
	m.llmFailures.Store(0)

	m.mu.Lock()
	m.states = make(map[string]*atomic.Int64)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make(map[string]int64, len(m.states))
	for name, c := range m.states {
		states[name] = c.Load()
	}

	snap := &MetricsSnapshot{
		TurnTotal:   m.turnTotal.Load(),
		TurnFailed:  m.turnFailed.Load(),
		Escalations: m.escalations.Load(),
		LLMCalls:    m.llmCalls.Load(),
		LLMFailures: m.llmFailures.Load(),
		States:      states,
	}
	if n := len(m.durations); n > 0 {
		sorted := make([]time.Duration, n)
		copy(sorted, m.durations)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		snap.P50Ms = sorted[n/2].Milliseconds()
		snap.P95Ms = sorted[(n*95)/100].Milliseconds()
	}
	return snap
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	TurnTotal   int64            `json:"turn_total"`
	TurnFailed  int64            `json:"turn_failed"`
	Escalations int64            `json:"escalations"`
	LLMCalls    int64            `json:"llm_calls"`
	LLMFailures int64            `json:"llm_failures"`
	States      map[string]int64 `json:"states"`
	P50Ms       int64            `json:"p50_ms"`
	P95Ms       int64            `json:"p95_ms"`
}
