// Package metrics keeps in-memory timing and token statistics for the
// pipeline's operations. Nothing is persisted; counters reset on restart.
package metrics

import (
	"sync"
	"time"
)

// Operation names.
const (
	OpLLMGenerate   = "llm_generate"
	OpDiscover      = "discover"
	OpIdentify      = "identify"
	OpResearch      = "research"
	OpResearchError = "research_error"
	OpExport        = "export"
	OpStoreQuery    = "store_query"
	OpStoreInsert   = "store_insert"
)

// span tracks total, min and max of a series of non-negative samples.
type span struct {
	total, min, max int64
}

func (s *span) add(v int64, first bool) {
	s.total += v
	if first || v < s.min {
		s.min = v
	}
	if v > s.max {
		s.max = v
	}
}

type opStats struct {
	count     int64
	nanos     span
	inTokens  span
	outTokens span
	llm       bool
}

// OperationSnapshot is the computed view of one operation.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`

	// Set only for operations recorded through RecordLLMUsage.
	TotalInputTokens  *int64   `json:"total_input_tokens,omitempty"`
	TotalOutputTokens *int64   `json:"total_output_tokens,omitempty"`
	AvgInputTokens    *float64 `json:"avg_input_tokens,omitempty"`
	AvgOutputTokens   *float64 `json:"avg_output_tokens,omitempty"`
	MaxInputTokens    *int64   `json:"max_input_tokens,omitempty"`
	MaxOutputTokens   *int64   `json:"max_output_tokens,omitempty"`
}

// Snapshot is every operation's statistics at one point in time.
// Operations that never ran are nil.
type Snapshot struct {
	UptimeSeconds float64            `json:"uptime_seconds"`
	LLMGenerate   *OperationSnapshot `json:"llm_generate,omitempty"`
	Discover      *OperationSnapshot `json:"discover,omitempty"`
	Identify      *OperationSnapshot `json:"identify,omitempty"`
	Research      *OperationSnapshot `json:"research,omitempty"`
	ResearchError *OperationSnapshot `json:"research_error,omitempty"`
	Export        *OperationSnapshot `json:"export,omitempty"`
	StoreQuery    *OperationSnapshot `json:"store_query,omitempty"`
	StoreInsert   *OperationSnapshot `json:"store_insert,omitempty"`
}

// Collector aggregates operation statistics. It is safe for concurrent use,
// and a nil *Collector ignores every call.
type Collector struct {
	mu      sync.RWMutex
	started time.Time
	ops     map[string]*opStats
}

// NewCollector creates an empty collector; uptime counts from now.
func NewCollector() *Collector {
	return &Collector{started: time.Now(), ops: make(map[string]*opStats)}
}

// observe records one call. Caller holds mu.
func (c *Collector) observe(op string, d time.Duration) *opStats {
	s, ok := c.ops[op]
	if !ok {
		s = &opStats{}
		c.ops[op] = s
	}
	s.nanos.add(int64(d), s.count == 0)
	s.count++
	return s
}

// RecordTiming records one call of op that took d.
func (c *Collector) RecordTiming(op string, d time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.observe(op, d)
	c.mu.Unlock()
}

// Since records the time elapsed since start, for use with defer:
//
//	defer mc.Since(metrics.OpResearch, time.Now())
func (c *Collector) Since(op string, start time.Time) {
	c.RecordTiming(op, time.Since(start))
}

// RecordLLMUsage records one generation call with its token counts.
func (c *Collector) RecordLLMUsage(op string, d time.Duration, inputTokens, outputTokens int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.observe(op, d)
	first := !s.llm
	s.llm = true
	s.inTokens.add(inputTokens, first)
	s.outTokens.add(outputTokens, first)
}

func (s *opStats) snapshot() *OperationSnapshot {
	if s == nil || s.count == 0 {
		return nil
	}
	n := float64(s.count)
	snap := &OperationSnapshot{
		Count:       s.count,
		TotalTimeMs: time.Duration(s.nanos.total).Milliseconds(),
		AvgTimeMs:   float64(time.Duration(s.nanos.total).Milliseconds()) / n,
		MinTimeMs:   time.Duration(s.nanos.min).Milliseconds(),
		MaxTimeMs:   time.Duration(s.nanos.max).Milliseconds(),
	}
	if !s.llm {
		return snap
	}

	in, out := s.inTokens, s.outTokens
	avgIn, avgOut := float64(in.total)/n, float64(out.total)/n
	snap.TotalInputTokens, snap.TotalOutputTokens = &in.total, &out.total
	snap.AvgInputTokens, snap.AvgOutputTokens = &avgIn, &avgOut
	snap.MaxInputTokens, snap.MaxOutputTokens = &in.max, &out.max
	return snap
}

// Snapshot returns the current statistics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.started).Seconds(),
		LLMGenerate:   c.ops[OpLLMGenerate].snapshot(),
		Discover:      c.ops[OpDiscover].snapshot(),
		Identify:      c.ops[OpIdentify].snapshot(),
		Research:      c.ops[OpResearch].snapshot(),
		ResearchError: c.ops[OpResearchError].snapshot(),
		Export:        c.ops[OpExport].snapshot(),
		StoreQuery:    c.ops[OpStoreQuery].snapshot(),
		StoreInsert:   c.ops[OpStoreInsert].snapshot(),
	}
}
