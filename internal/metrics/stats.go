package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// InjectionStats is the in-memory read model of injection outcomes since process start
type InjectionStats struct {
	requests        int64
	performed       int64
	injectedPosts   int64
	upstreamErrors  int64
	candidateErrors int64
	totalDurationMs int64
	maxDurationMs   int64

	mu             sync.RWMutex
	bySource       map[string]int64
	byStrategy     map[string]int64
	skipReasons    map[string]int64
	timings        []int64 // recent durations for percentiles, ring buffer
	next           int
	maxTimingsSize int
}

// StatsSnapshot is a point-in-time copy of InjectionStats
type StatsSnapshot struct {
	TotalRequests       int64            `json:"total_requests"`
	PerformedRequests   int64            `json:"performed_requests"`
	InjectedPosts       int64            `json:"injected_posts"`
	AvgInjectedPerBuild float64          `json:"avg_injected_per_build"`
	BySource            map[string]int64 `json:"by_source"`
	ByStrategy          map[string]int64 `json:"by_strategy"`
	SkipReasons         map[string]int64 `json:"skip_reasons"`
	UpstreamErrors      int64            `json:"upstream_errors"`
	CandidateErrors     int64            `json:"candidate_errors"`
	AvgDurationMs       float64          `json:"avg_duration_ms"`
	MaxDurationMs       int64            `json:"max_duration_ms"`
	P50DurationMs       int64            `json:"p50_duration_ms"`
	P95DurationMs       int64            `json:"p95_duration_ms"`
	P99DurationMs       int64            `json:"p99_duration_ms"`
	Timestamp           int64            `json:"timestamp"`
}

// NewInjectionStats creates an empty read model
func NewInjectionStats() *InjectionStats {
	return &InjectionStats{
		bySource:       make(map[string]int64),
		byStrategy:     make(map[string]int64),
		skipReasons:    make(map[string]int64),
		timings:        make([]int64, 0, 1024),
		maxTimingsSize: 1024,
	}
}

// Observe folds one event into the read model
func (s *InjectionStats) Observe(e Event) {
	atomic.AddInt64(&s.requests, 1)
	if e.UpstreamError != "" {
		atomic.AddInt64(&s.upstreamErrors, 1)
	}
	if e.CandidateError != "" {
		atomic.AddInt64(&s.candidateErrors, 1)
	}

	durationMs := e.Duration.Milliseconds()
	atomic.AddInt64(&s.totalDurationMs, durationMs)
	for {
		old := atomic.LoadInt64(&s.maxDurationMs)
		if durationMs <= old || atomic.CompareAndSwapInt64(&s.maxDurationMs, old, durationMs) {
			break
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Performed {
		atomic.AddInt64(&s.performed, 1)
		atomic.AddInt64(&s.injectedPosts, int64(e.InjectedCount))
		s.bySource[e.Source]++
		s.byStrategy[e.Strategy]++
	} else {
		s.skipReasons[e.Reason]++
	}
	if len(s.timings) < s.maxTimingsSize {
		s.timings = append(s.timings, durationMs)
	} else {
		s.timings[s.next] = durationMs
		s.next = (s.next + 1) % s.maxTimingsSize
	}
}

// Snapshot returns the current totals
func (s *InjectionStats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		TotalRequests:     atomic.LoadInt64(&s.requests),
		PerformedRequests: atomic.LoadInt64(&s.performed),
		InjectedPosts:     atomic.LoadInt64(&s.injectedPosts),
		UpstreamErrors:    atomic.LoadInt64(&s.upstreamErrors),
		CandidateErrors:   atomic.LoadInt64(&s.candidateErrors),
		MaxDurationMs:     atomic.LoadInt64(&s.maxDurationMs),
		Timestamp:         time.Now().Unix(),
	}
	if snap.TotalRequests > 0 {
		snap.AvgDurationMs = float64(atomic.LoadInt64(&s.totalDurationMs)) / float64(snap.TotalRequests)
	}
	if snap.PerformedRequests > 0 {
		snap.AvgInjectedPerBuild = float64(snap.InjectedPosts) / float64(snap.PerformedRequests)
	}

	s.mu.RLock()
	snap.BySource = copyCounts(s.bySource)
	snap.ByStrategy = copyCounts(s.byStrategy)
	snap.SkipReasons = copyCounts(s.skipReasons)
	timings := append([]int64(nil), s.timings...)
	s.mu.RUnlock()

	snap.P50DurationMs, snap.P95DurationMs, snap.P99DurationMs = percentiles(timings)
	return snap
}

// Reset clears all counters
func (s *InjectionStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	atomic.StoreInt64(&s.requests, 0)
	atomic.StoreInt64(&s.performed, 0)
	atomic.StoreInt64(&s.injectedPosts, 0)
	atomic.StoreInt64(&s.upstreamErrors, 0)
	atomic.StoreInt64(&s.candidateErrors, 0)
	atomic.StoreInt64(&s.totalDurationMs, 0)
	atomic.StoreInt64(&s.maxDurationMs, 0)
	s.bySource = make(map[string]int64)
	s.byStrategy = make(map[string]int64)
	s.skipReasons = make(map[string]int64)
	s.timings = s.timings[:0]
	s.next = 0
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func percentiles(timings []int64) (p50, p95, p99 int64) {
	if len(timings) == 0 {
		return 0, 0, 0
	}
	sort.Slice(timings, func(i, j int) bool { return timings[i] < timings[j] })
	n := len(timings)
	return timings[(n*50)/100], timings[(n*95)/100], timings[(n*99)/100]
}
