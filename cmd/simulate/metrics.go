package main

import (
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type outcome int

const (
	outcomeOK outcome = iota
	outcomeConflict
	outcomeError
)

// idBag is a concurrent set of ids that workers draw from at random.
type idBag struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (b *idBag) add(id uuid.UUID) {
	b.mu.Lock()
	b.ids = append(b.ids, id)
	b.mu.Unlock()
}

// take removes and returns a random id.
func (b *idBag) take(rng *rand.Rand) (uuid.UUID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.ids) == 0 {
		return uuid.Nil, false
	}
	i := rng.Intn(len(b.ids))
	id := b.ids[i]
	b.ids[i] = b.ids[len(b.ids)-1]
	b.ids = b.ids[:len(b.ids)-1]
	return id, true
}

func (b *idBag) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ids)
}

type opMetrics struct {
	total     int64
	ok        int64
	conflict  int64
	failed    int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (m *opMetrics) record(latency time.Duration, o outcome) {
	atomic.AddInt64(&m.total, 1)
	switch o {
	case outcomeOK:
		atomic.AddInt64(&m.ok, 1)
	case outcomeConflict:
		atomic.AddInt64(&m.conflict, 1)
	default:
		atomic.AddInt64(&m.failed, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

type latencyStats struct {
	avg, min, max, p50, p95 time.Duration
}

func (m *opMetrics) stats() latencyStats {
	m.mu.Lock()
	latencies := make([]time.Duration, len(m.latencies))
	copy(latencies, m.latencies)
	m.mu.Unlock()

	if len(latencies) == 0 {
		return latencyStats{}
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	return latencyStats{
		avg: sum / time.Duration(len(latencies)),
		min: latencies[0],
		max: latencies[len(latencies)-1],
		p50: percentile(latencies, 50),
		p95: percentile(latencies, 95),
	}
}

func percentile(sorted []time.Duration, p int) time.Duration {
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type metrics struct {
	book     opMetrics
	start    opMetrics
	complete opMetrics
	cancel   opMetrics
	dayView  opMetrics
	history  opMetrics
}

func (m *metrics) report(w io.Writer, duration time.Duration, workers int) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
	fmt.Fprintln(w, "SIMULATION REPORT")
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "Duration: %s\n", duration)
	fmt.Fprintf(w, "Workers: %d\n\n", workers)

	writeOp(w, "Book", &m.book)
	writeOp(w, "Start", &m.start)
	writeOp(w, "Complete", &m.complete)
	writeOp(w, "Cancel", &m.cancel)
	writeOp(w, "Day view", &m.dayView)
	writeOp(w, "Patient history", &m.history)
}

func writeOp(w io.Writer, name string, m *opMetrics) {
	total := atomic.LoadInt64(&m.total)
	if total == 0 {
		return
	}
	ok := atomic.LoadInt64(&m.ok)
	conflict := atomic.LoadInt64(&m.conflict)
	failed := atomic.LoadInt64(&m.failed)
	s := m.stats()

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	fmt.Fprintf(w, "%s:\n", name)
	fmt.Fprintf(w, "  Total: %d\n", total)
	fmt.Fprintf(w, "  Success: %d (%.1f%%)\n", ok, pct(ok))
	if conflict > 0 {
		fmt.Fprintf(w, "  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if failed > 0 {
		fmt.Fprintf(w, "  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Fprintf(w, "  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n\n",
		s.avg.Round(time.Millisecond), s.min.Round(time.Millisecond), s.max.Round(time.Millisecond),
		s.p50.Round(time.Millisecond), s.p95.Round(time.Millisecond))
}
