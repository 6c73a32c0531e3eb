package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a monotonically increasing counter.
type Counter struct {
	value atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Add increments the counter by n.
func (c *Counter) Add(n int64) { c.value.Add(n) }

// Value returns the current counter value.
func (c *Counter) Value() int64 { return c.value.Load() }

// Stats aggregates the counters and phase timings for one run, and renders
// the end-of-run summary.
type Stats struct {
	ItemsProcessed    Counter
	ItemsMerged       Counter
	DuplicatesSkipped Counter
	MediaDownloaded   Counter
	MediaFailed       Counter
	PagesFetched      Counter

	mu          sync.Mutex
	skipReasons map[string]int64
	phases      []phaseTiming
	started     time.Time
}

type phaseTiming struct {
	name     string
	duration time.Duration
}

func NewStats() *Stats {
	return &Stats{
		skipReasons: make(map[string]int64),
		started:     time.Now(),
	}
}

// Skip records one item skipped with a reason.
func (s *Stats) Skip(reason string) {
	s.mu.Lock()
	s.skipReasons[reason]++
	s.mu.Unlock()
}

// Skipped returns the count recorded for one skip reason.
func (s *Stats) Skipped(reason string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipReasons[reason]
}

// SkippedTotal returns the number of items skipped across all reasons.
func (s *Stats) SkippedTotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.skipReasons {
		n += c
	}
	return n
}

// Phase records how long a named pipeline phase took.
func (s *Stats) Phase(name string, d time.Duration) {
	s.mu.Lock()
	s.phases = append(s.phases, phaseTiming{name: name, duration: d})
	s.mu.Unlock()
}

// Summary renders the human-readable run report.
func (s *Stats) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("--- SUMMARY ---\n")
	fmt.Fprintf(&sb, "items processed:   %d\n", s.ItemsProcessed.Value())
	fmt.Fprintf(&sb, "messages merged:   %d\n", s.ItemsMerged.Value())
	fmt.Fprintf(&sb, "duplicates:        %d\n", s.DuplicatesSkipped.Value())
	fmt.Fprintf(&sb, "media downloaded:  %d\n", s.MediaDownloaded.Value())
	fmt.Fprintf(&sb, "media failed:      %d\n", s.MediaFailed.Value())
	fmt.Fprintf(&sb, "pages fetched:     %d\n", s.PagesFetched.Value())

	if len(s.skipReasons) > 0 {
		sb.WriteString("skipped:\n")
		reasons := make([]string, 0, len(s.skipReasons))
		for r := range s.skipReasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Fprintf(&sb, "  %s: %d\n", r, s.skipReasons[r])
		}
	}

	sb.WriteString("--- TIMING ---\n")
	for _, p := range s.phases {
		fmt.Fprintf(&sb, "%s: %.2fs\n", p.name, p.duration.Seconds())
	}
	fmt.Fprintf(&sb, "total: %.2fs\n", time.Since(s.started).Seconds())
	return sb.String()
}
