package profiling

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Per-frame named timers for tick-level insights, next to the cumulative counters.

// Track returns a stop function that records the elapsed time under name.
// Usage: defer stats.Track("world.Update")()
func (s *Stats) Track(name string) func() {
	start := time.Now()
	return func() {
		if s == nil {
			return
		}
		d := time.Since(start)
		s.frameMu.Lock()
		s.frameTotals[name] += d
		s.frameMu.Unlock()
	}
}

// ResetFrame clears the per-frame totals. Call at the start of each frame.
func (s *Stats) ResetFrame() {
	if s == nil {
		return
	}
	s.frameMu.Lock()
	clear(s.frameTotals)
	s.frameMu.Unlock()
}

// FrameTotals returns a copy of the current per-frame totals.
func (s *Stats) FrameTotals() map[string]time.Duration {
	out := make(map[string]time.Duration)
	if s == nil {
		return out
	}
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	for k, v := range s.frameTotals {
		out[k] = v
	}
	return out
}

// TopN formats the n slowest timers of the frame.
// Example: "pipeline.Generate:4.2ms, gpu.ProcessUploads:2.1ms"
func (s *Stats) TopN(n int) string {
	type pair struct {
		name string
		dur  time.Duration
	}
	totals := s.FrameTotals()
	list := make([]pair, 0, len(totals))
	for k, v := range totals {
		list = append(list, pair{name: k, dur: v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].dur == list[j].dur {
			return list[i].name < list[j].name
		}
		return list[i].dur > list[j].dur
	})
	n = min(n, len(list))
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, list[i].name+":"+formatMs(list[i].dur))
	}
	return strings.Join(parts, ", ")
}

// formatMs keeps one decimal and drops a trailing ".0".
func formatMs(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000.0
	return strconv.FormatFloat(float64(int64(ms*10))/10, 'f', -1, 64) + "ms"
}
