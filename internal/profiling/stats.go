package profiling

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Op is a measured pipeline operation.
type Op int

const (
	OpBlockRead Op = iota
	OpBlockWrite
	OpMeshGeneration
	OpBufferUpload
	OpSerialization
	numOps
)

var opNames = [numOps]string{
	OpBlockRead:      "block_read",
	OpBlockWrite:     "block_write",
	OpMeshGeneration: "mesh_generation",
	OpBufferUpload:   "buffer_upload",
	OpSerialization:  "serialization",
}

func (o Op) String() string {
	if o < 0 || o >= numOps {
		return "unknown"
	}
	return opNames[o]
}

type opStats struct {
	count    atomic.Uint64
	failures atomic.Uint64
	total    atomic.Int64 // nanoseconds
	peak     atomic.Int64
	bytes    atomic.Uint64
}

// OpSnapshot is a copy of one operation's counters.
type OpSnapshot struct {
	Op       Op
	Count    uint64
	Failures uint64
	Total    time.Duration
	Peak     time.Duration
	Bytes    uint64
}

// Average is Total / Count, or zero before the first sample.
func (s OpSnapshot) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Snapshot is a copy of all counters.
type Snapshot struct {
	Ops       [numOps]OpSnapshot
	Triangles uint64
}

// Stats collects counts and timings for the pipeline. A nil *Stats discards
// everything, so components can run without one.
type Stats struct {
	ops       [numOps]opStats
	triangles atomic.Uint64

	frameMu     sync.Mutex
	frameTotals map[string]time.Duration
}

func NewStats() *Stats {
	return &Stats{frameTotals: make(map[string]time.Duration)}
}

// Record adds one successful sample.
func (s *Stats) Record(op Op, d time.Duration) {
	if s == nil || op < 0 || op >= numOps {
		return
	}
	o := &s.ops[op]
	o.count.Add(1)
	o.total.Add(int64(d))
	for {
		peak := o.peak.Load()
		if int64(d) <= peak || o.peak.CompareAndSwap(peak, int64(d)) {
			break
		}
	}
}

// Time starts a sample; call the returned func to record it.
func (s *Stats) Time(op Op) func() {
	start := time.Now()
	return func() { s.Record(op, time.Since(start)) }
}

func (s *Stats) RecordFailure(op Op) {
	if s == nil || op < 0 || op >= numOps {
		return
	}
	s.ops[op].failures.Add(1)
}

func (s *Stats) AddBytes(op Op, n int) {
	if s == nil || op < 0 || op >= numOps || n <= 0 {
		return
	}
	s.ops[op].bytes.Add(uint64(n))
}

func (s *Stats) AddTriangles(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.triangles.Add(uint64(n))
}

func (s *Stats) Snapshot() Snapshot {
	var out Snapshot
	if s == nil {
		return out
	}
	for i := range s.ops {
		o := &s.ops[i]
		out.Ops[i] = OpSnapshot{
			Op:       Op(i),
			Count:    o.count.Load(),
			Failures: o.failures.Load(),
			Total:    time.Duration(o.total.Load()),
			Peak:     time.Duration(o.peak.Load()),
			Bytes:    o.bytes.Load(),
		}
	}
	out.Triangles = s.triangles.Load()
	return out
}

// Summary renders the counters for a debug overlay or log line.
func (s *Stats) Summary() string {
	snap := s.Snapshot()
	var b strings.Builder
	for _, o := range snap.Ops {
		fmt.Fprintf(&b, "%s: %s ops, avg %s, peak %s", o.Op, humanize.Comma(int64(o.Count)), o.Average(), o.Peak)
		if o.Failures > 0 {
			fmt.Fprintf(&b, ", %d failed", o.Failures)
		}
		if o.Bytes > 0 {
			fmt.Fprintf(&b, ", %s", humanize.Bytes(o.Bytes))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "triangles: %s", humanize.Comma(int64(snap.Triangles)))
	return b.String()
}
