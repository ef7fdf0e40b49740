package profiling

import "github.com/prometheus/client_golang/prometheus"

// Collector exports a Stats object to Prometheus. Values are read at scrape time,
// so there is no refresh loop to stop.
type Collector struct {
	stats     *Stats
	count     *prometheus.Desc
	failures  *prometheus.Desc
	seconds   *prometheus.Desc
	peak      *prometheus.Desc
	bytes     *prometheus.Desc
	triangles *prometheus.Desc
}

func NewCollector(stats *Stats) *Collector {
	const ns = "meshpipe"
	op := []string{"op"}
	return &Collector{
		stats:     stats,
		count:     prometheus.NewDesc(ns+"_operations_total", "Completed pipeline operations.", op, nil),
		failures:  prometheus.NewDesc(ns+"_operation_failures_total", "Failed pipeline operations.", op, nil),
		seconds:   prometheus.NewDesc(ns+"_operation_seconds_total", "Time spent per operation.", op, nil),
		peak:      prometheus.NewDesc(ns+"_operation_peak_seconds", "Slowest single operation.", op, nil),
		bytes:     prometheus.NewDesc(ns+"_operation_bytes_total", "Bytes moved per operation.", op, nil),
		triangles: prometheus.NewDesc(ns+"_triangles_total", "Triangles produced by mesh generation.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.count
	ch <- c.failures
	ch <- c.seconds
	ch <- c.peak
	ch <- c.bytes
	ch <- c.triangles
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats.Snapshot()
	for _, o := range snap.Ops {
		name := o.Op.String()
		ch <- prometheus.MustNewConstMetric(c.count, prometheus.CounterValue, float64(o.Count), name)
		ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(o.Failures), name)
		ch <- prometheus.MustNewConstMetric(c.seconds, prometheus.CounterValue, o.Total.Seconds(), name)
		ch <- prometheus.MustNewConstMetric(c.peak, prometheus.GaugeValue, o.Peak.Seconds(), name)
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(o.Bytes), name)
	}
	ch <- prometheus.MustNewConstMetric(c.triangles, prometheus.CounterValue, float64(snap.Triangles))
}
