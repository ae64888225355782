package prometheus

import (
	"net/http"

	"github.com/MrEthical07/reelauth"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reelauth"

// MetricsSource is satisfied by *reelauth.Engine.
type MetricsSource interface {
	MetricsSnapshot() reelauth.MetricsSnapshot
}

type counterDef struct {
	id   reelauth.MetricID
	desc *prom.Desc
}

// Collector implements prometheus.Collector over engine snapshots.
type Collector struct {
	source   MetricsSource
	counters []counterDef
	latency  *prom.Desc
}

// NewCollector returns a collector reading from source.
func NewCollector(source MetricsSource) *Collector {
	c := &Collector{source: source}
	for _, id := range reelauth.MetricIDs() {
		if id == reelauth.MetricValidateLatency {
			continue
		}
		c.counters = append(c.counters, counterDef{
			id:   id,
			desc: prom.NewDesc(prom.BuildFQName(namespace, "", id.String()+"_total"), id.Help(), nil, nil),
		})
	}
	c.latency = prom.NewDesc(
		prom.BuildFQName(namespace, "", "validate_latency_seconds"),
		reelauth.MetricValidateLatency.Help(),
		nil, nil,
	)
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prom.Desc) {
	for _, def := range c.counters {
		ch <- def.desc
	}
	ch <- c.latency
}

// Collect implements prometheus.Collector. Disabled engine metrics yield
// nothing.
func (c *Collector) Collect(ch chan<- prom.Metric) {
	if c == nil || c.source == nil {
		return
	}
	snapshot := c.source.MetricsSnapshot()
	if len(snapshot.Counters) == 0 {
		return
	}

	for _, def := range c.counters {
		ch <- prom.MustNewConstMetric(def.desc, prom.CounterValue, float64(snapshot.Counters[def.id]))
	}

	raw, ok := snapshot.Histograms[reelauth.MetricValidateLatency]
	if !ok {
		return
	}
	count, buckets := cumulativeBuckets(raw)
	// Snapshots carry bucket counts only.
	ch <- prom.MustNewConstHistogram(c.latency, count, 0, buckets)
}

// cumulativeBuckets converts per-bucket counts to the cumulative form keyed
// by upper bound in seconds. The final raw bucket is the +Inf overflow.
func cumulativeBuckets(raw []uint64) (uint64, map[float64]uint64) {
	buckets := make(map[float64]uint64, len(reelauth.LatencyBucketBounds))
	var running uint64
	for i, bound := range reelauth.LatencyBucketBounds {
		if i < len(raw) {
			running += raw[i]
		}
		buckets[bound.Seconds()] = running
	}
	if n := len(reelauth.LatencyBucketBounds); len(raw) > n {
		for _, v := range raw[n:] {
			running += v
		}
	}
	return running, buckets
}

// Handler returns a /metrics handler serving a private registry that holds
// the collector plus any extra collectors.
func Handler(source MetricsSource, extra ...prom.Collector) (http.Handler, error) {
	reg := prom.NewRegistry()
	if err := reg.Register(NewCollector(source)); err != nil {
		return nil, err
	}
	for _, c := range extra {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
