// Package metrics exports branch predictor statistics in the Prometheus
// format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/bpsim/timing/bpred"
)

// StatsSource is anything that reports predictor statistics, such as a
// bpred.StatsHook.
type StatsSource interface {
	Stats() bpred.Stats
}

const namespace = "bpsim"

type counterDesc struct {
	desc  *prometheus.Desc
	value func(s bpred.Stats) uint64
}

// Collector is a prometheus.Collector reading a StatsSource at scrape time.
type Collector struct {
	source   StatsSource
	counters []counterDesc
	accuracy *prometheus.Desc
}

// NewCollector creates a Collector whose metrics carry the constant label
// predictor=name.
func NewCollector(name string, source StatsSource) *Collector {
	labels := prometheus.Labels{"predictor": name}

	newCounter := func(metric, help string, value func(s bpred.Stats) uint64) counterDesc {
		return counterDesc{
			desc: prometheus.NewDesc(
				prometheus.BuildFQName(namespace, "branch", metric),
				help, nil, labels),
			value: value,
		}
	}

	return &Collector{
		source: source,
		counters: []counterDesc{
			newCounter("lookups_total", "Conditional branch predictions made.",
				func(s bpred.Stats) uint64 { return s.Lookups }),
			newCounter("unconditional_total", "Unconditional branches recorded in history.",
				func(s bpred.Stats) uint64 { return s.Unconditional }),
			newCounter("btb_updates_total", "Forced not-taken history fix-ups.",
				func(s bpred.Stats) uint64 { return s.BTBUpdates }),
			newCounter("updates_total", "Resolved branches that trained the tables.",
				func(s bpred.Stats) uint64 { return s.Updates }),
			newCounter("correct_total", "Resolved branches that were predicted correctly.",
				func(s bpred.Stats) uint64 { return s.Correct }),
			newCounter("mispredictions_total", "Resolved branches that were mispredicted.",
				func(s bpred.Stats) uint64 { return s.Mispredictions }),
			newCounter("recoveries_total", "History recoveries after an older misprediction.",
				func(s bpred.Stats) uint64 { return s.Recoveries }),
			newCounter("squashes_total", "Predictions annulled without resolution.",
				func(s bpred.Stats) uint64 { return s.Squashes }),
		},
		accuracy: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "branch", "accuracy_percent"),
			"Share of resolved branches predicted correctly.", nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, counter := range c.counters {
		ch <- counter.desc
	}
	ch <- c.accuracy
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	for _, counter := range c.counters {
		ch <- prometheus.MustNewConstMetric(counter.desc,
			prometheus.CounterValue, float64(counter.value(stats)))
	}
	ch <- prometheus.MustNewConstMetric(c.accuracy,
		prometheus.GaugeValue, stats.Accuracy())
}

// WriteTextfile registers the collectors on a fresh registry and writes
// their metrics to path in the Prometheus text format.
func WriteTextfile(path string, collectors ...prometheus.Collector) error {
	reg := prometheus.NewRegistry()
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("failed to register collector: %w", err)
		}
	}

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}
