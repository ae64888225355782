package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/reelauth"
)

var (
	ErrNilMeter  = errors.New("otel: nil meter")
	ErrNilSource = errors.New("otel: nil metrics source")
)

// MetricsSource is satisfied by *reelauth.Engine.
type MetricsSource interface {
	MetricsSnapshot() reelauth.MetricsSnapshot
}

type counter struct {
	id         reelauth.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter observes engine snapshots on behalf of a Meter.
type Exporter struct {
	source       MetricsSource
	counters     []counter
	latency      metric.Int64ObservableGauge
	bounds       []metric.ObserveOption
	registration metric.Registration
}

// NewExporter registers the instruments and their callback on meter.
func NewExporter(meter metric.Meter, source MetricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, id := range reelauth.MetricIDs() {
		if id == reelauth.MetricValidateLatency {
			continue
		}
		name := "reelauth." + id.String()
		ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(id.Help()))
		if err != nil {
			return nil, fmt.Errorf("otel counter %s: %w", name, err)
		}
		e.counters = append(e.counters, counter{id: id, instrument: ins})
		observables = append(observables, ins)
	}

	latency, err := meter.Int64ObservableGauge(
		"reelauth.validate_latency.bucket",
		metric.WithDescription(reelauth.MetricValidateLatency.Help()+" Cumulative count per upper bound."),
	)
	if err != nil {
		return nil, fmt.Errorf("otel latency gauge: %w", err)
	}
	e.latency = latency
	observables = append(observables, latency)

	for _, b := range reelauth.LatencyBucketBounds {
		le := strconv.FormatFloat(b.Seconds(), 'g', -1, 64)
		e.bounds = append(e.bounds, metric.WithAttributes(attribute.String("le", le)))
	}
	e.bounds = append(e.bounds, metric.WithAttributes(attribute.String("le", "+Inf")))

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("otel register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	if len(snapshot.Counters) == 0 {
		return nil
	}
	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}

	raw, ok := snapshot.Histograms[reelauth.MetricValidateLatency]
	if !ok {
		return nil
	}
	var running uint64
	for i, opt := range e.bounds {
		if i < len(raw) {
			running += raw[i]
		}
		o.ObserveInt64(e.latency, int64(running), opt)
	}
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
