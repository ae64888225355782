// Package otel binds reelauth engine counters to an OpenTelemetry Meter.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter,
// named reelauth.<metric>, and a single reelauth.validate_latency.bucket
// gauge carrying cumulative counts with an "le" attribute in seconds. One
// callback reads the engine snapshot per collection cycle.
//
// The caller owns the MeterProvider and its readers.
package otel
