// Package prometheus exposes reelauth engine counters as a Prometheus
// collector.
//
// Counters are named reelauth_<metric>_total. The validate latency histogram
// is reelauth_validate_latency_seconds. The collector reads snapshots only
// and never mutates engine state; callers choose the registry.
package prometheus
