package reelauth

import (
	"slices"
	"sync/atomic"
	"time"
)

// MetricID identifies an engine counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricLogout
	MetricRegisterSuccess
	MetricRegisterDuplicate
	MetricEmailVerificationRequest
	MetricEmailVerificationSuccess
	MetricEmailVerificationFailure
	MetricPasswordResetRequest
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricPasswordHashUpgraded
	MetricAccessDenied
	MetricValidateLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:             "login_success",
	MetricLoginFailure:             "login_failure",
	MetricLoginRateLimited:         "login_rate_limited",
	MetricRefreshSuccess:           "refresh_success",
	MetricRefreshFailure:           "refresh_failure",
	MetricRefreshReuseDetected:     "refresh_reuse_detected",
	MetricLogout:                   "logout",
	MetricRegisterSuccess:          "register_success",
	MetricRegisterDuplicate:        "register_duplicate",
	MetricEmailVerificationRequest: "email_verification_request",
	MetricEmailVerificationSuccess: "email_verification_success",
	MetricEmailVerificationFailure: "email_verification_failure",
	MetricPasswordResetRequest:     "password_reset_request",
	MetricPasswordResetSuccess:     "password_reset_success",
	MetricPasswordResetFailure:     "password_reset_failure",
	MetricPasswordHashUpgraded:     "password_hash_upgraded",
	MetricAccessDenied:             "access_denied",
	MetricValidateLatency:          "validate_latency",
}

var metricHelp = [metricIDCount]string{
	MetricLoginSuccess:             "Successful login attempts.",
	MetricLoginFailure:             "Failed login attempts.",
	MetricLoginRateLimited:         "Rate-limited login attempts.",
	MetricRefreshSuccess:           "Successful refresh rotations.",
	MetricRefreshFailure:           "Failed refresh rotations.",
	MetricRefreshReuseDetected:     "Refresh tokens presented after rotation or logout.",
	MetricLogout:                   "Single-session logouts.",
	MetricRegisterSuccess:          "Created accounts.",
	MetricRegisterDuplicate:        "Registrations rejected as duplicate.",
	MetricEmailVerificationRequest: "Verification links issued.",
	MetricEmailVerificationSuccess: "Successful email verifications.",
	MetricEmailVerificationFailure: "Rejected verification links.",
	MetricPasswordResetRequest:     "Reset links issued.",
	MetricPasswordResetSuccess:     "Completed password resets.",
	MetricPasswordResetFailure:     "Rejected reset links.",
	MetricPasswordHashUpgraded:     "Password hashes upgraded on login.",
	MetricAccessDenied:             "Access tokens rejected by the guard.",
	MetricValidateLatency:          "Access token validation latency.",
}

// Help returns a one-line description for exporters.
func (id MetricID) Help() string {
	if id >= metricIDCount {
		return ""
	}
	return metricHelp[id]
}

// String returns the snake_case metric name.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs returns every defined metric in order.
func MetricIDs() []MetricID {
	ids := make([]MetricID, metricIDCount)
	for i := range ids {
		ids[i] = MetricID(i)
	}
	return ids
}

// LatencyBucketBounds are the inclusive upper bounds of the validate latency
// histogram. One more bucket past the last bound counts everything slower.
var LatencyBucketBounds = []time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

// counter is padded to a 64-byte cache line.
type counter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics is a lock-free counter set. A nil or disabled Metrics records
// nothing.
type Metrics struct {
	enabled bool
	latency bool
	counts  [metricIDCount]counter
	buckets []atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of every counter. Histograms holds
// per-bucket (non-cumulative) counts keyed by metric.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	m := &Metrics{enabled: cfg.Enabled, latency: cfg.Enabled && cfg.EnableLatencyHistograms}
	if m.latency {
		m.buckets = make([]atomic.Uint64, len(LatencyBucketBounds)+1)
	}
	return m
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool { return m != nil && m.enabled }

// LatencyEnabled reports whether the validate histogram is recorded.
func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m.Enabled() && id < metricIDCount {
		m.counts[id].Add(1)
	}
}

// Observe records d for id. Only MetricValidateLatency has a histogram;
// other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if id != MetricValidateLatency || !m.LatencyEnabled() {
		return
	}
	i, _ := slices.BinarySearch(LatencyBucketBounds, d)
	m.buckets[i].Add(1)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counts[id].Load()
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{Counters: map[MetricID]uint64{}, Histograms: map[MetricID][]uint64{}}
	if !m.Enabled() {
		return s
	}
	for _, id := range MetricIDs() {
		s.Counters[id] = m.counts[id].Load()
	}
	if m.latency {
		buckets := make([]uint64, len(m.buckets))
		for i := range m.buckets {
			buckets[i] = m.buckets[i].Load()
		}
		s.Histograms[MetricValidateLatency] = buckets
	}
	return s
}
