// Package xguardmetrics is a Prometheus-backed implementation of
// xguard.Metrics, built directly on github.com/prometheus/client_golang
// the way the wider dependency set reaches for it for counters (see
// go.mod's prometheus/client_golang requirement) rather than through
// the teacher's OpenTelemetry-flavored pkg/observability/xmetrics,
// which has no Prometheus exporter of its own.
package xguardmetrics
