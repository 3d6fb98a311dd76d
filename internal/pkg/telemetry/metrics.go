package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricRequestsPerSec = "api.requests_per_second"

	// Snap engine
	MetricSnapLatency  = "snap.resolution_latency"
	MetricSnapHitRatio = "snap.match_ratio"

	// Data integrity
	MetricGeometryErrors = "catalog.geometry_decode_errors"
	MetricAuditAge       = "catalog.audit_age_seconds"

	// Availability
	MetricUptime = "service.uptime_percentage"
)
