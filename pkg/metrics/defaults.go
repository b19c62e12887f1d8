package metrics

import (
	"sync"
	"time"
)

// Default metrics for the formroom server, initialised by Init.
//
// Label conventions: method is the upper-case HTTP method, route is the
// ServeMux pattern that matched (never the raw path, so IDs do not explode
// cardinality) and status is the numeric response code.
var (
	// HTTPRequestsTotal counts API requests.
	// Labels: method, route, status
	HTTPRequestsTotal *Counter

	// HTTPRequestDuration tracks API request latency in seconds.
	// Labels: method, route
	HTTPRequestDuration *Histogram

	// InFlightRequests is the number of requests being served.
	InFlightRequests *Gauge

	// TemplateFillsTotal counts template fills.
	// Labels: outcome (complete, partial)
	TemplateFillsTotal *Counter

	// DomainErrorsTotal counts requests rejected by a domain rule.
	// Labels: kind (not_found, forbidden, invalid, plan_limit, window_closed, schema)
	DomainErrorsTotal *Counter

	// ExpiredAccessesPurged counts accesses removed by the expiry sweeper.
	ExpiredAccessesPurged *Counter

	UptimeSeconds *Gauge

	RuntimeCollectorInstance *RuntimeCollector

	runtimeCollectorStop func()
	defaultRegistry      *Registry
	initOnce             sync.Once
)

// Init initializes the default metrics and returns the registry.
// It is idempotent.
func Init() *Registry {
	initOnce.Do(func() {
		r := NewRegistry()

		HTTPRequestsTotal = r.NewCounter(
			"formroom_http_requests_total",
			"Total number of API requests",
			"method", "route", "status",
		)
		HTTPRequestDuration = r.NewHistogram(
			"formroom_http_request_duration_seconds",
			"Duration of API requests in seconds",
			DefaultBuckets,
			"method", "route",
		)
		InFlightRequests = r.NewGauge(
			"formroom_http_requests_in_flight",
			"Number of API requests currently being served",
		)
		TemplateFillsTotal = r.NewCounter(
			"formroom_template_fills_total",
			"Template fills by whether every placeholder resolved",
			"outcome",
		)
		DomainErrorsTotal = r.NewCounter(
			"formroom_domain_errors_total",
			"Requests rejected by a domain rule",
			"kind",
		)
		ExpiredAccessesPurged = r.NewCounter(
			"formroom_expired_accesses_purged_total",
			"Room accesses deleted after their window closed",
		)
		UptimeSeconds = r.NewGauge(
			"formroom_uptime_seconds",
			"Server uptime in seconds",
		)

		RuntimeCollectorInstance = NewRuntimeCollector(r, UptimeSeconds)
		runtimeCollectorStop = RuntimeCollectorInstance.StartCollector(10 * time.Second)
		defaultRegistry = r
	})
	return defaultRegistry
}

// DefaultRegistry returns the default registry, or nil before Init.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Reset drops the default metrics so Init can run again. Used by tests.
func Reset() {
	if runtimeCollectorStop != nil {
		runtimeCollectorStop()
		runtimeCollectorStop = nil
	}
	initOnce = sync.Once{}
	defaultRegistry = nil
	HTTPRequestsTotal = nil
	HTTPRequestDuration = nil
	InFlightRequests = nil
	TemplateFillsTotal = nil
	DomainErrorsTotal = nil
	ExpiredAccessesPurged = nil
	UptimeSeconds = nil
	RuntimeCollectorInstance = nil
}

// RecordFill counts one template fill. It is a no-op before Init.
func RecordFill(complete bool) {
	if TemplateFillsTotal == nil {
		return
	}
	outcome := "partial"
	if complete {
		outcome = "complete"
	}
	if vec, err := TemplateFillsTotal.WithLabels(outcome); err == nil {
		_ = vec.Inc()
	}
}

// RecordDomainError counts one rejected request. It is a no-op before Init.
func RecordDomainError(kind string) {
	if DomainErrorsTotal == nil {
		return
	}
	if vec, err := DomainErrorsTotal.WithLabels(kind); err == nil {
		_ = vec.Inc()
	}
}

// RecordPurged counts accesses deleted by the expiry sweeper.
func RecordPurged(n int) {
	if ExpiredAccessesPurged == nil || n <= 0 {
		return
	}
	_ = ExpiredAccessesPurged.Add(float64(n))
}
