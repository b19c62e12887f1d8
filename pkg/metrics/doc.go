// Package metrics exposes Prometheus text-format metrics for the formroom
// server without a client library dependency.
//
// Supported metric types are Counter, Gauge and Histogram. All of them are
// safe for concurrent use.
//
// # Usage
//
//	registry := metrics.Init()
//	vec, _ := metrics.HTTPRequestsTotal.WithLabels("GET", "GET /v1/forms", "200")
//	_ = vec.Inc()
//	mux.Handle("GET /metrics", registry.Handler())
//
// Custom metrics can be registered on a fresh registry:
//
//	registry := metrics.NewRegistry()
//	counter := registry.NewCounter("my_counter", "Description of counter", "label1")
package metrics
