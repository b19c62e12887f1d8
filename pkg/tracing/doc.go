// Package tracing sets up OpenTelemetry tracing for the formroom server.
//
// When no OTLP endpoint is configured, Init returns a provider whose tracer
// is a no-op, so instrumented code never needs to check whether tracing is
// on. Spans are exported over OTLP/HTTP and W3C trace context is read from
// incoming requests.
package tracing
