// Package tracer wraps the OpenTelemetry tracing API for chaingate.
//
// Spans are created from the global OpenTelemetry tracer provider. Without
// an SDK provider installed the spans are non-recording and cost almost
// nothing; installing one in main is enough to export them.
package tracer
