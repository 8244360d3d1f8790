// Package otel publishes gateAuth engine metrics as OpenTelemetry observable
// instruments.
//
// [NewExporter] creates one Int64ObservableCounter per engine counter and a
// bucket gauge keyed by "le" for the validation latency histogram. Callers
// own the MeterProvider.
package otel
