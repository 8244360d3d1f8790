// Package prometheus exposes gateAuth engine metrics through client_golang.
//
// [Collector] implements prometheus.Collector over the engine snapshot.
// Counter names follow gateauth_*_total; the single histogram is
// gateauth_validate_latency_seconds. Nothing is registered globally.
package prometheus
