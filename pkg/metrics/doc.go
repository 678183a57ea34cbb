/*
Package metrics exposes kvfabric's Prometheus instrumentation: request
counters and latency histograms per operation, lock wait time, migration
throughput, and a periodic Collector that samples registry state (database
count by backend kind) into gauges.

Handler returns the standard promhttp handler for mounting at /metrics.
Request-path metrics are observed inline by pkg/transport; Collector
handles everything that requires polling rather than an event.
*/
package metrics
