/*
Package metrics defines and registers the gateway's Prometheus metrics and
exposes them via an HTTP handler for scraping.

# Categories

  - Cluster and worker inventory gauges (gatewayd_clusters_total,
    gatewayd_workers_total), kept current by Collector.
  - Lifecycle operation histograms and failure counters for cluster and
    worker start/stop.
  - Job queue backend interaction counters.
  - Connection Registrar request counters and latency.
  - Recovery controller duration and mismatch counts.

# Usage

	http.Handle("/metrics", metrics.Handler())

	collector := metrics.NewCollector(store)
	collector.Start(15 * time.Second)
	defer collector.Stop()

	timer := metrics.NewTimer()
	// ... start a cluster ...
	timer.ObserveDuration(metrics.ClusterStartDuration)
*/
package metrics
