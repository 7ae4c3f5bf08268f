package metrics

import (
	"context"
	"time"

	"github.com/cuemby/gatewayd/pkg/storage"
)

// Collector periodically samples the store to keep gauge metrics (cluster
// and worker counts by status) in line with persisted state. Counters and
// histograms are updated directly by the components that observe them;
// Collector only exists for metrics that must be derived from a full scan.
type Collector struct {
	store  storage.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector reading from store.
func NewCollector(store storage.Store) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every interval until Stop is called.
func (c *Collector) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector. It must not be called more than once.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clusters, err := c.store.ListClusters(ctx)
	if err != nil {
		return
	}

	clusterCounts := make(map[string]int)
	workerCounts := make(map[string]int)
	for _, cluster := range clusters {
		clusterCounts[string(cluster.Status)]++
		workers, err := c.store.ListWorkers(ctx, cluster.Name)
		if err != nil {
			continue
		}
		for _, w := range workers {
			workerCounts[string(w.Status)]++
		}
	}

	for status, count := range clusterCounts {
		ClustersTotal.WithLabelValues(status).Set(float64(count))
	}
	for status, count := range workerCounts {
		WorkersTotal.WithLabelValues(status).Set(float64(count))
	}
}
