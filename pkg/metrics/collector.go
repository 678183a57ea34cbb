package metrics

import (
	"sync"
	"time"

	"github.com/kvfabric/kvfabric/pkg/engine"
)

// Collector periodically samples an Engine's registry state into gauges
// that aren't naturally updated on the request path: request counters and
// histograms are observed inline by the transport server, lock wait by
// pkg/lock, and migration counters by pkg/migration.
type Collector struct {
	engine   *engine.Engine
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a new metrics collector over e.
func NewCollector(e *engine.Engine) *Collector {
	return &Collector{
		engine: e,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic collection on its own goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
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

// Stop stops the collector. Safe to call more than once: shutdown can
// run on more than one exit path (a shutdown RPC, then a signal-canceled
// context), and only the first call may close stopCh.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Collector) collect() {
	counts := make(map[string]int)
	for _, kind := range c.engine.BackendKinds() {
		counts[string(kind)]++
	}
	DatabasesTotal.Reset()
	for backend, count := range counts {
		DatabasesTotal.WithLabelValues(backend).Set(float64(count))
	}

	BackendBytesStored.Reset()
	for name, size := range c.engine.DatabaseSizes() {
		BackendBytesStored.WithLabelValues(name).Set(float64(size))
	}
}
