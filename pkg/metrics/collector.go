package metrics

import (
	"time"

	"github.com/secureai/medgenomics/pkg/types"
)

// JobLister is the subset of pkg/registry.Registry the collector needs.
// Defined here (rather than importing pkg/registry directly) so that
// pkg/metrics does not depend on pkg/registry.
type JobLister interface {
	List() []types.JobView
}

// Collector periodically polls the job registry and republishes
// per-state job counts as gauges, the way the rest of this codebase's
// background collectors poll their backing store on a ticker.
type Collector struct {
	registry JobLister
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector over reg.
func NewCollector(reg JobLister) *Collector {
	return &Collector{
		registry: reg,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15-second tick.
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

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	jobs := c.registry.List()

	counts := map[types.JobState]int{}
	for _, job := range jobs {
		counts[job.State]++
	}

	for _, state := range []types.JobState{
		types.JobStateQueued,
		types.JobStateRunning,
		types.JobStateCompleted,
		types.JobStateFailed,
		types.JobStateCancelled,
		types.JobStateRetainedDeleted,
	} {
		JobsTotal.WithLabelValues(string(state)).Set(float64(counts[state]))
	}
}
