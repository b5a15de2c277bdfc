// Package retention runs the periodic sweep that expires jobs and their
// stored artifacts once they have outlived the configured retention
// window, grounded on the same ticker/select background-loop idiom used
// for other periodic maintenance in this codebase.
package retention

import (
	"sync"
	"time"

	"github.com/secureai/medgenomics/pkg/events"
	"github.com/secureai/medgenomics/pkg/log"
	"github.com/secureai/medgenomics/pkg/metrics"
	"github.com/secureai/medgenomics/pkg/registry"
	"github.com/secureai/medgenomics/pkg/store"
	"github.com/secureai/medgenomics/pkg/types"
	"github.com/rs/zerolog"
)

// Sweeper periodically deletes the stored artifact for every terminal job
// older than RetentionWindow, transitions it to retained_deleted, and
// prunes registry entries that have already been in that state past the
// window.
type Sweeper struct {
	registry         *registry.Registry
	store            *store.Store
	broker           *events.Broker
	retentionWindow  time.Duration
	interval         time.Duration
	logger           zerolog.Logger
	stopCh           chan struct{}
	wg               sync.WaitGroup
}

// New builds a Sweeper. interval controls how often the sweep runs;
// retentionWindow is how long a completed/failed/cancelled job's artifact
// is kept before deletion.
func New(reg *registry.Registry, st *store.Store, broker *events.Broker, retentionWindow, interval time.Duration) *Sweeper {
	return &Sweeper{
		registry:        reg,
		store:           st,
		broker:          broker,
		retentionWindow: retentionWindow,
		interval:        interval,
		logger:          log.WithComponent("retention"),
		stopCh:          make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Sweeper) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Dur("retention_window", s.retentionWindow).Msg("retention sweeper started")

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			s.logger.Info().Msg("retention sweeper stopped")
			return
		}
	}
}

// sweep deletes artifacts for expired terminal jobs and prunes registry
// entries already marked retained_deleted past the window.
func (s *Sweeper) sweep() {
	cutoff := time.Now().Add(-s.retentionWindow)

	// Prune before expiring, so a job moved to retained_deleted by this
	// sweep stays visible until the next one.
	removed := s.registry.Prune(cutoff)
	if removed > 0 {
		metrics.RetentionPrunedTotal.Add(float64(removed))
	}

	for _, job := range s.registry.List() {
		if !job.State.Terminal() || job.State == types.JobStateRetainedDeleted {
			continue
		}
		if job.CompletedAt.IsZero() || job.CompletedAt.After(cutoff) {
			continue
		}
		s.expire(job)
	}
}

func (s *Sweeper) expire(job types.JobView) {
	logger := log.WithJobID(job.ID)

	if job.ArtifactRef != nil {
		proof, err := s.store.Delete(*job.ArtifactRef)
		if err != nil {
			logger.Error().Err(err).Msg("failed to delete expired artifact")
			return
		}
		if err := s.registry.MarkDeleted(job.ID, proof.DeletionTimestamp); err != nil {
			logger.Error().Err(err).Msg("failed to record deletion on job")
		}
		if s.broker != nil {
			s.broker.Publish(&events.Event{
				Type:    events.EventArtifactDeleted,
				JobID:   job.ID,
				Message: "artifact expired by retention sweep",
				Metadata: map[string]string{
					"content_hash": proof.ArtifactContentHash,
				},
			})
		}
	}

	if _, err := s.registry.Transition(job.ID, job.State, types.JobStateRetainedDeleted); err != nil {
		logger.Error().Err(err).Msg("failed to transition job to retained_deleted")
	}
}
