package lifecycle

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper periodically archives expired hot files and, when configured,
// refreshes the orphan gauge.
type Sweeper struct {
	manager    *Manager
	interval   time.Duration
	orphanScan bool
	running    atomic.Bool
}

// NewSweeper builds a sweeper from the manager's configuration. Returns
// nil when the sweep interval is zero.
func NewSweeper(m *Manager) *Sweeper {
	interval := m.cfg.SweepInterval()
	if interval <= 0 {
		return nil
	}
	return &Sweeper{
		manager:    m,
		interval:   interval,
		orphanScan: m.cfg.Sweeper.OrphanScan,
	}
}

// Run sweeps immediately, then on every interval tick until ctx is
// cancelled. It blocks; callers normally run it in a goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	log.Info().
		Dur("interval", s.interval).
		Bool("orphan_scan", s.orphanScan).
		Msg("Sweeper started")

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one maintenance pass. An overlapping pass is skipped rather
// than queued.
func (s *Sweeper) sweep(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		log.Debug().Msg("Previous sweep still running, skipping")
		return
	}
	defer s.running.Store(false)

	start := time.Now()
	status := "success"

	moved, err := s.manager.ArchiveExpiredHotFiles(ctx)
	if err != nil {
		status = "error"
		log.Error().Err(err).Msg("Archival sweep failed")
	} else if moved > 0 {
		log.Debug().Int("moved", moved).Msg("Archival sweep moved files to cold storage")
	}

	if s.orphanScan {
		if _, err := s.manager.ListOrphanObjects(ctx, ""); err != nil {
			status = "error"
			log.Error().Err(err).Msg("Orphan scan failed")
		}
	}

	if metrics := s.manager.metrics; metrics != nil {
		metrics.SweepsTotal.WithLabelValues(status).Inc()
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}
}
