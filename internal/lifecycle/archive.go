package lifecycle

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/coldkeep/coldkeep/internal/tier"
)

// ArchiveExpiredHotFiles moves every hot file whose expiry has passed to
// the cold tier. Failures are isolated per file so one bad move does not
// stall the rest; a failed file stays hot and is retried on the next
// sweep. Returns the number of files moved.
func (m *Manager) ArchiveExpiredHotFiles(ctx context.Context) (int, error) {
	expired, err := m.store.FindExpiredHot(ctx, m.now())
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, f := range expired {
		if _, err := m.SetTier(ctx, f, SetTierOptions{Tier: tier.Cold}); err != nil {
			log.Warn().Err(err).
				Str("file_id", f.ID).
				Str("path", f.Path).
				Msg("Failed to archive expired hot file")
			continue
		}
		moved++
		if m.metrics != nil {
			m.metrics.FilesArchived.Inc()
		}
	}

	if len(expired) > 0 {
		log.Info().
			Int("moved", moved).
			Int("expired", len(expired)).
			Msg("Archived expired hot files")
	}
	return moved, nil
}
