package lifecycle

import (
	"context"
	"time"

	"github.com/coldkeep/coldkeep/internal/record"
)

// Event types published after successful mutations.
const (
	EventUploaded          = "uploaded"
	EventVisibilityChanged = "visibility_changed"
	EventTierChanged       = "tier_changed"
	EventHotDurationSet    = "hot_duration_set"
	EventDeleted           = "deleted"
	EventAdopted           = "adopted"
)

// Event describes one completed file mutation.
type Event struct {
	Type string      `json:"type"`
	File record.File `json:"file"`
	At   time.Time   `json:"at"`
}

// EventSink receives lifecycle events. Publishing is best-effort: the
// manager logs sink failures and never fails the originating operation.
type EventSink interface {
	Publish(ctx context.Context, e Event) error
}

// NoopSink discards all events.
type NoopSink struct{}

// Publish does nothing.
func (NoopSink) Publish(context.Context, Event) error { return nil }
