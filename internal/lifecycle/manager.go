// Package lifecycle coordinates object bytes and file records: uploads,
// URL generation, visibility and tier moves, hot-expiry archival and
// orphan reconciliation.
//
// The ordering rule throughout is object-first. Uploads write the object
// before the record, deletes remove the object before the record. A crash
// between the two steps therefore leaves an orphan object rather than a
// record pointing at nothing, and orphans are what the reconciliation
// scan exists to find.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coldkeep/coldkeep/internal/config"
	"github.com/coldkeep/coldkeep/internal/objstore"
	"github.com/coldkeep/coldkeep/internal/record"
	"github.com/coldkeep/coldkeep/internal/tier"
)

// Manager is the single entry point for file lifecycle operations.
type Manager struct {
	gateway *objstore.Gateway
	store   record.Store
	cfg     *config.Config
	events  EventSink
	metrics *Metrics
	now     func() time.Time
}

// NewManager builds a lifecycle manager over a gateway and a record store.
// Events are discarded until SetEventSink is called.
func NewManager(cfg *config.Config, gateway *objstore.Gateway, store record.Store) *Manager {
	return &Manager{
		gateway: gateway,
		store:   store,
		cfg:     cfg,
		events:  NoopSink{},
		metrics: GetMetrics(),
		now:     time.Now,
	}
}

// SetEventSink replaces the event sink. A nil sink disables publishing.
func (m *Manager) SetEventSink(sink EventSink) {
	if sink == nil {
		sink = NoopSink{}
	}
	m.events = sink
}

// publish emits a lifecycle event. Publishing is best effort: a sink
// failure is logged and never fails the operation that produced the event.
func (m *Manager) publish(ctx context.Context, eventType string, f record.File) {
	e := Event{Type: eventType, File: f, At: m.now().UTC()}
	if err := m.events.Publish(ctx, e); err != nil {
		log.Warn().Err(err).
			Str("event", eventType).
			Str("file_id", f.ID).
			Msg("Failed to publish lifecycle event")
	}
}

// UploadOptions controls where an uploaded file lands. Zero values fall
// back to the configured defaults.
type UploadOptions struct {
	Tier        tier.Tier       // default: advanced.default_tier
	Visibility  tier.Visibility // default: advanced.default_visibility
	Filename    string          // default: a random UUID
	PathSuffix  string          // default: "<uuid>-<filename>"
	HotDuration *time.Duration  // hot tier only: time until archival
}

// Upload stores the object bytes, then creates the file record. When the
// record write fails the object stays behind and surfaces as an orphan on
// the next reconciliation scan.
func (m *Manager) Upload(ctx context.Context, data []byte, opts UploadOptions) (record.File, error) {
	if max := m.cfg.MaxFileSize(); max > 0 && int64(len(data)) > max {
		return record.File{}, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, len(data), max)
	}

	t := opts.Tier
	if t == "" {
		t = m.cfg.DefaultTier()
	}
	if !t.Valid() {
		return record.File{}, fmt.Errorf("invalid tier: %q", t)
	}
	v := opts.Visibility
	if v == "" {
		v = m.cfg.DefaultVisibility()
	}
	if !v.Valid() {
		return record.File{}, fmt.Errorf("invalid visibility: %q", v)
	}

	tc, err := m.gateway.Config(t)
	if err != nil {
		return record.File{}, err
	}

	filename := opts.Filename
	if filename == "" {
		filename = uuid.NewString()
	}
	suffix := opts.PathSuffix
	if suffix == "" {
		suffix = uuid.NewString() + "-" + filename
	}
	path := buildPath(tc, v, suffix)

	var hotUntil *time.Time
	if t == tier.Hot && opts.HotDuration != nil {
		u := m.now().Add(*opts.HotDuration).UTC()
		hotUntil = &u
	}

	if err := m.gateway.Put(ctx, t, path, data); err != nil {
		return record.File{}, err
	}

	f, err := m.store.Create(ctx, t, filename, path, hotUntil)
	if err != nil {
		log.Warn().Err(err).
			Str("tier", string(t)).
			Str("path", path).
			Msg("Object stored but record creation failed, object is now an orphan")
		return record.File{}, fmt.Errorf("create record for %s: %w", path, err)
	}

	if m.metrics != nil {
		m.metrics.FilesUploaded.Inc()
	}
	log.Info().
		Str("file_id", f.ID).
		Str("tier", string(t)).
		Str("path", path).
		Int("size", len(data)).
		Msg("Uploaded file")
	m.publish(ctx, EventUploaded, f)
	return f, nil
}

// URL produces a download URL for a file. Public files get a plain
// unauthenticated URL; private files get a presigned one valid for
// expiresIn, or for the configured default when expiresIn is zero.
func (m *Manager) URL(f record.File, expiresIn time.Duration) (string, error) {
	tc, err := m.gateway.Config(f.Tier)
	if err != nil {
		return "", err
	}
	v, _, err := splitVisibility(tc, f.Path)
	if err != nil {
		return "", err
	}
	if v == tier.Public {
		return m.gateway.PublicURL(f.Tier, f.Path)
	}
	if expiresIn <= 0 {
		expiresIn = m.cfg.PresignTTL()
	}
	return m.gateway.PresignedURL(f.Tier, f.Path, expiresIn)
}

// SetVisibilityOptions controls a visibility change. SkipMove updates only
// the record, for callers that have already relocated the object.
type SetVisibilityOptions struct {
	Visibility tier.Visibility
	SkipMove   bool
}

// SetVisibility moves a file between the public and private prefixes of
// its tier. Same-visibility calls return the file unchanged.
func (m *Manager) SetVisibility(ctx context.Context, f record.File, opts SetVisibilityOptions) (record.File, error) {
	if !opts.Visibility.Valid() {
		return record.File{}, fmt.Errorf("invalid visibility: %q", opts.Visibility)
	}
	tc, err := m.gateway.Config(f.Tier)
	if err != nil {
		return record.File{}, err
	}
	current, suffix, err := splitVisibility(tc, f.Path)
	if err != nil {
		return record.File{}, err
	}
	if current == opts.Visibility {
		return f, nil
	}

	newPath := buildPath(tc, opts.Visibility, suffix)
	if !opts.SkipMove {
		if err := m.gateway.Move(ctx, f.Tier, f.Path, f.Tier, newPath); err != nil {
			return record.File{}, err
		}
	}

	updated, err := m.store.Update(ctx, f.ID, record.Update{Path: &newPath})
	if err != nil {
		return record.File{}, fmt.Errorf("update record %s: %w", f.ID, err)
	}
	log.Info().
		Str("file_id", f.ID).
		Str("visibility", string(opts.Visibility)).
		Str("path", newPath).
		Msg("Changed file visibility")
	m.publish(ctx, EventVisibilityChanged, updated)
	return updated, nil
}

// SetTierOptions controls a tier change.
type SetTierOptions struct {
	Tier        tier.Tier
	SkipMove    bool           // update only the record
	HotDuration *time.Duration // when moving to hot: time until archival
}

// SetTier moves a file between storage tiers, keeping its visibility
// prefix. Moving to cold always clears the hot expiry; moving to hot sets
// one only when a duration is given. Same-tier calls return the file
// unchanged.
func (m *Manager) SetTier(ctx context.Context, f record.File, opts SetTierOptions) (record.File, error) {
	if !opts.Tier.Valid() {
		return record.File{}, fmt.Errorf("invalid tier: %q", opts.Tier)
	}
	if f.Tier == opts.Tier {
		return f, nil
	}

	srcCfg, err := m.gateway.Config(f.Tier)
	if err != nil {
		return record.File{}, err
	}
	dstCfg, err := m.gateway.Config(opts.Tier)
	if err != nil {
		return record.File{}, err
	}
	v, suffix, err := splitVisibility(srcCfg, f.Path)
	if err != nil {
		return record.File{}, err
	}
	newPath := buildPath(dstCfg, v, suffix)

	patch := record.Update{Tier: &opts.Tier, Path: &newPath}
	switch {
	case opts.Tier == tier.Hot && opts.HotDuration != nil:
		u := m.now().Add(*opts.HotDuration).UTC()
		patch.HotUntil = &u
		patch.SetHotUntil = true
	case opts.Tier == tier.Cold:
		// A cold file never carries an expiry.
		patch.SetHotUntil = true
	}

	if !opts.SkipMove {
		if err := m.gateway.Move(ctx, f.Tier, f.Path, opts.Tier, newPath); err != nil {
			return record.File{}, err
		}
	}

	updated, err := m.store.Update(ctx, f.ID, patch)
	if err != nil {
		return record.File{}, fmt.Errorf("update record %s: %w", f.ID, err)
	}
	log.Info().
		Str("file_id", f.ID).
		Str("tier", string(opts.Tier)).
		Str("path", newPath).
		Msg("Changed file tier")
	m.publish(ctx, EventTierChanged, updated)
	return updated, nil
}

// SetHotDuration adjusts when a hot file is archived. A nil duration
// clears the expiry so the file stays hot until moved; a zero or negative
// duration makes it eligible for the next sweep. Cold files are rejected.
func (m *Manager) SetHotDuration(ctx context.Context, f record.File, duration *time.Duration) (record.File, error) {
	if f.Tier != tier.Hot {
		return record.File{}, fmt.Errorf("%w: %s is on tier %q", ErrNotHot, f.ID, f.Tier)
	}

	patch := record.Update{SetHotUntil: true}
	if duration != nil {
		u := m.now().Add(*duration).UTC()
		patch.HotUntil = &u
	}

	updated, err := m.store.Update(ctx, f.ID, patch)
	if err != nil {
		return record.File{}, fmt.Errorf("update record %s: %w", f.ID, err)
	}
	m.publish(ctx, EventHotDurationSet, updated)
	return updated, nil
}

// Delete removes the object bytes, then the file record. The record is
// only deleted once the object is gone, so a failed object delete leaves
// the file intact and retryable instead of stranding an orphan.
func (m *Manager) Delete(ctx context.Context, f record.File) error {
	if err := m.gateway.Delete(ctx, f.Tier, f.Path); err != nil {
		return fmt.Errorf("delete object %s: %w", f.Path, err)
	}
	if err := m.store.Delete(ctx, f.ID); err != nil {
		return fmt.Errorf("delete record %s: %w", f.ID, err)
	}
	if m.metrics != nil {
		m.metrics.FilesDeleted.Inc()
	}
	log.Info().
		Str("file_id", f.ID).
		Str("tier", string(f.Tier)).
		Str("path", f.Path).
		Msg("Deleted file")
	m.publish(ctx, EventDeleted, f)
	return nil
}

// Exists reports whether the object bytes for a file are present on its
// tier. Backend failures read as absent, so a storage outage can look like
// a missing object here.
func (m *Manager) Exists(ctx context.Context, f record.File) bool {
	return m.gateway.Exists(ctx, f.Tier, f.Path)
}

// FindByID returns a file record by ID.
func (m *Manager) FindByID(ctx context.Context, id string) (record.File, error) {
	return m.store.FindByID(ctx, id)
}

// ListFiles returns every file record.
func (m *Manager) ListFiles(ctx context.Context) ([]record.File, error) {
	return m.store.FindAll(ctx)
}

// splitVisibility classifies a path by its visibility prefix and returns
// the remainder after the prefix.
func splitVisibility(tc config.TierConfig, path string) (tier.Visibility, string, error) {
	if rest, ok := strings.CutPrefix(path, tc.Prefix(tier.Public)+"/"); ok {
		return tier.Public, rest, nil
	}
	if rest, ok := strings.CutPrefix(path, tc.Prefix(tier.Private)+"/"); ok {
		return tier.Private, rest, nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrNoVisibilityPrefix, path)
}

// buildPath joins a visibility prefix and a path suffix.
func buildPath(tc config.TierConfig, v tier.Visibility, suffix string) string {
	return tc.Prefix(v) + "/" + suffix
}
