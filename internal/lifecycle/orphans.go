package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/coldkeep/coldkeep/internal/objstore"
	"github.com/coldkeep/coldkeep/internal/record"
	"github.com/coldkeep/coldkeep/internal/tier"
)

// BucketObjects is one tier's bucket listing.
type BucketObjects struct {
	Tier    tier.Tier               `json:"tier"`
	Bucket  string                  `json:"bucket"`
	Objects []objstore.RemoteObject `json:"objects"`
	Count   int                     `json:"count"`
}

// AllObjects is a combined listing of both tiers.
type AllObjects struct {
	Hot         BucketObjects `json:"hot"`
	Cold        BucketObjects `json:"cold"`
	TotalCount  int           `json:"total_count"`
	CollectedAt time.Time     `json:"collected_at"`
}

// OrphanObject is a stored object that no file record references.
type OrphanObject struct {
	objstore.RemoteObject
	Tier   tier.Tier `json:"tier"`
	Bucket string    `json:"bucket"`
}

// OrphanError records a single failed orphan operation.
type OrphanError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// ListAllObjects lists both tiers concurrently, optionally restricted to
// keys under prefix.
func (m *Manager) ListAllObjects(ctx context.Context, prefix string) (AllObjects, error) {
	var hot, cold []objstore.RemoteObject

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hot, err = m.gateway.List(ctx, tier.Hot, prefix)
		return err
	})
	g.Go(func() error {
		var err error
		cold, err = m.gateway.List(ctx, tier.Cold, prefix)
		return err
	})
	if err := g.Wait(); err != nil {
		return AllObjects{}, err
	}

	hotCfg, err := m.gateway.Config(tier.Hot)
	if err != nil {
		return AllObjects{}, err
	}
	coldCfg, err := m.gateway.Config(tier.Cold)
	if err != nil {
		return AllObjects{}, err
	}

	return AllObjects{
		Hot:         BucketObjects{Tier: tier.Hot, Bucket: hotCfg.Bucket, Objects: hot, Count: len(hot)},
		Cold:        BucketObjects{Tier: tier.Cold, Bucket: coldCfg.Bucket, Objects: cold, Count: len(cold)},
		TotalCount:  len(hot) + len(cold),
		CollectedAt: m.now().UTC(),
	}, nil
}

// ListOrphanObjects finds stored objects with no file record. The two
// bucket listings and the record set are fetched concurrently. An object
// is an orphan when no record on either tier claims its path, so a record
// that is mid-move never exposes its counterpart object as deletable.
func (m *Manager) ListOrphanObjects(ctx context.Context, prefix string) ([]OrphanObject, error) {
	var (
		hot, cold []objstore.RemoteObject
		files     []record.File
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hot, err = m.gateway.List(ctx, tier.Hot, prefix)
		return err
	})
	g.Go(func() error {
		var err error
		cold, err = m.gateway.List(ctx, tier.Cold, prefix)
		return err
	})
	g.Go(func() error {
		var err error
		files, err = m.store.FindAll(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(files))
	for _, f := range files {
		known[f.Path] = struct{}{}
	}

	hotCfg, err := m.gateway.Config(tier.Hot)
	if err != nil {
		return nil, err
	}
	coldCfg, err := m.gateway.Config(tier.Cold)
	if err != nil {
		return nil, err
	}

	var orphans []OrphanObject
	for _, obj := range hot {
		if _, ok := known[obj.Key]; !ok {
			orphans = append(orphans, OrphanObject{RemoteObject: obj, Tier: tier.Hot, Bucket: hotCfg.Bucket})
		}
	}
	for _, obj := range cold {
		if _, ok := known[obj.Key]; !ok {
			orphans = append(orphans, OrphanObject{RemoteObject: obj, Tier: tier.Cold, Bucket: coldCfg.Bucket})
		}
	}

	if m.metrics != nil {
		m.metrics.OrphanObjects.Set(float64(len(orphans)))
	}
	return orphans, nil
}

// DeleteOrphanOptions filters which orphans a delete pass touches.
type DeleteOrphanOptions struct {
	Prefix string    // only orphans whose key starts with this
	Tier   tier.Tier // restrict to one tier; zero value means both
	DryRun bool      // report what would be deleted without deleting
}

// DeleteOrphanResult reports a delete pass.
type DeleteOrphanResult struct {
	Deleted      int           `json:"deleted"`
	Failed       int           `json:"failed"`
	DeletedPaths []string      `json:"deleted_paths,omitempty"`
	Errors       []OrphanError `json:"errors,omitempty"`
	DryRun       bool          `json:"dry_run"`
}

// DeleteOrphans removes orphan objects. Failures are collected per object
// so one bad key does not stop the pass. In dry-run mode matching orphans
// are counted as deleted but left in place.
func (m *Manager) DeleteOrphans(ctx context.Context, opts DeleteOrphanOptions) (DeleteOrphanResult, error) {
	if opts.Tier != "" && !opts.Tier.Valid() {
		return DeleteOrphanResult{}, fmt.Errorf("invalid tier: %q", opts.Tier)
	}

	orphans, err := m.ListOrphanObjects(ctx, opts.Prefix)
	if err != nil {
		return DeleteOrphanResult{}, err
	}

	result := DeleteOrphanResult{DryRun: opts.DryRun}
	for _, o := range orphans {
		if opts.Tier != "" && o.Tier != opts.Tier {
			continue
		}
		if opts.DryRun {
			result.Deleted++
			result.DeletedPaths = append(result.DeletedPaths, o.Key)
			continue
		}
		if err := m.gateway.Delete(ctx, o.Tier, o.Key); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, OrphanError{Path: o.Key, Error: err.Error()})
			continue
		}
		result.Deleted++
		result.DeletedPaths = append(result.DeletedPaths, o.Key)
		if m.metrics != nil {
			m.metrics.OrphansDeleted.Inc()
		}
	}

	if !result.DryRun && result.Deleted > 0 {
		log.Info().
			Int("deleted", result.Deleted).
			Int("failed", result.Failed).
			Msg("Deleted orphan objects")
	}
	return result, nil
}

// AdoptOrphanOptions controls how orphans are turned into file records.
type AdoptOrphanOptions struct {
	Prefix          string              // only orphans whose key starts with this
	Tier            tier.Tier           // restrict to one tier; zero value means both
	ExtractFilename func(string) string // filename from key; default: last path segment
	SetHotUntil     bool                // give adopted hot files an expiry
	HotDuration     *time.Duration      // expiry used when SetHotUntil is set
}

// AdoptOrphanResult reports an adopt pass.
type AdoptOrphanResult struct {
	Adopted    int           `json:"adopted"`
	Failed     int           `json:"failed"`
	AdoptedIDs []string      `json:"adopted_ids,omitempty"`
	Errors     []OrphanError `json:"errors,omitempty"`
}

// AdoptOrphans creates file records for orphan objects so they rejoin the
// managed lifecycle. An adopted object keeps its key as the record path.
// Hot orphans get an expiry only when both SetHotUntil and HotDuration
// are provided; cold orphans never do.
func (m *Manager) AdoptOrphans(ctx context.Context, opts AdoptOrphanOptions) (AdoptOrphanResult, error) {
	if opts.Tier != "" && !opts.Tier.Valid() {
		return AdoptOrphanResult{}, fmt.Errorf("invalid tier: %q", opts.Tier)
	}
	extract := opts.ExtractFilename
	if extract == nil {
		extract = baseName
	}

	orphans, err := m.ListOrphanObjects(ctx, opts.Prefix)
	if err != nil {
		return AdoptOrphanResult{}, err
	}

	var result AdoptOrphanResult
	for _, o := range orphans {
		if opts.Tier != "" && o.Tier != opts.Tier {
			continue
		}

		var hotUntil *time.Time
		if o.Tier == tier.Hot && opts.SetHotUntil && opts.HotDuration != nil {
			u := m.now().Add(*opts.HotDuration).UTC()
			hotUntil = &u
		}

		f, err := m.store.Create(ctx, o.Tier, extract(o.Key), o.Key, hotUntil)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, OrphanError{Path: o.Key, Error: err.Error()})
			continue
		}
		result.Adopted++
		result.AdoptedIDs = append(result.AdoptedIDs, f.ID)
		if m.metrics != nil {
			m.metrics.OrphansAdopted.Inc()
		}
		m.publish(ctx, EventAdopted, f)
	}

	if result.Adopted > 0 {
		log.Info().
			Int("adopted", result.Adopted).
			Int("failed", result.Failed).
			Msg("Adopted orphan objects")
	}
	return result, nil
}

// baseName returns the last segment of a slash-separated key.
func baseName(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}
