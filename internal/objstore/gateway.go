package objstore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coldkeep/coldkeep/internal/config"
	"github.com/coldkeep/coldkeep/internal/tier"
)

// Gateway routes object operations to the hot or cold backend. It owns one
// Client per tier plus the resolved tier configuration, so callers never
// touch buckets or credentials directly.
type Gateway struct {
	hot  Client
	cold Client

	hotCfg  config.TierConfig
	coldCfg config.TierConfig

	metrics *GatewayMetrics
	now     func() time.Time
}

// NewGateway resolves both tiers from cfg and connects an HTTP client to each.
func NewGateway(cfg *config.Config) (*Gateway, error) {
	hotCfg, err := cfg.Resolve(tier.Hot)
	if err != nil {
		return nil, err
	}
	coldCfg, err := cfg.Resolve(tier.Cold)
	if err != nil {
		return nil, err
	}
	return &Gateway{
		hot:     NewHTTPClient(hotCfg),
		cold:    NewHTTPClient(coldCfg),
		hotCfg:  hotCfg,
		coldCfg: coldCfg,
		metrics: GetGatewayMetrics(),
		now:     time.Now,
	}, nil
}

// NewGatewayWithClients builds a gateway around existing clients. Tests and
// embedded callers use this to swap in in-memory backends.
func NewGatewayWithClients(hot, cold Client, hotCfg, coldCfg config.TierConfig) *Gateway {
	return &Gateway{
		hot:     hot,
		cold:    cold,
		hotCfg:  hotCfg,
		coldCfg: coldCfg,
		metrics: GetGatewayMetrics(),
		now:     time.Now,
	}
}

func (g *Gateway) client(t tier.Tier) (Client, error) {
	switch t {
	case tier.Hot:
		return g.hot, nil
	case tier.Cold:
		return g.cold, nil
	default:
		return nil, fmt.Errorf("invalid tier: %q", t)
	}
}

// Config returns the resolved configuration for a tier.
func (g *Gateway) Config(t tier.Tier) (config.TierConfig, error) {
	switch t {
	case tier.Hot:
		return g.hotCfg, nil
	case tier.Cold:
		return g.coldCfg, nil
	default:
		return config.TierConfig{}, fmt.Errorf("invalid tier: %q", t)
	}
}

func (g *Gateway) record(operation string, t tier.Tier, start time.Time, err error) {
	if g.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	g.metrics.RecordOperation(operation, string(t), status, time.Since(start).Seconds())
}

// Put writes data to key on the given tier.
func (g *Gateway) Put(ctx context.Context, t tier.Tier, key string, data []byte) (err error) {
	start := g.now()
	defer func() { g.record("put", t, start, err) }()

	c, err := g.client(t)
	if err != nil {
		return err
	}
	if err = c.Put(ctx, key, data); err != nil {
		return fmt.Errorf("put %s/%s: %w", t, key, err)
	}
	if g.metrics != nil && len(data) > 0 {
		g.metrics.RecordUpload(int64(len(data)))
	}
	return nil
}

// Get reads the object at key on the given tier. A missing object yields
// ErrObjectNotFound.
func (g *Gateway) Get(ctx context.Context, t tier.Tier, key string) (data []byte, err error) {
	start := g.now()
	defer func() { g.record("get", t, start, err) }()

	c, err := g.client(t)
	if err != nil {
		return nil, err
	}
	data, err = c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if g.metrics != nil && len(data) > 0 {
		g.metrics.RecordDownload(int64(len(data)))
	}
	return data, nil
}

// Delete removes the object at key on the given tier. Deleting an absent
// object is not an error.
func (g *Gateway) Delete(ctx context.Context, t tier.Tier, key string) (err error) {
	start := g.now()
	defer func() { g.record("delete", t, start, err) }()

	c, err := g.client(t)
	if err != nil {
		return err
	}
	if err = c.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", t, key, err)
	}
	return nil
}

// Exists reports whether key holds an object on the given tier. Any backend
// failure reads as absent, so an outage is indistinguishable from a missing
// object here; use Stat when that difference matters.
func (g *Gateway) Exists(ctx context.Context, t tier.Tier, key string) bool {
	c, err := g.client(t)
	if err != nil {
		return false
	}
	_, err = c.Head(ctx, key)
	return err == nil
}

// Stat returns remote metadata for the object at key on the given tier.
func (g *Gateway) Stat(ctx context.Context, t tier.Tier, key string) (obj RemoteObject, err error) {
	start := g.now()
	defer func() { g.record("stat", t, start, err) }()

	c, err := g.client(t)
	if err != nil {
		return RemoteObject{}, err
	}
	return c.Head(ctx, key)
}

// List returns the objects under prefix on the given tier.
func (g *Gateway) List(ctx context.Context, t tier.Tier, prefix string) (objects []RemoteObject, err error) {
	start := g.now()
	defer func() { g.record("list", t, start, err) }()

	c, err := g.client(t)
	if err != nil {
		return nil, err
	}
	return c.List(ctx, prefix)
}

// Copy reads the object at srcKey on srcTier and writes it to dstKey on
// dstTier. The source is left in place.
func (g *Gateway) Copy(ctx context.Context, srcTier tier.Tier, srcKey string, dstTier tier.Tier, dstKey string) (err error) {
	start := g.now()
	defer func() { g.record("copy", srcTier, start, err) }()

	src, err := g.client(srcTier)
	if err != nil {
		return err
	}
	dst, err := g.client(dstTier)
	if err != nil {
		return err
	}

	data, err := src.Get(ctx, srcKey)
	if err != nil {
		return fmt.Errorf("copy %s/%s: %w", srcTier, srcKey, err)
	}
	if err = dst.Put(ctx, dstKey, data); err != nil {
		return fmt.Errorf("copy to %s/%s: %w", dstTier, dstKey, err)
	}
	return nil
}

// Move copies the object to its destination and then deletes the source.
// Moving an object onto itself is a no-op.
func (g *Gateway) Move(ctx context.Context, srcTier tier.Tier, srcKey string, dstTier tier.Tier, dstKey string) error {
	if srcTier == dstTier && srcKey == dstKey {
		return nil
	}

	if err := g.Copy(ctx, srcTier, srcKey, dstTier, dstKey); err != nil {
		return err
	}
	if err := g.Delete(ctx, srcTier, srcKey); err != nil {
		return fmt.Errorf("move: source left behind: %w", err)
	}

	log.Debug().
		Str("from", string(srcTier)+"/"+srcKey).
		Str("to", string(dstTier)+"/"+dstKey).
		Msg("Moved object")
	return nil
}

// PresignedURL returns a time-limited signed GET URL for key on the given
// tier, valid for expires from now.
func (g *Gateway) PresignedURL(t tier.Tier, key string, expires time.Duration) (string, error) {
	c, err := g.client(t)
	if err != nil {
		return "", err
	}
	return c.PresignGet(key, expires, g.now())
}

// PublicURL returns the unsigned URL for key on the given tier.
func (g *Gateway) PublicURL(t tier.Tier, key string) (string, error) {
	c, err := g.client(t)
	if err != nil {
		return "", err
	}
	return c.PublicURL(key), nil
}
