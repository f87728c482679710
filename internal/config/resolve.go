package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coldkeep/coldkeep/internal/tier"
)

// ErrIncomplete is returned when neither the shared storage fields nor a
// per-tier override block fully describe the requested tier.
var ErrIncomplete = errors.New("incomplete storage configuration")

// TierConfig is the resolved storage configuration for one tier. It is
// computed once at gateway construction and read-only afterwards.
type TierConfig struct {
	Endpoint      string
	Port          int
	UseSSL        bool
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicPrefix  string
	PrivatePrefix string
}

// Prefix returns the path prefix for a visibility level.
func (tc TierConfig) Prefix(v tier.Visibility) string {
	if v == tier.Public {
		return tc.PublicPrefix
	}
	return tc.PrivatePrefix
}

// Resolve produces the concrete storage configuration for a tier.
//
// A per-tier override block wins outright over the shared fields. Otherwise
// the shared endpoint, access_key, secret_key and the tier's bucket field
// must all be present. Either way port defaults to 443, SSL to on, and the
// visibility prefixes to "public"/"private". Resolution is deterministic and
// performs no I/O.
func (c *Config) Resolve(t tier.Tier) (TierConfig, error) {
	if !t.Valid() {
		return TierConfig{}, fmt.Errorf("invalid tier: %q", string(t))
	}

	var ov *TierOverride
	if t == tier.Hot {
		ov = c.Storage.Hot
	} else {
		ov = c.Storage.Cold
	}
	if ov != nil {
		return resolveOverride(t, ov)
	}

	s := c.Storage
	var missing []string
	if s.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if s.AccessKey == "" {
		missing = append(missing, "access_key")
	}
	if s.SecretKey == "" {
		missing = append(missing, "secret_key")
	}
	bucketField := "hot_bucket"
	bucket := s.HotBucket
	if t == tier.Cold {
		bucketField = "cold_bucket"
		bucket = s.ColdBucket
	}
	if bucket == "" {
		missing = append(missing, bucketField)
	}
	if len(missing) > 0 {
		return TierConfig{}, fmt.Errorf(
			"%w for %s tier: missing %s (set the shared storage fields or a storage.%s override block)",
			ErrIncomplete, t, strings.Join(missing, ", "), t)
	}

	tc := TierConfig{
		Endpoint:  s.Endpoint,
		Port:      s.Port,
		UseSSL:    true,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		Bucket:    bucket,
	}
	if tc.Port == 0 {
		tc.Port = DefaultPort
	}
	if s.UseSSL != nil {
		tc.UseSSL = *s.UseSSL
	}
	if t == tier.Hot {
		tc.PublicPrefix = s.PublicHotPrefix
		tc.PrivatePrefix = s.PrivateHotPrefix
	} else {
		tc.PublicPrefix = s.PublicColdPrefix
		tc.PrivatePrefix = s.PrivateColdPrefix
	}
	if tc.PublicPrefix == "" {
		tc.PublicPrefix = DefaultPublicPrefix
	}
	if tc.PrivatePrefix == "" {
		tc.PrivatePrefix = DefaultPrivatePrefix
	}
	return tc, nil
}

func resolveOverride(t tier.Tier, ov *TierOverride) (TierConfig, error) {
	var missing []string
	if ov.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if ov.AccessKey == "" {
		missing = append(missing, "access_key")
	}
	if ov.SecretKey == "" {
		missing = append(missing, "secret_key")
	}
	if ov.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if len(missing) > 0 {
		return TierConfig{}, fmt.Errorf("%w for %s tier: storage.%s block missing %s",
			ErrIncomplete, t, t, strings.Join(missing, ", "))
	}

	tc := TierConfig{
		Endpoint:      ov.Endpoint,
		Port:          ov.Port,
		UseSSL:        true,
		AccessKey:     ov.AccessKey,
		SecretKey:     ov.SecretKey,
		Bucket:        ov.Bucket,
		PublicPrefix:  ov.PublicPrefix,
		PrivatePrefix: ov.PrivatePrefix,
	}
	if tc.Port == 0 {
		tc.Port = DefaultPort
	}
	if ov.UseSSL != nil {
		tc.UseSSL = *ov.UseSSL
	}
	if tc.PublicPrefix == "" {
		tc.PublicPrefix = DefaultPublicPrefix
	}
	if tc.PrivatePrefix == "" {
		tc.PrivatePrefix = DefaultPrivatePrefix
	}
	return tc, nil
}
