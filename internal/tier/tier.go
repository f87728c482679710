// Package tier defines the storage tier and visibility classifications
// shared by every layer of coldkeep.
package tier

import (
	"fmt"
	"strings"
)

// Tier identifies which storage class holds an object's bytes.
type Tier string

const (
	// Hot storage serves reads immediately and is priced for access.
	Hot Tier = "hot"
	// Cold storage is archival: cheap to hold, slow or costly to read.
	Cold Tier = "cold"
)

// Visibility controls how an object's URL is produced.
type Visibility string

const (
	// Public objects are addressable by a plain, unauthenticated URL.
	Public Visibility = "public"
	// Private objects require a time-limited signed URL.
	Private Visibility = "private"
)

// ParseTier converts a string to a Tier. Matching is case-insensitive;
// anything other than "hot" or "cold" is rejected.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hot":
		return Hot, nil
	case "cold":
		return Cold, nil
	default:
		return "", fmt.Errorf("invalid tier: %q", s)
	}
}

// ParseVisibility converts a string to a Visibility. Matching is
// case-insensitive; anything other than "public" or "private" is rejected.
func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return Public, nil
	case "private":
		return Private, nil
	default:
		return "", fmt.Errorf("invalid visibility: %q", s)
	}
}

// Valid reports whether t is one of the defined tiers. The zero value is
// not valid.
func (t Tier) Valid() bool {
	return t == Hot || t == Cold
}

// Valid reports whether v is one of the defined visibility levels. The zero
// value is not valid.
func (v Visibility) Valid() bool {
	return v == Public || v == Private
}
