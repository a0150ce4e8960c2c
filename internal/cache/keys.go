package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Key builds a cache key of the form "family:hash" where the hash is derived
// from the JSON encoding of params. Families group keys so a write can
// invalidate every variant with one pattern (e.g. `^projects:`).
func Key(family string, params any) string {
	return fmt.Sprintf("%s:%s", family, hashParams(params))
}

// FamilyPattern returns the regex matching every key in a family.
func FamilyPattern(family string) string {
	return "^" + family + ":"
}

// hashParams produces a short stable hash of arbitrary parameters. Marshal
// failures fall back to a time-based key so the caller gets a guaranteed
// cache miss rather than a collision.
func hashParams(params any) string {
	b, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("nohash%d", time.Now().UnixNano())
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:8]
}
