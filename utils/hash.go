package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ContentHash returns the deterministic hash of normalized question text,
// used for deduplication and change detection.
func ContentHash(normalizedQuestion string) string {
	sum := sha256.Sum256([]byte(normalizedQuestion))
	return hex.EncodeToString(sum[:])
}

// QueryFingerprint derives the response-cache key from the normalized query,
// language, top-k and any active filters. Two raw queries that normalize
// identically share a fingerprint.
func QueryFingerprint(normalizedQuery, language string, k int, filters map[string]string) string {
	var b strings.Builder
	b.WriteString(normalizedQuery)
	b.WriteByte('|')
	b.WriteString(language)
	b.WriteByte('|')
	fmt.Fprintf(&b, "%d", k)

	if len(filters) > 0 {
		keys := make([]string, 0, len(filters))
		for key := range filters {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			b.WriteByte('|')
			b.WriteString(key)
			b.WriteByte('=')
			b.WriteString(filters[key])
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
