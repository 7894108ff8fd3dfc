package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// textPrefixLen bounds how much normalized text participates in the digest.
// Trailing edits (appended links, signatures) must not change identity.
const textPrefixLen = 200

// Fingerprint derives the deduplication identity of an inbound item from its
// source locator, a day-granularity bucket of the post timestamp, and a
// prefix of the normalized text. It is pure and deterministic: identical
// (source, day, text) triples always collide, and any difference in them
// changes the digest with overwhelming probability.
//
// The result doubles as the conflict key for the storage upsert, which is
// what guarantees at-most-one stored event per fingerprint under concurrent
// ingestion.
func Fingerprint(sourceURL, text string, postedAt *time.Time) string {
	normalized := normalizeForDigest(text)
	if len(normalized) > textPrefixLen {
		normalized = normalized[:textPrefixLen]
	}

	dayBucket := ""
	if postedAt != nil {
		dayBucket = postedAt.UTC().Format("2006-01-02")
	}

	input := strings.ToLower(sourceURL) + "|" + dayBucket + "|" + normalized
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
