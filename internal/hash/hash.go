// Package hash provides the two hashing schemes used by the capture
// pipeline. They serve different purposes and must not be conflated:
// Content is the collision-resistant storage deduplication key, PageKey is
// a cheap per-page display identity with no collision guarantees.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/picvault/picvault/internal/domain"
	"github.com/picvault/picvault/internal/urlutil"
)

// Content computes the SHA-256 hex digest of raw image bytes. This digest
// is the sole deduplication key across the whole corpus.
func Content(b []byte) (string, error) {
	if len(b) == 0 {
		return "", domain.ErrInvalidInput
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// PageKey derives a short per-page identity for an image from the page URL
// and image URL, both normalized first. It uses a 32-bit rolling hash
// rendered in base36 and is NOT collision resistant; it must never be used
// for storage dedup.
func PageKey(pageURL, imageURL string) string {
	combined := urlutil.Normalize(pageURL) + "|" + urlutil.Normalize(imageURL)

	var h int32
	for _, c := range combined {
		h = h<<5 - h + int32(c)
	}
	if h < 0 {
		h = -h
	}
	return strconv.FormatInt(int64(h), 36)
}
