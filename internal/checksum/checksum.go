// Package checksum computes content hashes used as HTTP entity tags.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag returns the strong entity tag for data.
func ETag(data []byte) string {
	return `"` + Sum(data) + `"`
}

// Match reports whether tag, as sent in If-Match or If-None-Match, names
// data. Quotes and a weak "W/" prefix are accepted; "*" matches anything.
func Match(data []byte, tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "*" {
		return true
	}
	tag = strings.TrimPrefix(tag, "W/")
	return strings.Trim(tag, `"`) == Sum(data)
}
