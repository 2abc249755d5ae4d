package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key generates a cache key from a URL. The key is a stable fingerprint of
// the trimmed URL and doubles as the entry's directory name on disk.
func Key(url string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(hash[:])
}
