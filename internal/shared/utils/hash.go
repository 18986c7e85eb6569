package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// ArchiveDigest computes the SHA-256 digest of an extension package,
// logged on install so operators can verify what was deployed.
func ArchiveDigest(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ShortDigest returns the first 12 hex characters of a digest for
// display.
func ShortDigest(digest string) string {
	if len(digest) < 12 {
		return digest
	}
	return digest[:12]
}
