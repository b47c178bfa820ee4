package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const checksumHexLength = 64

// ChecksumPolicy defines the stable content hash used for document and
// chunk idempotency: same normalized content -> same checksum.
type ChecksumPolicy interface {
	Compute(content string) string
	Validate(checksum string) error
}

type checksumPolicy struct{}

// NewChecksumPolicy creates the default SHA-256 checksum policy.
func NewChecksumPolicy() ChecksumPolicy {
	return &checksumPolicy{}
}

// Compute returns the SHA-256 hex digest of the trimmed content.
func (p *checksumPolicy) Compute(content string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(hash[:])
}

// Validate rejects empty or malformed checksums before they reach storage.
func (p *checksumPolicy) Validate(checksum string) error {
	if checksum == "" {
		return NewValidationError("checksum", "must not be empty")
	}
	if len(checksum) != checksumHexLength {
		return NewValidationError("checksum", "must be a 64-character hex digest")
	}
	for _, r := range checksum {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return NewValidationError("checksum", "must be lowercase hex")
		}
	}
	return nil
}
