// Package fingerprint derives short, non-reversible identifiers for secrets so they can be
// shown and compared without printing them.
package fingerprint

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// Algorithms is a list of supported hashing algorithms.
var Algorithms = []string{"md5", "sha1", "sha256", "sha512"}

// IsValidAlgo checks if the provided algorithm string is supported.
func IsValidAlgo(algo string) bool {
	for _, validAlgo := range Algorithms {
		if strings.ToLower(algo) == validAlgo {
			return true
		}
	}
	return false
}

// Of returns the hex digest of value using the specified algorithm.
func Of(value, algo string) (string, error) {
	var h hash.Hash
	switch strings.ToLower(algo) {
	case "md5":
		h = md5.New()
	case "sha1":
		h = sha1.New()
	case "sha256":
		h = sha256.New()
	case "sha512":
		h = sha512.New()
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Short returns the first 12 hex digits of the SHA-256 digest of value, or "" for "".
func Short(value string) string {
	if value == "" {
		return ""
	}
	sum, _ := Of(value, "sha256")
	return sum[:12]
}
