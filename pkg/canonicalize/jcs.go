// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// serialization and the SHA-256 fingerprints cwgen uses to identify schema
// documents and detect conflicting definitions.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// FingerprintPrefix is prepended to every hex digest returned by this package.
const FingerprintPrefix = "sha256:"

// JCS returns the RFC 8785 canonical JSON representation of v.
// Struct values are marshaled with their json tags first, then transformed:
// object keys are sorted by UTF-16 code units, numbers use the ES6 form and
// HTML characters are not escaped.
func JCS(v any) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jcs: pre-marshal failed: %w", err)
	}
	return Raw(intermediate)
}

// Raw canonicalizes an already-encoded JSON document.
func Raw(data []byte) ([]byte, error) {
	out, err := jcs.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("jcs: transform failed: %w", err)
	}
	return out, nil
}

// Fingerprint returns the prefixed SHA-256 digest of the canonical form of a
// raw JSON document. Documents that differ only in key order or whitespace
// share a fingerprint.
func Fingerprint(data []byte) (string, error) {
	canonical, err := Raw(data)
	if err != nil {
		return "", err
	}
	return FingerprintPrefix + HashBytes(canonical), nil
}

// CanonicalHash returns the prefixed SHA-256 digest of the canonical JSON
// representation of v.
func CanonicalHash(v any) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return FingerprintPrefix + HashBytes(b), nil
}

// HashBytes computes the SHA-256 hash of raw bytes and returns it as hex.
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Short returns the first 12 hex characters of a fingerprint, for headers
// and log lines.
func Short(fingerprint string) string {
	h := fingerprint
	if len(h) > len(FingerprintPrefix) && h[:len(FingerprintPrefix)] == FingerprintPrefix {
		h = h[len(FingerprintPrefix):]
	}
	if len(h) > 12 {
		h = h[:12]
	}
	return h
}
