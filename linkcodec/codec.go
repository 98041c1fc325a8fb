// Package linkcodec implements the compact encoding used to pack payment
// link configuration and key material into URLs. The encoding is standard
// base64 with the URL-safe alphabet and all padding stripped, which keeps
// links as short as possible while remaining safe to place in any URL
// component.
package linkcodec

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Encode encodes the passed bytes using the URL-safe base64 alphabet with
// all trailing padding characters stripped.
func Encode(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)

	encoded = strings.ReplaceAll(encoded, "+", "-")
	encoded = strings.ReplaceAll(encoded, "/", "_")

	return strings.TrimRight(encoded, "=")
}

// Decode reverses Encode, accepting an unpadded URL-safe base64 string and
// returning the raw bytes it encodes.
func Decode(encoded string) ([]byte, error) {
	decoded := strings.ReplaceAll(encoded, "-", "+")
	decoded = strings.ReplaceAll(decoded, "_", "/")

	// Re-pad to a multiple of four so the standard decoder accepts it.
	if rem := len(decoded) % 4; rem != 0 {
		decoded += strings.Repeat("=", 4-rem)
	}

	data, err := base64.StdEncoding.DecodeString(decoded)
	if err != nil {
		return nil, fmt.Errorf("unable to decode base64url: %w", err)
	}

	return data, nil
}
