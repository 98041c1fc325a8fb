package envelope

import "errors"

var (
	// ErrInvalidKeyLength is returned when imported key material does not
	// decode to exactly KeySize bytes.
	ErrInvalidKeyLength = errors.New("envelope key must be exactly 32 " +
		"bytes")

	// ErrInvalidNonceLength is returned when an envelope's nonce does not
	// decode to exactly NonceSize bytes.
	ErrInvalidNonceLength = errors.New("envelope nonce must be exactly " +
		"12 bytes")

	// ErrDecryptionFailed is the single error returned for every
	// authentication failure during decryption. It deliberately carries
	// no detail about which input was rejected.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrMalformedPayload is returned when an envelope decrypts cleanly
	// but its plaintext is not valid payload JSON.
	ErrMalformedPayload = errors.New("decrypted payload is not valid " +
		"JSON")
)
