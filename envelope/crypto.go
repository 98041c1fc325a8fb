// Package envelope implements the symmetric envelope that carries an
// encrypted invoice payload through a payment link. The ciphertext and
// nonce are stored server-side while the key travels only in the link's URL
// fragment, so the server can never read what it stores.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/lightninglabs/paylink/linkcodec"
)

const (
	// KeySize is the required length in bytes of an envelope key. The
	// cipher is AES-256-GCM, so only 32-byte keys are acceptable.
	KeySize = 32

	// NonceSize is the required length in bytes of a GCM nonce.
	NonceSize = 12
)

// Key is an imported envelope encryption key.
type Key [KeySize]byte

// Nonce is a single-use GCM nonce.
type Nonce [NonceSize]byte

// Envelope is the encrypted form of an invoice payload as it is exchanged
// with the link storage service. Both fields are packed with the URL-safe
// codec. The key is deliberately absent: it never reaches the server.
type Envelope struct {
	// Ciphertext is the AES-256-GCM ciphertext, authentication tag
	// included.
	Ciphertext string `json:"ciphertext"`

	// Nonce is the 12-byte nonce the ciphertext was sealed with.
	Nonce string `json:"nonce"`
}

// ImportKey decodes key material from its URL-fragment form. Anything other
// than exactly 32 bytes of decoded material is rejected.
func ImportKey(encoded string) (*Key, error) {
	raw, err := linkcodec.Decode(encoded)
	if err != nil {
		return nil, ErrInvalidKeyLength
	}
	if len(raw) != KeySize {
		return nil, ErrInvalidKeyLength
	}

	var key Key
	copy(key[:], raw)

	return &key, nil
}

// NewKey generates a fresh random envelope key.
func NewKey() (*Key, error) {
	var key Key
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("unable to generate key: %w", err)
	}

	return &key, nil
}

// NewNonce generates a fresh random nonce.
func NewNonce() (Nonce, error) {
	var nonce Nonce
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, fmt.Errorf("unable to generate nonce: %w", err)
	}

	return nonce, nil
}

// Encrypt seals the passed plaintext under key and nonce with AES-256-GCM
// and returns the resulting envelope.
//
// NOTE: The nonce MUST be freshly random for every call. Reusing a nonce
// with the same key destroys the confidentiality and authenticity of every
// message sealed under that key, and is not something this function can
// detect. Use NewNonce to generate one per invocation.
func Encrypt(plaintext []byte, key *Key, nonce Nonce) (*Envelope, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	ciphertext := aead.Seal(nil, nonce[:], plaintext, nil)

	return &Envelope{
		Ciphertext: linkcodec.Encode(ciphertext),
		Nonce:      linkcodec.Encode(nonce[:]),
	}, nil
}

// Decrypt opens the passed envelope under key and returns the plaintext. A
// nonce of the wrong length is reported as ErrInvalidNonceLength. Every
// other failure mode, whether a wrong key, a corrupted ciphertext, or a
// tampered nonce, collapses into the single generic ErrDecryptionFailed so
// an attacker probing the decryption path learns nothing about which part
// of the input was rejected.
func Decrypt(env *Envelope, key *Key) ([]byte, error) {
	nonce, err := linkcodec.Decode(env.Nonce)
	if err != nil || len(nonce) != NonceSize {
		return nil, ErrInvalidNonceLength
	}

	ciphertext, err := linkcodec.Decode(env.Ciphertext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// DecryptPayload decrypts an envelope and parses the plaintext as an
// invoice payload. A JSON parse failure after a successful decryption means
// the link was produced with a different payload format rather than
// corrupted in transit, so it is reported as the distinct
// ErrMalformedPayload.
func DecryptPayload(env *Envelope, key *Key) (*InvoicePayload, error) {
	plaintext, err := Decrypt(env, key)
	if err != nil {
		return nil, err
	}

	var payload InvoicePayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, ErrMalformedPayload
	}

	if err := payload.Validate(); err != nil {
		return nil, err
	}

	return &payload, nil
}

// EncryptPayload is the inverse of DecryptPayload, sealing an invoice
// payload into an envelope under a fresh nonce.
func EncryptPayload(payload *InvoicePayload, key *Key) (*Envelope, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	nonce, err := NewNonce()
	if err != nil {
		return nil, err
	}

	return Encrypt(plaintext, key, nonce)
}

// newAEAD constructs the AES-256-GCM AEAD for the passed key.
func newAEAD(key *Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}
