package backup

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightninglabs/paylink/linkcodec"
	"golang.org/x/crypto/chacha20poly1305"
)

// MerchantKey is a merchant's published backup key together with its
// directory state.
type MerchantKey struct {
	// PubKey is the merchant's secp256k1 backup key.
	PubKey *btcec.PublicKey

	// Revoked is set when the directory has marked the key unusable. A
	// revoked key must never be encrypted to.
	Revoked bool
}

// ParsePublicKey decodes an armored merchant public key: the URL-safe
// encoding of a 33-byte compressed secp256k1 point.
func ParsePublicKey(armored string) (*btcec.PublicKey, error) {
	raw, err := linkcodec.Decode(armored)
	if err != nil {
		return nil, fmt.Errorf("unable to decode merchant key: %w",
			err)
	}

	pubKey, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("unable to parse merchant key: %w",
			err)
	}

	return pubKey, nil
}

// ValidatePublicKey reports whether the passed directory entry holds a
// usable encryption key. Malformed or absent input yields false rather
// than an error, since a key we cannot parse is exactly as unusable as a
// revoked one.
func ValidatePublicKey(key *MerchantKey) bool {
	if key == nil || key.PubKey == nil {
		return false
	}
	if key.Revoked {
		return false
	}

	return true
}

// EncryptBackup serializes the passed record and encrypts it so that only
// the holder of the merchant key's private half can read it. The scheme is
// ECIES: a throwaway secp256k1 key is generated per backup, the ECDH shared
// point with the merchant key is hashed into a symmetric key, and the
// payload is sealed with chacha20poly1305 under a random nonce that is
// prepended to the ciphertext and doubles as its associated data. The
// armored output is ephemeralPubKey || nonce || ciphertext.
func EncryptBackup(rec *Record, merchantPub *btcec.PublicKey,
	now time.Time) (*Encrypted, error) {

	if merchantPub == nil {
		return nil, fmt.Errorf("no merchant key to encrypt to")
	}

	plaintext, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("unable to serialize record: %w", err)
	}

	// Generate the throwaway key half of the ECDH exchange. Its private
	// key goes out of scope right after the shared secret is derived.
	ephemeralKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("unable to generate ephemeral key: %w",
			err)
	}

	sharedSecret := deriveSharedKey(ephemeralKey, merchantPub)

	cipher, err := chacha20poly1305.NewX(sharedSecret[:])
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}

	ciphertext := cipher.Seal(nil, nonce[:], plaintext, nonce[:])

	var packed []byte
	packed = append(
		packed, ephemeralKey.PubKey().SerializeCompressed()...,
	)
	packed = append(packed, nonce[:]...)
	packed = append(packed, ciphertext...)

	return &Encrypted{
		EncryptedData: linkcodec.Encode(packed),
		SwapID:        rec.SwapID,
		Timestamp:     now.UTC().Format(time.RFC3339),
		FormatVersion: FormatVersion,
	}, nil
}

// deriveSharedKey computes the symmetric key for an ECIES exchange as the
// SHA-256 of the compressed ECDH shared point.
func deriveSharedKey(priv *btcec.PrivateKey,
	pub *btcec.PublicKey) [sha256.Size]byte {

	var (
		point  btcec.JacobianPoint
		shared btcec.JacobianPoint
	)
	pub.AsJacobian(&point)
	btcec.ScalarMultNonConst(&priv.Key, &point, &shared)
	shared.ToAffine()

	sharedPub := btcec.NewPublicKey(&shared.X, &shared.Y)

	return sha256.Sum256(sharedPub.SerializeCompressed())
}
