package backup

import (
	"crypto/sha256"
	"encoding/json"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightninglabs/paylink/linkcodec"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
)

var testTime = time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)

// testRecord returns a fully populated recovery record.
func testRecord() *Record {
	return NewRecord(
		"swap-123", "abandon ability able about above absent",
		"lnbc2500n1...", 250_000, testTime,
		&RecordMetadata{
			FiatAmount:  25.00,
			Currency:    "USD",
			Description: "order 42",
		},
	)
}

// decryptBackup is the merchant-side inverse of EncryptBackup, implemented
// here only to verify the ciphertext; the shipped code deliberately has no
// decryption path.
func decryptBackup(t *testing.T, enc *Encrypted,
	merchantPriv *btcec.PrivateKey) *Record {

	t.Helper()

	packed, err := linkcodec.Decode(enc.EncryptedData)
	require.NoError(t, err)
	require.Greater(t, len(packed), 33+chacha20poly1305.NonceSizeX)

	ephemeralPub, err := btcec.ParsePubKey(packed[:33])
	require.NoError(t, err)

	sharedSecret := deriveSharedKey(merchantPriv, ephemeralPub)
	cipher, err := chacha20poly1305.NewX(sharedSecret[:])
	require.NoError(t, err)

	nonce := packed[33 : 33+chacha20poly1305.NonceSizeX]
	ciphertext := packed[33+chacha20poly1305.NonceSizeX:]

	plaintext, err := cipher.Open(nil, nonce, ciphertext, nonce)
	require.NoError(t, err)

	var rec Record
	require.NoError(t, json.Unmarshal(plaintext, &rec))

	return &rec
}

// TestEncryptBackupRoundTrip asserts that only the merchant's private key
// recovers the record, and that the wrapper fields are populated.
func TestEncryptBackupRoundTrip(t *testing.T) {
	t.Parallel()

	merchantPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	rec := testRecord()
	enc, err := EncryptBackup(rec, merchantPriv.PubKey(), testTime)
	require.NoError(t, err)

	require.Equal(t, rec.SwapID, enc.SwapID)
	require.Equal(t, FormatVersion, enc.FormatVersion)
	require.Equal(t, testTime.Format(time.RFC3339), enc.Timestamp)

	decrypted := decryptBackup(t, enc, merchantPriv)
	require.Equal(t, rec, decrypted)

	// A different private key must not be able to open the backup.
	otherPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	packed, err := linkcodec.Decode(enc.EncryptedData)
	require.NoError(t, err)

	ephemeralPub, err := btcec.ParsePubKey(packed[:33])
	require.NoError(t, err)

	wrongSecret := deriveSharedKey(otherPriv, ephemeralPub)
	cipher, err := chacha20poly1305.NewX(wrongSecret[:])
	require.NoError(t, err)

	nonce := packed[33 : 33+chacha20poly1305.NonceSizeX]
	ciphertext := packed[33+chacha20poly1305.NonceSizeX:]
	_, err = cipher.Open(nil, nonce, ciphertext, nonce)
	require.Error(t, err)
}

// TestEncryptBackupFreshEphemeralKey asserts that two encryptions of the
// same record never share an ephemeral key or ciphertext.
func TestEncryptBackupFreshEphemeralKey(t *testing.T) {
	t.Parallel()

	merchantPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	rec := testRecord()
	enc1, err := EncryptBackup(rec, merchantPriv.PubKey(), testTime)
	require.NoError(t, err)
	enc2, err := EncryptBackup(rec, merchantPriv.PubKey(), testTime)
	require.NoError(t, err)

	require.NotEqual(t, enc1.EncryptedData, enc2.EncryptedData)
}

// TestSetSettled asserts that settling a record captures the preimage and
// the received amount.
func TestSetSettled(t *testing.T) {
	t.Parallel()

	var preimage lntypes.Preimage
	copy(preimage[:], []byte("0123456789abcdef0123456789abcdef"))

	rec := testRecord()
	rec.SetSettled(preimage, btcutil.Amount(251_000))

	require.Equal(t, preimage.String(), rec.Preimage)
	require.Equal(t, btcutil.Amount(251_000), rec.AmountReceived)
}

// TestParsePublicKey asserts armor parsing of merchant keys.
func TestParsePublicKey(t *testing.T) {
	t.Parallel()

	merchantPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	armored := linkcodec.Encode(
		merchantPriv.PubKey().SerializeCompressed(),
	)
	parsed, err := ParsePublicKey(armored)
	require.NoError(t, err)
	require.True(t, parsed.IsEqual(merchantPriv.PubKey()))

	// Garbage armor and non-curve points are both rejected.
	_, err = ParsePublicKey("!!!!")
	require.Error(t, err)

	bogus := sha256.Sum256([]byte("not a point"))
	_, err = ParsePublicKey(linkcodec.Encode(bogus[:]))
	require.Error(t, err)
}

// TestValidatePublicKey covers the usable/unusable key cases.
func TestValidatePublicKey(t *testing.T) {
	t.Parallel()

	merchantPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	require.True(t, ValidatePublicKey(&MerchantKey{
		PubKey: merchantPriv.PubKey(),
	}))
	require.False(t, ValidatePublicKey(&MerchantKey{
		PubKey:  merchantPriv.PubKey(),
		Revoked: true,
	}))
	require.False(t, ValidatePublicKey(&MerchantKey{}))
	require.False(t, ValidatePublicKey(nil))
}
