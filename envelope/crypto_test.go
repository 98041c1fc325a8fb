package envelope

import (
	"crypto/rand"
	"testing"

	"github.com/lightninglabs/paylink/linkcodec"
	"github.com/stretchr/testify/require"
)

// randomKey generates a fresh key for testing.
func randomKey(t *testing.T) *Key {
	t.Helper()

	key, err := NewKey()
	require.NoError(t, err)

	return key
}

// TestImportKey asserts the strict 32-byte requirement on imported key
// material.
func TestImportKey(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		keyLen  int
		wantErr bool
	}{
		{
			name:   "exact size",
			keyLen: KeySize,
		},
		{
			name:    "too short",
			keyLen:  16,
			wantErr: true,
		},
		{
			name:    "too long",
			keyLen:  64,
			wantErr: true,
		},
		{
			name:    "empty",
			keyLen:  0,
			wantErr: true,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			raw := make([]byte, testCase.keyLen)
			_, err := rand.Read(raw)
			require.NoError(t, err)

			key, err := ImportKey(linkcodec.Encode(raw))
			if testCase.wantErr {
				require.ErrorIs(t, err, ErrInvalidKeyLength)
				return
			}

			require.NoError(t, err)
			require.Equal(t, raw, key[:])
		})
	}

	// Garbage that fails to decode at all is rejected the same way.
	_, err := ImportKey("!!!!")
	require.ErrorIs(t, err, ErrInvalidKeyLength)
}

// TestEncryptDecryptRoundTrip asserts that plaintext of various sizes
// survives the seal/open cycle under matching key and nonce.
func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	key := randomKey(t)

	for _, size := range []int{0, 1, 15, 16, 17, 1000} {
		plaintext := make([]byte, size)
		_, err := rand.Read(plaintext)
		require.NoError(t, err)

		nonce, err := NewNonce()
		require.NoError(t, err)

		env, err := Encrypt(plaintext, key, nonce)
		require.NoError(t, err)

		decrypted, err := Decrypt(env, key)
		require.NoError(t, err)

		// Opening an empty plaintext yields a nil slice, which is
		// equivalent for our purposes.
		if size == 0 {
			require.Empty(t, decrypted)
		} else {
			require.Equal(t, plaintext, decrypted)
		}
	}
}

// TestDecryptWrongKey asserts that decrypting under any key other than the
// sealing key fails with the generic decryption error.
func TestDecryptWrongKey(t *testing.T) {
	t.Parallel()

	key := randomKey(t)
	nonce, err := NewNonce()
	require.NoError(t, err)

	env, err := Encrypt([]byte("attack at dawn"), key, nonce)
	require.NoError(t, err)

	_, err = Decrypt(env, randomKey(t))
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

// TestDecryptTamperedCiphertext flips every bit of the ciphertext in turn
// and asserts that each mutation is rejected with the generic decryption
// error.
func TestDecryptTamperedCiphertext(t *testing.T) {
	t.Parallel()

	key := randomKey(t)
	nonce, err := NewNonce()
	require.NoError(t, err)

	env, err := Encrypt([]byte("payload"), key, nonce)
	require.NoError(t, err)

	ciphertext, err := linkcodec.Decode(env.Ciphertext)
	require.NoError(t, err)

	for i := 0; i < len(ciphertext)*8; i++ {
		tampered := make([]byte, len(ciphertext))
		copy(tampered, ciphertext)
		tampered[i/8] ^= 1 << (i % 8)

		tamperedEnv := &Envelope{
			Ciphertext: linkcodec.Encode(tampered),
			Nonce:      env.Nonce,
		}
		_, err := Decrypt(tamperedEnv, key)
		require.ErrorIs(t, err, ErrDecryptionFailed)
	}
}

// TestDecryptBadNonce asserts the distinct structural error for nonces of
// the wrong length, and the generic error for a valid-length but wrong
// nonce.
func TestDecryptBadNonce(t *testing.T) {
	t.Parallel()

	key := randomKey(t)
	nonce, err := NewNonce()
	require.NoError(t, err)

	env, err := Encrypt([]byte("payload"), key, nonce)
	require.NoError(t, err)

	// Wrong length is a structural problem, reported specifically.
	shortNonce := &Envelope{
		Ciphertext: env.Ciphertext,
		Nonce:      linkcodec.Encode(make([]byte, 8)),
	}
	_, err = Decrypt(shortNonce, key)
	require.ErrorIs(t, err, ErrInvalidNonceLength)

	// A valid-length but different nonce is indistinguishable from any
	// other authentication failure.
	otherNonce, err := NewNonce()
	require.NoError(t, err)
	wrongNonce := &Envelope{
		Ciphertext: env.Ciphertext,
		Nonce:      linkcodec.Encode(otherNonce[:]),
	}
	_, err = Decrypt(wrongNonce, key)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

// TestPayloadRoundTrip asserts the end to end payload path: a full invoice
// payload sealed under a random key round-trips exactly, and one-bit
// corruption of the ciphertext is always rejected.
func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	payload := &InvoicePayload{
		Amount:   12.50,
		Currency: "USD",
		LineItems: []LineItem{
			{
				Description: "Flat white",
				Quantity:    2,
				Price:       6.25,
			},
		},
		InvoiceNumber: "INV-0042",
		Memo:          "table 7",
		MerchantName:  "Bean There",
	}

	key := randomKey(t)
	env, err := EncryptPayload(payload, key)
	require.NoError(t, err)

	decrypted, err := DecryptPayload(env, key)
	require.NoError(t, err)
	require.Equal(t, payload, decrypted)

	// Any single-bit flip in the ciphertext must be fatal.
	ciphertext, err := linkcodec.Decode(env.Ciphertext)
	require.NoError(t, err)
	ciphertext[0] ^= 0x01

	corrupted := &Envelope{
		Ciphertext: linkcodec.Encode(ciphertext),
		Nonce:      env.Nonce,
	}
	_, err = DecryptPayload(corrupted, key)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

// TestDecryptPayloadNotJSON asserts that a clean decryption of non-JSON
// plaintext surfaces the distinct malformed payload error, so callers can
// tell format drift from transport corruption.
func TestDecryptPayloadNotJSON(t *testing.T) {
	t.Parallel()

	key := randomKey(t)
	nonce, err := NewNonce()
	require.NoError(t, err)

	env, err := Encrypt([]byte("plain text, not json"), key, nonce)
	require.NoError(t, err)

	_, err = DecryptPayload(env, key)
	require.ErrorIs(t, err, ErrMalformedPayload)
}

// TestPayloadValidate covers the structural validation rules.
func TestPayloadValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		payload InvoicePayload
		valid   bool
	}{
		{
			name: "minimal valid",
			payload: InvoicePayload{
				Amount:   0.01,
				Currency: "USD",
			},
			valid: true,
		},
		{
			name: "zero amount",
			payload: InvoicePayload{
				Amount:   0,
				Currency: "USD",
			},
		},
		{
			name: "negative amount",
			payload: InvoicePayload{
				Amount:   -5,
				Currency: "USD",
			},
		},
		{
			name: "bad currency",
			payload: InvoicePayload{
				Amount:   1,
				Currency: "DOLLARS",
			},
		},
		{
			name: "line item without description",
			payload: InvoicePayload{
				Amount:   1,
				Currency: "USD",
				LineItems: []LineItem{
					{Price: 1},
				},
			},
		},
		{
			name: "negative line item price",
			payload: InvoicePayload{
				Amount:   1,
				Currency: "USD",
				LineItems: []LineItem{
					{Description: "x", Price: -1},
				},
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := testCase.payload.Validate()
			if testCase.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

// TestLineItemAmountAlias asserts that the legacy "amount" field name is
// accepted for a line item's price.
func TestLineItemAmountAlias(t *testing.T) {
	t.Parallel()

	var item LineItem
	err := item.UnmarshalJSON([]byte(`{"description":"x","amount":3.5}`))
	require.NoError(t, err)
	require.Equal(t, 3.5, item.Price)

	// "price" wins when both are present.
	err = item.UnmarshalJSON(
		[]byte(`{"description":"x","price":2,"amount":3.5}`),
	)
	require.NoError(t, err)
	require.Equal(t, float64(2), item.Price)
}
