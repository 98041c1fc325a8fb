package linkcodec

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEncodeDecodeRoundTrip asserts that arbitrary byte sequences survive a
// round trip through the URL-safe codec, including the empty sequence and
// lengths that exercise every padding case.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	for size := 0; size < 100; size++ {
		data := make([]byte, size)
		_, err := rand.Read(data)
		require.NoError(t, err)

		encoded := Encode(data)

		// The encoding must be URL-safe: no characters that require
		// escaping in any URL component.
		require.NotContains(t, encoded, "+")
		require.NotContains(t, encoded, "/")
		require.NotContains(t, encoded, "=")

		decoded, err := Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, data, decoded)
	}
}

// TestDecodeInvalid asserts that garbage input produces an error rather than
// silently decoding.
func TestDecodeInvalid(t *testing.T) {
	t.Parallel()

	_, err := Decode("not!valid!base64!")
	require.Error(t, err)
}

// TestEncodeSubstitution asserts the alphabet substitution against a value
// whose standard encoding contains both special characters.
func TestEncodeSubstitution(t *testing.T) {
	t.Parallel()

	// 0xfb, 0xff encodes to "+/8=" in the standard alphabet.
	encoded := Encode([]byte{0xfb, 0xff})
	require.Equal(t, "-_8", encoded)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, []byte{0xfb, 0xff}, decoded)
}

// TestConfigRoundTrip asserts that valid configs survive the encode/decode
// cycle exactly, for every combination of the optional booleans.
func TestConfigRoundTrip(t *testing.T) {
	t.Parallel()

	for _, gear := range []bool{false, true} {
		for _, desc := range []bool{false, true} {
			cfg := LinkConfig{
				Descriptor:           "Coffee order #42",
				CurrencyCode:         "USD",
				ShowSettingsGear:     gear,
				ShowDescriptionField: desc,
			}

			encoded, err := EncodeConfig(cfg)
			require.NoError(t, err)

			decoded := DecodeConfig(encoded)
			require.NotNil(t, decoded)
			require.Equal(t, cfg, *decoded)
		}
	}
}

// TestConfigDefaultsOmitted asserts that default-valued booleans are kept
// out of the encoded JSON to minimize URL length.
func TestConfigDefaultsOmitted(t *testing.T) {
	t.Parallel()

	encoded, err := EncodeConfig(LinkConfig{
		Descriptor:           "D",
		CurrencyCode:         "EUR",
		ShowDescriptionField: true,
	})
	require.NoError(t, err)

	raw, err := Decode(encoded)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "showSettingsGear")
	require.NotContains(t, string(raw), "showDescriptionField")
}

// TestDecodeConfigMalformed asserts that every flavor of malformed input
// yields a nil config instead of an error or panic.
func TestDecodeConfigMalformed(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		encoded string
	}{
		{
			name:    "empty input",
			encoded: "",
		},
		{
			name:    "invalid base64",
			encoded: "!!!!",
		},
		{
			name:    "not json",
			encoded: Encode([]byte("definitely not json")),
		},
		{
			name:    "missing descriptor",
			encoded: Encode([]byte(`{"currencyCode":"USD"}`)),
		},
		{
			name:    "missing currency",
			encoded: Encode([]byte(`{"descriptor":"D"}`)),
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			require.Nil(t, DecodeConfig(testCase.encoded))
		})
	}
}

// TestDecodeConfigDefaults asserts the documented defaults are applied when
// the optional fields are absent.
func TestDecodeConfigDefaults(t *testing.T) {
	t.Parallel()

	encoded := Encode(
		[]byte(`{"descriptor":"Store","currencyCode":"USD"}`),
	)
	cfg := DecodeConfig(encoded)
	require.NotNil(t, cfg)

	require.Equal(t, "Store", cfg.Descriptor)
	require.Equal(t, "USD", cfg.CurrencyCode)
	require.False(t, cfg.ShowSettingsGear)
	require.True(t, cfg.ShowDescriptionField)
}

// TestPaymentURLRoundTrip asserts the payment link shape: link id in the
// path, key in the fragment.
func TestPaymentURLRoundTrip(t *testing.T) {
	t.Parallel()

	var key [KeyLen]byte
	_, err := rand.Read(key[:])
	require.NoError(t, err)

	raw := BuildPaymentURL("https://pay.example.com", "lnk123", key)
	require.True(t, strings.Contains(raw, "/lnk123#"))

	parsed, err := ParsePaymentURL(raw)
	require.NoError(t, err)
	require.Equal(t, "lnk123", parsed.LinkID)
	require.Equal(t, key, parsed.Key)
}

// TestParsePaymentURLInvalid covers the rejection cases for malformed
// payment links.
func TestParsePaymentURLInvalid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		raw  string
		err  error
	}{
		{
			name: "no link id",
			raw:  "https://pay.example.com/#" + Encode(make([]byte, 32)),
			err:  ErrMissingLinkID,
		},
		{
			name: "no fragment",
			raw:  "https://pay.example.com/lnk123",
			err:  ErrMissingFragmentKey,
		},
		{
			name: "short key",
			raw:  "https://pay.example.com/lnk123#" + Encode(make([]byte, 16)),
			err:  ErrInvalidFragmentKey,
		},
		{
			name: "garbage key",
			raw:  "https://pay.example.com/lnk123#!!!!",
			err:  ErrInvalidFragmentKey,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := ParsePaymentURL(testCase.raw)
			require.ErrorIs(t, err, testCase.err)
		})
	}
}
