package linkcodec

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	// KeyLen is the length in bytes of the envelope decryption key carried
	// in a payment link's fragment.
	KeyLen = 32
)

var (
	// ErrMissingLinkID is returned when a payment URL has no link
	// identifier in its path.
	ErrMissingLinkID = errors.New("payment url missing link id")

	// ErrMissingFragmentKey is returned when a payment URL carries no key
	// material in its fragment.
	ErrMissingFragmentKey = errors.New("payment url missing fragment key")

	// ErrInvalidFragmentKey is returned when the fragment does not decode
	// to exactly KeyLen bytes.
	ErrInvalidFragmentKey = errors.New("payment url fragment is not a " +
		"valid key")
)

// PaymentURL is the parsed form of a payment link. The link id travels in
// the URL path and is visible to the server hosting the link, while the
// decryption key travels only in the fragment, which browsers never send
// over the network. That split is the load-bearing security property of the
// whole scheme.
type PaymentURL struct {
	// LinkID identifies the encrypted link record held server-side.
	LinkID string

	// Key is the raw 32-byte envelope decryption key from the fragment.
	Key [KeyLen]byte
}

// BuildPaymentURL assembles the canonical payment link for the given base
// URL, link id and key.
func BuildPaymentURL(base, linkID string, key [KeyLen]byte) string {
	return fmt.Sprintf(
		"%s/%s#%s", strings.TrimRight(base, "/"), linkID,
		Encode(key[:]),
	)
}

// ParsePaymentURL extracts the link id and decryption key from a payment
// link produced by BuildPaymentURL.
func ParsePaymentURL(raw string) (*PaymentURL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("unable to parse payment url: %w", err)
	}

	linkID := strings.Trim(parsed.Path, "/")
	if idx := strings.LastIndex(linkID, "/"); idx != -1 {
		linkID = linkID[idx+1:]
	}
	if linkID == "" {
		return nil, ErrMissingLinkID
	}

	if parsed.Fragment == "" {
		return nil, ErrMissingFragmentKey
	}
	keyBytes, err := Decode(parsed.Fragment)
	if err != nil || len(keyBytes) != KeyLen {
		return nil, ErrInvalidFragmentKey
	}

	paymentURL := &PaymentURL{
		LinkID: linkID,
	}
	copy(paymentURL.Key[:], keyBytes)

	return paymentURL, nil
}
