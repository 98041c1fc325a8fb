// Package rates provides the pricing side of invoice creation: a narrow
// client for an HTTP API that reports the median fiat exchange rate used to
// convert an invoice's fiat amount into satoshis.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// defaultRequestTimeout caps a single rate query.
	defaultRequestTimeout = 30 * time.Second
)

var (
	// ErrInvalidRate is returned when the pricing provider reports a
	// rate that is zero or negative.
	ErrInvalidRate = errors.New("pricing provider returned invalid rate")
)

// Source is the contract the swap lifecycle uses to price invoices.
type Source interface {
	// MedianRate returns the current median exchange rate for one
	// bitcoin in the passed currency.
	MedianRate(ctx context.Context, currency string) (float64, error)
}

// WebAPISource is an interface that allows the WebAPIRateSource to query an
// arbitrary HTTP-based pricing provider. Each provider gains an
// implementation of this interface so the client logic stays fully generic.
type WebAPISource interface {
	// GenQueryURL generates the full query URL for the passed currency.
	// The value returned by this method should be able to be used
	// directly as a path for an HTTP GET request.
	GenQueryURL(currency string) string

	// ParseResponse attempts to parse the body of the response generated
	// by the above query URL. Typically this will be JSON, but the
	// specifics are left to the WebAPISource implementation.
	ParseResponse(r io.Reader) (float64, error)
}

// MedianRateSource is a WebAPISource for a provider that reports the median
// of several exchanges as `{"currency": "USD", "median": 108123.45}`.
type MedianRateSource struct {
	// URL is the pricing API root specified by the user.
	URL string
}

// GenQueryURL generates the full query URL for the passed currency.
//
// NOTE: Part of the WebAPISource interface.
func (s MedianRateSource) GenQueryURL(currency string) string {
	return fmt.Sprintf("%s/v1/rates/%s/median", s.URL, currency)
}

// ParseResponse attempts to parse the body of the response generated by the
// above query URL.
//
// NOTE: Part of the WebAPISource interface.
func (s MedianRateSource) ParseResponse(r io.Reader) (float64, error) {
	type jsonResp struct {
		Median float64 `json:"median"`
	}

	var resp jsonResp
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return 0, err
	}

	return resp.Median, nil
}

// A compile-time assertion to ensure that MedianRateSource implements the
// WebAPISource interface.
var _ WebAPISource = (*MedianRateSource)(nil)

// WebAPIRateSource is a Source implementation that queries an HTTP-based
// pricing provider.
type WebAPIRateSource struct {
	apiSource WebAPISource

	client http.Client
}

// NewWebAPIRateSource creates a new rate source backed by the passed web
// API.
func NewWebAPIRateSource(api WebAPISource) *WebAPIRateSource {
	return &WebAPIRateSource{
		apiSource: api,
		client: http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
}

// MedianRate returns the current median exchange rate for one bitcoin in
// the passed currency. Rates that are not strictly positive are rejected,
// since a zero or negative rate can only produce a nonsensical invoice.
//
// NOTE: This method is part of the Source interface.
func (w *WebAPIRateSource) MedianRate(ctx context.Context,
	currency string) (float64, error) {

	url := w.apiSource.GenQueryURL(currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("unable to query pricing provider: %w",
			err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("pricing provider returned status %v",
			resp.StatusCode)
	}

	rate, err := w.apiSource.ParseResponse(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("unable to parse rate response: %w", err)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}

	return rate, nil
}

// A compile-time assertion to ensure that WebAPIRateSource implements the
// Source interface.
var _ Source = (*WebAPIRateSource)(nil)
