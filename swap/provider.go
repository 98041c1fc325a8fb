package swap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lntypes"
)

const (
	// defaultRequestTimeout caps any single provider call.
	defaultRequestTimeout = 30 * time.Second
)

// HTTPProvider is a Provider implementation backed by a swap service's web
// API.
type HTTPProvider struct {
	// BaseURL is the root of the provider API.
	BaseURL string

	client http.Client
}

// NewHTTPProvider creates a provider client for the passed base URL.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL: baseURL,
		client: http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
}

// createSwapRequest is the JSON body of a swap creation call.
type createSwapRequest struct {
	AmountSats  int64  `json:"amountSats"`
	Description string `json:"description"`
	Destination string `json:"destination"`
}

// createSwapResponse is the JSON shape of a created swap.
type createSwapResponse struct {
	ID             string `json:"id"`
	Invoice        string `json:"invoice"`
	Address        string `json:"address"`
	ExpectedAmount int64  `json:"expectedAmountSats"`
}

// CreateSwap requests a new swap paying the given satoshi amount to the
// destination address.
//
// NOTE: This method is part of the Provider interface.
func (p *HTTPProvider) CreateSwap(ctx context.Context,
	amount btcutil.Amount, description,
	destination string) (*Swap, error) {

	body, err := json.Marshal(&createSwapRequest{
		AmountSats:  int64(amount),
		Description: description,
		Destination: destination,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/swaps", p.BaseURL)
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, url, bytes.NewReader(body),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to reach swap provider: %w",
			err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK &&
		resp.StatusCode != http.StatusCreated {

		return nil, fmt.Errorf("swap provider returned status %v",
			resp.StatusCode)
	}

	var createResp createSwapResponse
	if err := json.NewDecoder(resp.Body).Decode(&createResp); err != nil {
		return nil, fmt.Errorf("unable to parse provider response: "+
			"%w", err)
	}

	return &Swap{
		ID:             createResp.ID,
		Invoice:        createResp.Invoice,
		Address:        createResp.Address,
		ExpectedAmount: btcutil.Amount(createResp.ExpectedAmount),
	}, nil
}

// statusResponse is the JSON shape of a swap status report.
type statusResponse struct {
	Status         string `json:"status"`
	Preimage       string `json:"preimage,omitempty"`
	AmountReceived int64  `json:"amountReceivedSats,omitempty"`
}

// GetStatus reports the current state of a swap.
//
// NOTE: This method is part of the Provider interface.
func (p *HTTPProvider) GetStatus(ctx context.Context,
	id string) (*StatusUpdate, error) {

	url := fmt.Sprintf("%s/v1/swaps/%s", p.BaseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to reach swap provider: %w",
			err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("swap provider returned status %v",
			resp.StatusCode)
	}

	var statusResp statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&statusResp); err != nil {
		return nil, fmt.Errorf("unable to parse provider response: "+
			"%w", err)
	}

	status, err := statusFromString(statusResp.Status)
	if err != nil {
		return nil, err
	}

	update := &StatusUpdate{
		Status:         status,
		AmountReceived: btcutil.Amount(statusResp.AmountReceived),
	}
	if statusResp.Preimage != "" {
		preimage, err := lntypes.MakePreimageFromStr(
			statusResp.Preimage,
		)
		if err != nil {
			return nil, fmt.Errorf("invalid preimage in status "+
				"report: %w", err)
		}
		update.Preimage = &preimage
	}

	return update, nil
}

// Cancel asks the provider to abandon a swap.
//
// NOTE: This method is part of the Provider interface.
func (p *HTTPProvider) Cancel(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/v1/swaps/%s", p.BaseURL, id)
	req, err := http.NewRequestWithContext(
		ctx, http.MethodDelete, url, nil,
	)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("unable to reach swap provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK &&
		resp.StatusCode != http.StatusNoContent {

		return fmt.Errorf("swap provider returned status %v",
			resp.StatusCode)
	}

	return nil
}

// A compile-time assertion to ensure that HTTPProvider implements the
// Provider interface.
var _ Provider = (*HTTPProvider)(nil)
