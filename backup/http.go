package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	// defaultRequestTimeout caps any single call to the directory or the
	// backup store.
	defaultRequestTimeout = 30 * time.Second
)

// HTTPDirectory is a Directory implementation backed by the merchant key
// directory's web API.
type HTTPDirectory struct {
	// BaseURL is the root of the directory API.
	BaseURL string

	client http.Client
}

// NewHTTPDirectory creates a directory client for the passed base URL.
func NewHTTPDirectory(baseURL string) *HTTPDirectory {
	return &HTTPDirectory{
		BaseURL: baseURL,
		client: http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
}

// merchantKeyResponse is the JSON shape of a directory key lookup.
type merchantKeyResponse struct {
	PublicKey string `json:"publicKey"`
	Revoked   bool   `json:"revoked"`
}

// MerchantKey fetches the published backup key for a merchant.
//
// NOTE: This method is part of the Directory interface.
func (d *HTTPDirectory) MerchantKey(ctx context.Context,
	merchantID string) (*MerchantKey, error) {

	url := fmt.Sprintf("%s/v1/merchants/%s/key", d.BaseURL, merchantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to query key directory: %w",
			err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:

	case http.StatusNotFound:
		return nil, ErrMerchantNotFound

	default:
		return nil, fmt.Errorf("key directory returned status %v",
			resp.StatusCode)
	}

	var keyResp merchantKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&keyResp); err != nil {
		return nil, fmt.Errorf("unable to parse directory response: "+
			"%w", err)
	}

	pubKey, err := ParsePublicKey(keyResp.PublicKey)
	if err != nil {
		// A directory answer we cannot parse still counts as a
		// fetched-but-unusable key; hand it to the caller and let
		// validation refuse it.
		log.Warnf("Directory returned unparsable key for merchant "+
			"%v: %v", merchantID, err)
		return &MerchantKey{Revoked: keyResp.Revoked}, nil
	}

	return &MerchantKey{
		PubKey:  pubKey,
		Revoked: keyResp.Revoked,
	}, nil
}

// HTTPStore is a Store implementation backed by the backup storage
// service's web API.
type HTTPStore struct {
	// BaseURL is the root of the backup store API.
	BaseURL string

	client http.Client
}

// NewHTTPStore creates a store client for the passed base URL.
func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		BaseURL: baseURL,
		client: http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
}

// createBackupRequest is the JSON body of a backup creation call.
type createBackupRequest struct {
	MerchantID string     `json:"merchantId"`
	Backup     *Encrypted `json:"backup"`
}

// createBackupResponse is the JSON shape of a successful creation.
type createBackupResponse struct {
	BackupID   string `json:"backupId"`
	WriteToken string `json:"writeToken"`
}

// CreateBackup uploads a new encrypted backup.
//
// NOTE: This method is part of the Store interface.
func (s *HTTPStore) CreateBackup(ctx context.Context, merchantID string,
	enc *Encrypted) (*Handle, error) {

	body, err := json.Marshal(&createBackupRequest{
		MerchantID: merchantID,
		Backup:     enc,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/backups", s.BaseURL)
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, url, bytes.NewReader(body),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to reach backup store: %w",
			err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK &&
		resp.StatusCode != http.StatusCreated {

		return nil, fmt.Errorf("backup store returned status %v",
			resp.StatusCode)
	}

	var createResp createBackupResponse
	if err := json.NewDecoder(resp.Body).Decode(&createResp); err != nil {
		return nil, fmt.Errorf("unable to parse store response: %w",
			err)
	}

	return &Handle{
		BackupID:   createResp.BackupID,
		WriteToken: createResp.WriteToken,
	}, nil
}

// updateBackupRequest is the JSON body of a backup update call.
type updateBackupRequest struct {
	WriteToken string     `json:"writeToken"`
	Status     Status     `json:"status"`
	Backup     *Encrypted `json:"backup,omitempty"`
}

// UpdateBackup replaces the status and ciphertext of an existing backup.
//
// NOTE: This method is part of the Store interface.
func (s *HTTPStore) UpdateBackup(ctx context.Context, handle *Handle,
	status Status, enc *Encrypted) error {

	body, err := json.Marshal(&updateBackupRequest{
		WriteToken: handle.WriteToken,
		Status:     status,
		Backup:     enc,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/backups/%s", s.BaseURL, handle.BackupID)
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPut, url, bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("unable to reach backup store: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil

	case http.StatusForbidden:
		return ErrWriteTokenMismatch

	case http.StatusNotFound:
		return ErrBackupNotFound

	default:
		return fmt.Errorf("backup store returned status %v",
			resp.StatusCode)
	}
}

// Compile-time checks that the web clients satisfy their interfaces.
var _ Directory = (*HTTPDirectory)(nil)
var _ Store = (*HTTPStore)(nil)
