package backup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// DefaultRetryBaseDelay is the delay before the first retry of a
	// failed store call; each further retry doubles it.
	DefaultRetryBaseDelay = time.Second

	// DefaultMaxRetries is the number of additional attempts made after
	// the initial one fails.
	DefaultMaxRetries = 3
)

// Directory is the narrow contract of the merchant key directory service.
type Directory interface {
	// MerchantKey fetches the published backup key for a merchant,
	// returning ErrMerchantNotFound for an unknown id.
	MerchantKey(ctx context.Context, merchantID string) (*MerchantKey,
		error)
}

// Store is the narrow contract of the backup storage service.
type Store interface {
	// CreateBackup uploads a new encrypted backup and returns the handle
	// that authorizes later updates to it.
	CreateBackup(ctx context.Context, merchantID string,
		enc *Encrypted) (*Handle, error)

	// UpdateBackup replaces the status, and optionally the ciphertext,
	// of an existing backup.
	UpdateBackup(ctx context.Context, handle *Handle, status Status,
		enc *Encrypted) error
}

// UploaderConfig bundles the dependencies of an Uploader.
type UploaderConfig struct {
	// Directory resolves merchant ids to published keys.
	Directory Directory

	// Store holds the encrypted backups.
	Store Store

	// Clock is the time source used for backup timestamps and retry
	// delays.
	Clock clock.Clock

	// RetryBaseDelay overrides DefaultRetryBaseDelay when non-zero.
	RetryBaseDelay time.Duration

	// MaxRetries overrides DefaultMaxRetries when non-zero.
	MaxRetries int
}

// Uploader runs the backup protocol for swaps: one strictly sequential
// upload before the invoice is shown, and one best-effort update after
// settlement. A single Uploader may serve many swaps concurrently, but it
// never runs two store calls for the same backup at once.
type Uploader struct {
	cfg UploaderConfig

	// inFlight tracks backup ids with an outstanding update so a second
	// overlapping attempt can be refused.
	inFlightMtx sync.Mutex
	inFlight    map[string]struct{}
}

// NewUploader creates an Uploader from the passed config, applying the
// default retry policy where the config leaves it unset.
func NewUploader(cfg UploaderConfig) *Uploader {
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	return &Uploader{
		cfg:      cfg,
		inFlight: make(map[string]struct{}),
	}
}

// Session is an uploaded backup's state: the handle needed for updates and
// the merchant key the next ciphertext will be encrypted to.
type Session struct {
	// Handle authorizes updates to the uploaded backup.
	Handle *Handle

	// MerchantKey is the validated key the backup was encrypted to.
	MerchantKey *MerchantKey
}

// Upload runs the pre-invoice half of the backup protocol: fetch the
// merchant key, validate it, encrypt the record, and upload the ciphertext,
// retrying the upload with exponential backoff. Each step aborts the whole
// operation with its own distinct error so the caller can show an accurate
// diagnostic.
//
// Callers MUST NOT display an invoice for the swap until this returns
// successfully: an invoice without a stored backup is unrecoverable if the
// session is lost.
func (u *Uploader) Upload(ctx context.Context, merchantID string,
	rec *Record) (*Session, error) {

	// Step 1: fetch the merchant's published key.
	merchantKey, err := u.cfg.Directory.MerchantKey(ctx, merchantID)
	if err != nil {
		log.Errorf("Unable to fetch key for merchant %v: %v",
			merchantID, err)
		return nil, fmt.Errorf("%w: %v", ErrFetchMerchantKey, err)
	}

	// Step 2: refuse malformed or revoked keys, distinctly from a fetch
	// failure.
	if !ValidatePublicKey(merchantKey) {
		return nil, ErrInvalidMerchantKey
	}

	// Step 3: encrypt the recovery record to the merchant key.
	enc, err := EncryptBackup(rec, merchantKey.PubKey, u.cfg.Clock.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptBackup, err)
	}

	// Step 4: upload, retrying transient failures. The last failure is
	// surfaced verbatim once retries are exhausted.
	var handle *Handle
	err = u.retry(ctx, func() error {
		var err error
		handle, err = u.cfg.Store.CreateBackup(ctx, merchantID, enc)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Backup %v stored for swap %v", handle.BackupID, rec.SwapID)

	return &Session{
		Handle:      handle,
		MerchantKey: merchantKey,
	}, nil
}

// MarkSettled runs the post-settlement half of the protocol: re-encrypt the
// record, which now carries the revealed preimage and the received amount,
// and update the stored backup through the write token, under the same
// retry policy as the upload.
//
// The payment has already succeeded by the time this runs, so failure here
// is a recoverability degradation rather than a user-facing error. The
// result type makes that decision the caller's: log and drop the error,
// don't hide it here.
func (u *Uploader) MarkSettled(ctx context.Context, session *Session,
	rec *Record) fn.Result[*Handle] {

	backupID := session.Handle.BackupID

	// Refuse to stack a second update on a backup that already has one
	// running.
	u.inFlightMtx.Lock()
	if _, ok := u.inFlight[backupID]; ok {
		u.inFlightMtx.Unlock()
		return fn.Err[*Handle](ErrUpdateInFlight)
	}
	u.inFlight[backupID] = struct{}{}
	u.inFlightMtx.Unlock()

	defer func() {
		u.inFlightMtx.Lock()
		delete(u.inFlight, backupID)
		u.inFlightMtx.Unlock()
	}()

	enc, err := EncryptBackup(
		rec, session.MerchantKey.PubKey, u.cfg.Clock.Now(),
	)
	if err != nil {
		return fn.Err[*Handle](fmt.Errorf("%w: %v", ErrEncryptBackup,
			err))
	}

	err = u.retry(ctx, func() error {
		return u.cfg.Store.UpdateBackup(
			ctx, session.Handle, StatusClaimed, enc,
		)
	})
	if err != nil {
		return fn.Err[*Handle](err)
	}

	log.Infof("Backup %v marked claimed for swap %v", backupID,
		rec.SwapID)

	return fn.Ok(session.Handle)
}

// retry invokes fn immediately and, on failure, again after
// baseDelay * 2^attempt for each configured retry. The error of the final
// attempt is returned unwrapped.
func (u *Uploader) retry(ctx context.Context, call func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = call()
		if err == nil {
			return nil
		}
		if attempt >= u.cfg.MaxRetries {
			return err
		}

		delay := u.cfg.RetryBaseDelay * (1 << uint(attempt))
		log.Warnf("Backup store call failed (attempt %d): %v, "+
			"retrying in %v", attempt+1, err, delay)

		select {
		case <-u.cfg.Clock.TickAfter(delay):
		case <-ctx.Done():
			return err
		}
	}
}
