package backup

import "errors"

var (
	// ErrFetchMerchantKey is returned when the merchant's public key
	// cannot be fetched from the directory service.
	ErrFetchMerchantKey = errors.New("cannot fetch merchant key")

	// ErrInvalidMerchantKey is returned when the directory answered but
	// the key it returned is malformed or revoked.
	ErrInvalidMerchantKey = errors.New("merchant key invalid")

	// ErrEncryptBackup is returned when encrypting the recovery record
	// fails.
	ErrEncryptBackup = errors.New("backup encryption failed")

	// ErrUpdateInFlight is returned when an update is requested for a
	// backup that already has one outstanding.
	ErrUpdateInFlight = errors.New("backup update already in flight")

	// ErrMerchantNotFound is returned by the directory client when the
	// merchant id is unknown.
	ErrMerchantNotFound = errors.New("merchant not found")

	// ErrBackupNotFound is returned by the store client when the backup
	// id is unknown.
	ErrBackupNotFound = errors.New("backup not found")

	// ErrWriteTokenMismatch is returned by the store client when the
	// presented write token does not authorize the update.
	ErrWriteTokenMismatch = errors.New("write token mismatch")
)
