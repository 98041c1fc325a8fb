// Package backup implements the recovery backup protocol for in-flight
// swaps. Before an invoice is ever shown to a payer, the secrets needed to
// recover the swap are encrypted to the merchant's public key and uploaded
// to the backup store, so a lost browser session can never strand funds.
// Only public key operations happen on this side; reading a backup back is
// exclusively the merchant's business.
package backup

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lntypes"
)

// FormatVersion tags every encrypted backup so future formats can be told
// apart at read time.
const FormatVersion = "paylink-backup-v1"

// Status describes the lifecycle of a stored backup.
type Status string

const (
	// StatusPending marks a backup for a swap that has not yet settled.
	StatusPending Status = "pending"

	// StatusClaimed marks a backup whose swap settled; the stored
	// ciphertext includes the revealed preimage.
	StatusClaimed Status = "claimed"
)

// Record is the plaintext recovery record for a single swap. It is created
// once per swap and mutated in place as the swap progresses. It is never
// deleted on this side, since it is the only recovery path if the session
// is lost before settlement.
type Record struct {
	// SwapID identifies the swap with the provider.
	SwapID string `json:"swapId"`

	// SeedMaterial is the wallet mnemonic or raw seed needed to sweep
	// the swap's funds.
	SeedMaterial string `json:"seedMaterial"`

	// Preimage is the hex encoded payment preimage, set once the swap
	// settles.
	Preimage string `json:"preimage,omitempty"`

	// AmountRequested is the satoshi amount the invoice asked for.
	AmountRequested btcutil.Amount `json:"amountSatoshisRequested"`

	// AmountReceived is the satoshi amount actually received, set once
	// known.
	AmountReceived btcutil.Amount `json:"amountSatoshisReceived,omitempty"`

	// Invoice is the payment request presented to the payer.
	Invoice string `json:"invoiceString"`

	// Timestamp is the RFC 3339 creation time of the record.
	Timestamp string `json:"timestamp"`

	// Metadata optionally carries display context for the merchant.
	Metadata *RecordMetadata `json:"metadata,omitempty"`
}

// RecordMetadata is optional display context attached to a record.
type RecordMetadata struct {
	FiatAmount  float64 `json:"fiatAmount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
}

// NewRecord populates a recovery record for a freshly created swap.
func NewRecord(swapID, seedMaterial, invoice string,
	amountRequested btcutil.Amount, now time.Time,
	metadata *RecordMetadata) *Record {

	return &Record{
		SwapID:          swapID,
		SeedMaterial:    seedMaterial,
		AmountRequested: amountRequested,
		Invoice:         invoice,
		Timestamp:       now.UTC().Format(time.RFC3339),
		Metadata:        metadata,
	}
}

// SetSettled records the outcome of a settled swap on the record: the
// revealed preimage and the amount that actually arrived.
func (r *Record) SetSettled(preimage lntypes.Preimage,
	received btcutil.Amount) {

	r.Preimage = preimage.String()
	r.AmountReceived = received
}

// Encrypted is the ciphertext form of a Record as it is handed to the
// backup store.
type Encrypted struct {
	// EncryptedData is the armored ECIES ciphertext of the record.
	EncryptedData string `json:"encryptedData"`

	// SwapID identifies the swap the backup belongs to. It is stored in
	// the clear so the merchant can index backups without decrypting
	// them.
	SwapID string `json:"swapId"`

	// Timestamp is the RFC 3339 time the ciphertext was produced.
	Timestamp string `json:"timestamp"`

	// FormatVersion identifies the ciphertext format.
	FormatVersion string `json:"formatVersion"`
}

// Handle identifies an uploaded backup and carries the credential needed to
// update it later. The write token is opaque and unguessable, which is what
// lets an anonymous payer browser mark its own swap's backup claimed
// without holding merchant credentials.
type Handle struct {
	// BackupID is the store-assigned identifier of the backup.
	BackupID string

	// WriteToken authorizes updates to this one backup.
	WriteToken string
}
