package model

import "time"

// LedgerStatus is the confirmation status of a ledger entry.
// Transitions are pending -> confirmed only.
type LedgerStatus string

const (
	LedgerStatusPending   LedgerStatus = "pending"
	LedgerStatusConfirmed LedgerStatus = "confirmed"
)

// LedgerEntry is the local ledger record standing in for an on-chain
// confirmation of a document's fingerprint. Each document owns exactly one.
// FileHash is copied from the document at registration time and never changes.
// TransactionID is empty until the entry is confirmed, then immutable.
type LedgerEntry struct {
	ID             string       `json:"id"`
	DocumentID     string       `json:"document_id"`
	FileHash       string       `json:"file_hash"`
	TransactionID  string       `json:"transaction_id,omitempty"`
	BlockNumber    int64        `json:"block_number,omitempty"`
	OwnerAddress   string       `json:"owner_address"`
	BlockTimestamp *time.Time   `json:"block_timestamp,omitempty"`
	Status         LedgerStatus `json:"status"`
}
