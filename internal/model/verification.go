package model

import "time"

// VerificationOutcome classifies a verification attempt.
type VerificationOutcome string

const (
	OutcomeVerified VerificationOutcome = "verified"
	OutcomeTampered VerificationOutcome = "tampered"
	OutcomeNotFound VerificationOutcome = "not_found"
)

// VerificationDetail carries outcome-dependent context for an audit entry.
// Verified/tampered outcomes record the matched ledger transaction;
// not_found records an explanatory message.
type VerificationDetail struct {
	TransactionID string `json:"transaction_id,omitempty"`
	BlockNumber   int64  `json:"block_number,omitempty"`
	Message       string `json:"message,omitempty"`
}

// VerificationRecord is an immutable audit entry for a verification attempt.
// DocumentID is nil when no matching document existed at the time of the check.
// Records are append-only; nothing mutates or deletes them in normal operation.
type VerificationRecord struct {
	ID              string              `json:"id"`
	DocumentID      *string             `json:"document_id,omitempty"`
	FileHash        string              `json:"file_hash"`
	Outcome         VerificationOutcome `json:"outcome"`
	VerifierAddress string              `json:"verifier_address,omitempty"`
	Detail          VerificationDetail  `json:"detail"`
	CreatedAt       time.Time           `json:"created_at"`
}
