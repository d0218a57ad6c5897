package repository

import (
	"context"
	"errors"
	"time"

	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/model"
)

var (
	// ErrHashExists is returned by CreateWithLedgerEntry when another document
	// already holds the submitted hash (lost race or repeat submission).
	ErrHashExists = errors.New("file hash already registered")

	// ErrAlreadyConfirmed is returned by Confirm when the ledger entry left the
	// pending state before this call. The stored transaction id is untouched.
	ErrAlreadyConfirmed = errors.New("ledger entry already confirmed")
)

// RegistryRepository defines data access for the document registry using SQL
// queries only. No business logic here, strictly persistence operations.
//
// Implementations must make CreateWithLedgerEntry and Confirm atomic: either
// both rows change or neither does. A reader never observes a confirmed
// document with a pending ledger entry or the reverse.
type RegistryRepository interface {
	// FindByHash returns the document holding the given content hash, or
	// sql.ErrNoRows when no such document exists.
	FindByHash(ctx context.Context, hash string) (*model.Document, error)

	// FindByID returns a document by its ID.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// CreateWithLedgerEntry inserts a document and its companion ledger entry
	// in one transaction. A unique violation on the hash maps to ErrHashExists.
	CreateWithLedgerEntry(ctx context.Context, doc *model.Document, entry *model.LedgerEntry) (*model.Document, error)

	// FindLedgerEntry returns the ledger entry owned by the given document,
	// or sql.ErrNoRows when none exists.
	FindLedgerEntry(ctx context.Context, documentID string) (*model.LedgerEntry, error)

	// Confirm transitions the document's ledger entry and the document itself
	// from pending to confirmed in one transaction, recording the transaction
	// id, block number, and block timestamp. Returns ErrAlreadyConfirmed when
	// the entry is no longer pending; the call changes nothing in that case.
	Confirm(ctx context.Context, documentID, transactionID string, blockNumber int64, blockTimestamp time.Time) error

	// AppendVerification inserts an immutable audit entry.
	AppendVerification(ctx context.Context, rec *model.VerificationRecord) error

	// ListDocuments returns a paginated projection over documents joined with
	// their ledger entries, optionally filtered by document status.
	ListDocuments(ctx context.Context, q DocumentQuery) (*PageResult[DocumentWithLedger], error)

	// ListVerifications returns a paginated slice of the audit trail, newest first.
	ListVerifications(ctx context.Context, pq PageQuery) (*PageResult[model.VerificationRecord], error)

	// ListPendingLedgerEntries returns every ledger entry still awaiting
	// confirmation. Used to re-arm the confirmation scheduler after a restart.
	ListPendingLedgerEntries(ctx context.Context) ([]model.LedgerEntry, error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// DocumentQuery filters and paginates the document listing.
// An empty Status means no status filter.
type DocumentQuery struct {
	Status model.DocumentStatus
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}

// DocumentWithLedger pairs a document with its ledger entry for read-only
// projections. Ledger is nil when the entry is missing.
type DocumentWithLedger struct {
	model.Document
	Ledger *model.LedgerEntry `json:"blockchain,omitempty"`
}
