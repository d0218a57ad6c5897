package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/model"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/repository"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint breach.
const uniqueViolation = "23505"

// RegistryPostgres is a PostgreSQL implementation of repository.RegistryRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type RegistryPostgres struct {
	db *sql.DB
}

// NewRegistryPostgres creates a new RegistryPostgres repository.
func NewRegistryPostgres(db *sql.DB) *RegistryPostgres {
	return &RegistryPostgres{db: db}
}

var _ repository.RegistryRepository = (*RegistryPostgres)(nil)

const documentColumns = `id, filename, file_hash, file_size, mime_type, uploader_address, tags, status, created_at, updated_at`

const ledgerColumns = `id, document_id, file_hash, transaction_id, block_number, owner_address, block_timestamp, status`

// FindByHash fetches a single document by its content hash.
func (r *RegistryPostgres) FindByHash(ctx context.Context, hash string) (*model.Document, error) {
	q := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE file_hash = $1
	`
	return scanDocument(r.db.QueryRowContext(ctx, q, hash))
}

// FindByID fetches a single document by its ID.
func (r *RegistryPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	q := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE id = $1
	`
	return scanDocument(r.db.QueryRowContext(ctx, q, id))
}

// CreateWithLedgerEntry inserts the document and its ledger entry in one
// transaction so a failure of either insert persists neither.
func (r *RegistryPostgres) CreateWithLedgerEntry(ctx context.Context, doc *model.Document, entry *model.LedgerEntry) (*model.Document, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	const qDoc = `
		INSERT INTO documents (id, filename, file_hash, file_size, mime_type, uploader_address, tags, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + documentColumns + `
	`
	row := tx.QueryRowContext(ctx, qDoc,
		doc.ID,
		doc.Filename,
		doc.FileHash,
		doc.FileSize,
		doc.MimeType,
		doc.UploaderAddress,
		tags,
		doc.Status,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	stored, err := scanDocument(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrHashExists
		}
		return nil, err
	}

	const qEntry = `
		INSERT INTO blockchain_records (id, document_id, file_hash, owner_address, status)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.ExecContext(ctx, qEntry,
		entry.ID,
		stored.ID,
		entry.FileHash,
		entry.OwnerAddress,
		entry.Status,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return stored, nil
}

// FindLedgerEntry fetches the ledger entry owned by a document.
func (r *RegistryPostgres) FindLedgerEntry(ctx context.Context, documentID string) (*model.LedgerEntry, error) {
	q := `
		SELECT ` + ledgerColumns + `
		FROM blockchain_records
		WHERE document_id = $1
	`
	return scanLedgerEntry(r.db.QueryRowContext(ctx, q, documentID))
}

// Confirm moves the ledger entry and its document to confirmed in one
// transaction. The status guard in the UPDATE makes re-runs no-ops: a second
// invocation matches zero rows and the stored transaction id is untouched.
func (r *RegistryPostgres) Confirm(ctx context.Context, documentID, transactionID string, blockNumber int64, blockTimestamp time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const qEntry = `
		UPDATE blockchain_records
		SET transaction_id = $2, block_number = $3, block_timestamp = $4, status = 'confirmed'
		WHERE document_id = $1 AND status = 'pending'
	`
	res, err := tx.ExecContext(ctx, qEntry, documentID, transactionID, blockNumber, blockTimestamp)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var status model.LedgerStatus
		const qStatus = `SELECT status FROM blockchain_records WHERE document_id = $1`
		if err := tx.QueryRowContext(ctx, qStatus, documentID).Scan(&status); err != nil {
			return err
		}
		if status == model.LedgerStatusConfirmed {
			return repository.ErrAlreadyConfirmed
		}
		return sql.ErrNoRows
	}

	const qDoc = `
		UPDATE documents
		SET status = 'confirmed', updated_at = $2
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, qDoc, documentID, blockTimestamp); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// AppendVerification inserts an audit row. Rows are never updated or deleted here.
func (r *RegistryPostgres) AppendVerification(ctx context.Context, rec *model.VerificationRecord) error {
	detail, err := json.Marshal(rec.Detail)
	if err != nil {
		return fmt.Errorf("marshal detail: %w", err)
	}

	const q = `
		INSERT INTO verification_history (id, document_id, file_hash, outcome, verifier_address, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, q,
		rec.ID,
		rec.DocumentID,
		rec.FileHash,
		rec.Outcome,
		nullString(rec.VerifierAddress),
		detail,
		rec.CreatedAt,
	)
	return err
}

// ListDocuments returns documents joined with their ledger entries using
// LIMIT/OFFSET pagination and a total count, optionally filtered by status.
func (r *RegistryPostgres) ListDocuments(ctx context.Context, q repository.DocumentQuery) (*repository.PageResult[repository.DocumentWithLedger], error) {
	where := ""
	countArgs := []any{}
	listArgs := []any{q.Limit, q.Offset}
	if q.Status != "" {
		where = " WHERE d.status = $1"
		countArgs = append(countArgs, q.Status)
		listArgs = []any{q.Status, q.Limit, q.Offset}
	}

	qCount := `SELECT COUNT(*) FROM documents d` + where
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, countArgs...).Scan(&total); err != nil {
		return nil, err
	}

	limitPos, offsetPos := "$1", "$2"
	if q.Status != "" {
		limitPos, offsetPos = "$2", "$3"
	}
	qList := `
		SELECT d.id, d.filename, d.file_hash, d.file_size, d.mime_type, d.uploader_address, d.tags, d.status, d.created_at, d.updated_at,
		       b.id, b.document_id, b.file_hash, b.transaction_id, b.block_number, b.owner_address, b.block_timestamp, b.status
		FROM documents d
		LEFT JOIN blockchain_records b ON b.document_id = d.id` + where + `
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT ` + limitPos + ` OFFSET ` + offsetPos

	rows, err := r.db.QueryContext(ctx, qList, listArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]repository.DocumentWithLedger, 0)
	for rows.Next() {
		var (
			d         model.Document
			tags      []byte
			entryID   sql.NullString
			docRef    sql.NullString
			entryHash sql.NullString
			txID      sql.NullString
			blockNum  sql.NullInt64
			owner     sql.NullString
			blockTS   sql.NullTime
			status    sql.NullString
		)
		if err := rows.Scan(
			&d.ID, &d.Filename, &d.FileHash, &d.FileSize, &d.MimeType, &d.UploaderAddress, &tags, &d.Status, &d.CreatedAt, &d.UpdatedAt,
			&entryID, &docRef, &entryHash, &txID, &blockNum, &owner, &blockTS, &status,
		); err != nil {
			return nil, err
		}
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &d.Tags); err != nil {
				return nil, fmt.Errorf("unmarshal tags: %w", err)
			}
		}

		item := repository.DocumentWithLedger{Document: d}
		if entryID.Valid {
			entry := model.LedgerEntry{
				ID:           entryID.String,
				DocumentID:   docRef.String,
				FileHash:     entryHash.String,
				OwnerAddress: owner.String,
				Status:       model.LedgerStatus(status.String),
			}
			if txID.Valid {
				entry.TransactionID = txID.String
			}
			if blockNum.Valid {
				entry.BlockNumber = blockNum.Int64
			}
			if blockTS.Valid {
				ts := blockTS.Time
				entry.BlockTimestamp = &ts
			}
			item.Ledger = &entry
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[repository.DocumentWithLedger]{
		Items: items,
		Total: total,
	}, nil
}

// ListVerifications returns audit entries newest first with a total count.
func (r *RegistryPostgres) ListVerifications(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.VerificationRecord], error) {
	const qCount = `SELECT COUNT(*) FROM verification_history`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT id, document_id, file_hash, outcome, verifier_address, detail, created_at
		FROM verification_history
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.VerificationRecord, 0)
	for rows.Next() {
		var (
			rec      model.VerificationRecord
			docID    sql.NullString
			verifier sql.NullString
			detail   []byte
		)
		if err := rows.Scan(&rec.ID, &docID, &rec.FileHash, &rec.Outcome, &verifier, &detail, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if docID.Valid {
			id := docID.String
			rec.DocumentID = &id
		}
		if verifier.Valid {
			rec.VerifierAddress = verifier.String
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &rec.Detail); err != nil {
				return nil, fmt.Errorf("unmarshal detail: %w", err)
			}
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.VerificationRecord]{
		Items: items,
		Total: total,
	}, nil
}

// ListPendingLedgerEntries returns every entry still pending confirmation.
func (r *RegistryPostgres) ListPendingLedgerEntries(ctx context.Context) ([]model.LedgerEntry, error) {
	q := `
		SELECT ` + ledgerColumns + `
		FROM blockchain_records
		WHERE status = 'pending'
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]model.LedgerEntry, 0)
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		d    model.Document
		tags []byte
	)
	if err := row.Scan(
		&d.ID,
		&d.Filename,
		&d.FileHash,
		&d.FileSize,
		&d.MimeType,
		&d.UploaderAddress,
		&tags,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &d.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	return &d, nil
}

func scanLedgerEntry(row rowScanner) (*model.LedgerEntry, error) {
	var (
		entry    model.LedgerEntry
		txID     sql.NullString
		blockNum sql.NullInt64
		blockTS  sql.NullTime
	)
	if err := row.Scan(
		&entry.ID,
		&entry.DocumentID,
		&entry.FileHash,
		&txID,
		&blockNum,
		&entry.OwnerAddress,
		&blockTS,
		&entry.Status,
	); err != nil {
		return nil, err
	}
	if txID.Valid {
		entry.TransactionID = txID.String
	}
	if blockNum.Valid {
		entry.BlockNumber = blockNum.Int64
	}
	if blockTS.Valid {
		ts := blockTS.Time
		entry.BlockTimestamp = &ts
	}
	return &entry, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
