package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/model"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/repository"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/storage"
)

var (
	ErrFilenameRequired = errors.New("filename is required")
	ErrHashRequired     = errors.New("file hash is required")
	ErrSizeRequired     = errors.New("file size must be a positive integer")
	ErrHashFormat       = errors.New("file hash must be a 64-character hex digest")
	ErrFileTooLarge     = errors.New("file size exceeds the configured maximum")
	ErrIDRequired       = errors.New("id is required")
	ErrNotFound         = errors.New("document not found")
	ErrReaderNil        = errors.New("reader is nil")
	ErrContentMismatch  = errors.New("uploaded content does not match the registered hash")
)

// hashPattern matches a full SHA-256 digest in hex, either case.
var hashPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// ConflictError reports a registration attempt against an already-registered
// hash. It carries the winning document so the caller can surface it.
type ConflictError struct {
	DocumentID string
	Status     model.DocumentStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("hash already registered to document %s (status %s)", e.DocumentID, e.Status)
}

// RegisterInput is the registration request payload.
type RegisterInput struct {
	Filename        string
	FileHash        string
	FileSize        int64
	MimeType        string
	UploaderAddress string
	Tags            []string
}

// RegisterResult acknowledges a successful registration. The document is
// still pending at this point; confirmation lands asynchronously.
type RegisterResult struct {
	DocumentID string               `json:"document_id"`
	Status     model.DocumentStatus `json:"status"`
	Message    string               `json:"message"`
}

// ConfirmationScheduler hands a newly registered document to the deferred
// confirmation machinery. Implementations must not block the caller.
type ConfirmationScheduler interface {
	Schedule(documentID string)
}

// RegistrationService defines the use cases around registering documents.
type RegistrationService interface {
	// Register validates the input, inserts the document with its pending
	// ledger entry, and schedules the asynchronous confirmation.
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)

	// Archive stores the original file bytes in object storage under the
	// document's hash, re-computing the digest while streaming. Content whose
	// digest does not match the registered hash is rejected and removed.
	Archive(ctx context.Context, documentID string, r io.Reader, size int64, contentType string) (*model.Document, error)

	// ArchiveURL returns a time-limited download URL for archived content.
	ArchiveURL(ctx context.Context, documentID string, expiry time.Duration) (string, error)
}

type registrationService struct {
	repo        repository.RegistryRepository
	store       storage.Storage
	scheduler   ConfirmationScheduler
	maxFileSize int64
}

// NewRegistrationService constructs a new RegistrationService.
func NewRegistrationService(repo repository.RegistryRepository, store storage.Storage, scheduler ConfirmationScheduler, maxFileSize int64) RegistrationService {
	return &registrationService{repo: repo, store: store, scheduler: scheduler, maxFileSize: maxFileSize}
}

func (s *registrationService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if strings.TrimSpace(in.Filename) == "" {
		return nil, ErrFilenameRequired
	}
	if strings.TrimSpace(in.FileHash) == "" {
		return nil, ErrHashRequired
	}
	if in.FileSize <= 0 {
		return nil, ErrSizeRequired
	}
	hash := strings.ToLower(strings.TrimSpace(in.FileHash))
	if !hashPattern.MatchString(hash) {
		return nil, ErrHashFormat
	}
	if in.FileSize > s.maxFileSize {
		return nil, ErrFileTooLarge
	}

	// Read-then-fail uniqueness check. The insert below still races with
	// concurrent registrations of the same hash; the unique constraint
	// decides the winner and the loser observes ErrHashExists.
	existing, err := s.repo.FindByHash(ctx, hash)
	if err == nil {
		return nil, &ConflictError{DocumentID: existing.ID, Status: existing.Status}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &model.Document{
		ID:              uuid.NewString(),
		Filename:        in.Filename,
		FileHash:        hash,
		FileSize:        in.FileSize,
		MimeType:        in.MimeType,
		UploaderAddress: in.UploaderAddress,
		Tags:            in.Tags,
		Status:          model.DocumentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	entry := &model.LedgerEntry{
		ID:           uuid.NewString(),
		DocumentID:   doc.ID,
		FileHash:     hash,
		OwnerAddress: in.UploaderAddress,
		Status:       model.LedgerStatusPending,
	}

	stored, err := s.repo.CreateWithLedgerEntry(ctx, doc, entry)
	if errors.Is(err, repository.ErrHashExists) {
		winner, findErr := s.repo.FindByHash(ctx, hash)
		if findErr != nil {
			return nil, fmt.Errorf("resolve registration conflict: %w", findErr)
		}
		return nil, &ConflictError{DocumentID: winner.ID, Status: winner.Status}
	}
	if err != nil {
		return nil, err
	}

	s.scheduler.Schedule(stored.ID)

	return &RegisterResult{
		DocumentID: stored.ID,
		Status:     stored.Status,
		Message:    "document registered; blockchain confirmation pending",
	}, nil
}

func (s *registrationService) Archive(ctx context.Context, documentID string, r io.Reader, size int64, contentType string) (*model.Document, error) {
	if documentID == "" {
		return nil, ErrIDRequired
	}
	if r == nil {
		return nil, ErrReaderNil
	}
	doc, err := s.repo.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	key := archiveKey(doc.FileHash)
	hasher := sha256.New()
	_, err = s.store.Put(ctx, key, io.TeeReader(r, hasher), storage.PutObjectOptions{
		Size:        size,
		ContentType: contentType,
		Metadata: map[string]string{
			"document-id":       doc.ID,
			"original-filename": doc.Filename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("archive to storage: %w", err)
	}

	if digest := hex.EncodeToString(hasher.Sum(nil)); digest != doc.FileHash {
		// The stored object is not the registered content; remove it.
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("%w; rollback delete failed: %v", ErrContentMismatch, delErr)
		}
		return nil, ErrContentMismatch
	}
	return doc, nil
}

func (s *registrationService) ArchiveURL(ctx context.Context, documentID string, expiry time.Duration) (string, error) {
	if documentID == "" {
		return "", ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return s.store.PresignGet(ctx, archiveKey(doc.FileHash), expiry)
}

func archiveKey(hash string) string {
	return "archive/" + hash
}
