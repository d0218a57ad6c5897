package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/model"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/repository"
)

// VerifyResult classifies a verification attempt for the caller.
// Document is present whenever a matching registration exists, even when the
// status tag collapses "registered but unconfirmed" into not_found.
// Blockchain is present only for confirmed documents.
type VerifyResult struct {
	Status     model.VerificationOutcome `json:"status"`
	Message    string                    `json:"message"`
	Document   *model.Document           `json:"document,omitempty"`
	Blockchain *model.LedgerEntry        `json:"blockchain,omitempty"`
}

// VerificationService defines the fingerprint verification use case.
type VerificationService interface {
	// Verify looks up the hash and classifies the result. An audit entry is
	// appended only when a verifier identity is supplied; anonymous checks
	// leave no trace. Pending documents write no audit entry either way.
	Verify(ctx context.Context, fileHash, verifierAddress string) (*VerifyResult, error)
}

type verificationService struct {
	repo    repository.RegistryRepository
	metrics *VerificationMetrics
}

// NewVerificationService constructs a new VerificationService.
// metrics may be nil when outcome counters are not wanted (tests).
func NewVerificationService(repo repository.RegistryRepository, metrics *VerificationMetrics) VerificationService {
	return &verificationService{repo: repo, metrics: metrics}
}

func (s *verificationService) Verify(ctx context.Context, fileHash, verifierAddress string) (*VerifyResult, error) {
	if strings.TrimSpace(fileHash) == "" {
		return nil, ErrHashRequired
	}
	hash := strings.ToLower(strings.TrimSpace(fileHash))

	doc, err := s.repo.FindByHash(ctx, hash)
	if errors.Is(err, sql.ErrNoRows) {
		if verifierAddress != "" {
			rec := &model.VerificationRecord{
				ID:              uuid.NewString(),
				FileHash:        hash,
				Outcome:         model.OutcomeNotFound,
				VerifierAddress: verifierAddress,
				Detail:          model.VerificationDetail{Message: "no document registered for this hash"},
				CreatedAt:       time.Now().UTC(),
			}
			if err := s.repo.AppendVerification(ctx, rec); err != nil {
				return nil, err
			}
		}
		s.metrics.Record(model.OutcomeNotFound)
		return &VerifyResult{
			Status:  model.OutcomeNotFound,
			Message: "no document is registered for this hash",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	entry, err := s.repo.FindLedgerEntry(ctx, doc.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil || entry.Status != model.LedgerStatusConfirmed {
		// Registered but not yet chain-confirmed. Reported under the same
		// not_found tag as an unregistered hash, with the document attached
		// and no blockchain payload. No audit entry in this sub-case.
		s.metrics.Record(model.OutcomeNotFound)
		return &VerifyResult{
			Status:   model.OutcomeNotFound,
			Message:  "document is awaiting blockchain confirmation",
			Document: doc,
		}, nil
	}

	outcome := model.OutcomeTampered
	message := "stored fingerprint does not match the submitted hash"
	if strings.EqualFold(hash, doc.FileHash) {
		outcome = model.OutcomeVerified
		message = "document verified against the blockchain record"
	}

	if verifierAddress != "" {
		rec := &model.VerificationRecord{
			ID:              uuid.NewString(),
			DocumentID:      &doc.ID,
			FileHash:        hash,
			Outcome:         outcome,
			VerifierAddress: verifierAddress,
			Detail: model.VerificationDetail{
				TransactionID: entry.TransactionID,
				BlockNumber:   entry.BlockNumber,
			},
			CreatedAt: time.Now().UTC(),
		}
		if err := s.repo.AppendVerification(ctx, rec); err != nil {
			return nil, err
		}
	}

	s.metrics.Record(outcome)
	return &VerifyResult{
		Status:     outcome,
		Message:    message,
		Document:   doc,
		Blockchain: entry,
	}, nil
}
