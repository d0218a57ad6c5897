package service

import (
	"context"
	"errors"

	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/model"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/repository"
)

var ErrInvalidStatus = errors.New("invalid status filter")

// DocumentListResult is the service-level DTO for paginated documents with
// their ledger entries attached.
type DocumentListResult struct {
	Items []repository.DocumentWithLedger `json:"data"`
	Total int                             `json:"total"`
}

// VerificationListResult is the service-level DTO for the paginated audit trail.
type VerificationListResult struct {
	Items []model.VerificationRecord `json:"data"`
	Total int                        `json:"total"`
}

// QueryService exposes read-only projections over the registry.
// Nothing here mutates state.
type QueryService interface {
	// ListDocuments returns documents joined with ledger entries, optionally
	// filtered by document status, using limit/offset and a total count.
	ListDocuments(ctx context.Context, status string, limit, offset int) (*DocumentListResult, error)

	// ListVerifications returns the audit trail newest first.
	ListVerifications(ctx context.Context, limit, offset int) (*VerificationListResult, error)
}

type queryService struct {
	repo repository.RegistryRepository
}

// NewQueryService constructs a new QueryService.
func NewQueryService(repo repository.RegistryRepository) QueryService {
	return &queryService{repo: repo}
}

func (s *queryService) ListDocuments(ctx context.Context, status string, limit, offset int) (*DocumentListResult, error) {
	switch model.DocumentStatus(status) {
	case "", model.DocumentStatusPending, model.DocumentStatusConfirmed, model.DocumentStatusNotFound:
	default:
		return nil, ErrInvalidStatus
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.ListDocuments(ctx, repository.DocumentQuery{
		Status: model.DocumentStatus(status),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *queryService) ListVerifications(ctx context.Context, limit, offset int) (*VerificationListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.ListVerifications(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &VerificationListResult{Items: res.Items, Total: res.Total}, nil
}
