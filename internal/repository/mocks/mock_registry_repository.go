package mocks

import (
	"context"
	"time"

	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/model"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockRegistryRepository struct {
	mock.Mock
}

func (m *MockRegistryRepository) FindByHash(ctx context.Context, hash string) (*model.Document, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockRegistryRepository) FindByID(ctx context.Context, id string) (*model.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockRegistryRepository) CreateWithLedgerEntry(ctx context.Context, doc *model.Document, entry *model.LedgerEntry) (*model.Document, error) {
	args := m.Called(ctx, doc, entry)
	if f, ok := args.Get(0).(func(context.Context, *model.Document, *model.LedgerEntry) *model.Document); ok {
		return f(ctx, doc, entry), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockRegistryRepository) FindLedgerEntry(ctx context.Context, documentID string) (*model.LedgerEntry, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerEntry), args.Error(1)
}

func (m *MockRegistryRepository) Confirm(ctx context.Context, documentID, transactionID string, blockNumber int64, blockTimestamp time.Time) error {
	args := m.Called(ctx, documentID, transactionID, blockNumber, blockTimestamp)
	return args.Error(0)
}

func (m *MockRegistryRepository) AppendVerification(ctx context.Context, rec *model.VerificationRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRegistryRepository) ListDocuments(ctx context.Context, q repository.DocumentQuery) (*repository.PageResult[repository.DocumentWithLedger], error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[repository.DocumentWithLedger]), args.Error(1)
}

func (m *MockRegistryRepository) ListVerifications(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.VerificationRecord], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.VerificationRecord]), args.Error(1)
}

func (m *MockRegistryRepository) ListPendingLedgerEntries(ctx context.Context) ([]model.LedgerEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LedgerEntry), args.Error(1)
}
