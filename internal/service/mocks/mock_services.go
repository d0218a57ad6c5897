package mocks

import (
	"context"
	"io"
	"time"

	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/model"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockRegistrationService struct {
	mock.Mock
}

func (m *MockRegistrationService) Register(ctx context.Context, in service.RegisterInput) (*service.RegisterResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RegisterResult), args.Error(1)
}

func (m *MockRegistrationService) Archive(ctx context.Context, documentID string, r io.Reader, size int64, contentType string) (*model.Document, error) {
	args := m.Called(ctx, documentID, r, size, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockRegistrationService) ArchiveURL(ctx context.Context, documentID string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, documentID, expiry)
	return args.String(0), args.Error(1)
}

type MockVerificationService struct {
	mock.Mock
}

func (m *MockVerificationService) Verify(ctx context.Context, fileHash, verifierAddress string) (*service.VerifyResult, error) {
	args := m.Called(ctx, fileHash, verifierAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VerifyResult), args.Error(1)
}

type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) ListDocuments(ctx context.Context, status string, limit, offset int) (*service.DocumentListResult, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

func (m *MockQueryService) ListVerifications(ctx context.Context, limit, offset int) (*service.VerificationListResult, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VerificationListResult), args.Error(1)
}
