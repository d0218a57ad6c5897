package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/model"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/repository"
	repoMocks "github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/repository/mocks"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/storage"
	storeMocks "github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// sha256 of "hello world"
const testHash = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

const maxSize = 100 * 1024 * 1024

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) Schedule(documentID string) {
	m.Called(documentID)
}

func validInput() RegisterInput {
	return RegisterInput{
		Filename:        "contract.pdf",
		FileHash:        testHash,
		FileSize:        1024,
		MimeType:        "application/pdf",
		UploaderAddress: "0xabc",
		Tags:            []string{"legal"},
	}
}

func TestRegistrationService_Register_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(in *RegisterInput)
		wantErr error
	}{
		{
			name:    "missing filename",
			mutate:  func(in *RegisterInput) { in.Filename = "  " },
			wantErr: ErrFilenameRequired,
		},
		{
			name:    "missing hash",
			mutate:  func(in *RegisterInput) { in.FileHash = "" },
			wantErr: ErrHashRequired,
		},
		{
			name:    "zero size",
			mutate:  func(in *RegisterInput) { in.FileSize = 0 },
			wantErr: ErrSizeRequired,
		},
		{
			name:    "negative size",
			mutate:  func(in *RegisterInput) { in.FileSize = -5 },
			wantErr: ErrSizeRequired,
		},
		{
			name:    "not a hash",
			mutate:  func(in *RegisterInput) { in.FileHash = "not-a-hash" },
			wantErr: ErrHashFormat,
		},
		{
			name:    "63 hex chars",
			mutate:  func(in *RegisterInput) { in.FileHash = testHash[:63] },
			wantErr: ErrHashFormat,
		},
		{
			name:    "65 hex chars",
			mutate:  func(in *RegisterInput) { in.FileHash = testHash + "a" },
			wantErr: ErrHashFormat,
		},
		{
			name:    "non-hex characters",
			mutate:  func(in *RegisterInput) { in.FileHash = strings.Repeat("zz", 32) },
			wantErr: ErrHashFormat,
		},
		{
			name:    "oversized file",
			mutate:  func(in *RegisterInput) { in.FileSize = maxSize + 1 },
			wantErr: ErrFileTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockRegistryRepository)
			svc := NewRegistrationService(mRepo, nil, nil, maxSize)

			in := validInput()
			tt.mutate(&in)

			res, err := svc.Register(ctx, in)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, res)
			// Validation failures never reach the store.
			mRepo.AssertNotCalled(t, "FindByHash", mock.Anything, mock.Anything)
			mRepo.AssertNotCalled(t, "CreateWithLedgerEntry", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRegistrationService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		mRepo := new(repoMocks.MockRegistryRepository)
		mSched := new(mockScheduler)
		svc := NewRegistrationService(mRepo, nil, mSched, maxSize)

		mRepo.On("FindByHash", ctx, testHash).Return(nil, sql.ErrNoRows).Once()
		mRepo.On("CreateWithLedgerEntry", ctx,
			mock.MatchedBy(func(doc *model.Document) bool {
				return doc.ID != "" &&
					doc.FileHash == testHash &&
					doc.Status == model.DocumentStatusPending &&
					!doc.CreatedAt.IsZero()
			}),
			mock.MatchedBy(func(entry *model.LedgerEntry) bool {
				return entry.FileHash == testHash &&
					entry.OwnerAddress == "0xabc" &&
					entry.Status == model.LedgerStatusPending
			}),
		).Return(&model.Document{ID: "stored-id", Status: model.DocumentStatusPending}, nil).Once()
		mSched.On("Schedule", "stored-id").Once()

		res, err := svc.Register(ctx, validInput())

		require.NoError(t, err)
		assert.Equal(t, "stored-id", res.DocumentID)
		assert.Equal(t, model.DocumentStatusPending, res.Status)
		assert.Contains(t, res.Message, "pending")
		mRepo.AssertExpectations(t)
		mSched.AssertExpectations(t)
	})

	t.Run("uppercase hash is accepted and normalized", func(t *testing.T) {
		mRepo := new(repoMocks.MockRegistryRepository)
		mSched := new(mockScheduler)
		svc := NewRegistrationService(mRepo, nil, mSched, maxSize)

		mRepo.On("FindByHash", ctx, testHash).Return(nil, sql.ErrNoRows).Once()
		mRepo.On("CreateWithLedgerEntry", ctx, mock.MatchedBy(func(doc *model.Document) bool {
			return doc.FileHash == testHash
		}), mock.Anything).Return(&model.Document{ID: "stored-id"}, nil).Once()
		mSched.On("Schedule", "stored-id").Once()

		in := validInput()
		in.FileHash = strings.ToUpper(testHash)

		_, err := svc.Register(ctx, in)

		assert.NoError(t, err)
		mRepo.AssertExpectations(t)
	})

	t.Run("conflict on existing hash", func(t *testing.T) {
		mRepo := new(repoMocks.MockRegistryRepository)
		svc := NewRegistrationService(mRepo, nil, nil, maxSize)

		mRepo.On("FindByHash", ctx, testHash).
			Return(&model.Document{ID: "winner-id", Status: model.DocumentStatusConfirmed}, nil).Once()

		res, err := svc.Register(ctx, validInput())

		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "winner-id", conflict.DocumentID)
		assert.Equal(t, model.DocumentStatusConfirmed, conflict.Status)
		assert.Nil(t, res)
		mRepo.AssertNotCalled(t, "CreateWithLedgerEntry", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lost insert race maps to conflict", func(t *testing.T) {
		mRepo := new(repoMocks.MockRegistryRepository)
		svc := NewRegistrationService(mRepo, nil, nil, maxSize)

		mRepo.On("FindByHash", ctx, testHash).Return(nil, sql.ErrNoRows).Once()
		mRepo.On("CreateWithLedgerEntry", ctx, mock.Anything, mock.Anything).
			Return(nil, repository.ErrHashExists).Once()
		mRepo.On("FindByHash", ctx, testHash).
			Return(&model.Document{ID: "winner-id", Status: model.DocumentStatusPending}, nil).Once()

		res, err := svc.Register(ctx, validInput())

		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "winner-id", conflict.DocumentID)
		assert.Nil(t, res)
		mRepo.AssertExpectations(t)
	})

	t.Run("store error propagates", func(t *testing.T) {
		mRepo := new(repoMocks.MockRegistryRepository)
		svc := NewRegistrationService(mRepo, nil, nil, maxSize)

		mRepo.On("FindByHash", ctx, testHash).Return(nil, sql.ErrNoRows).Once()
		mRepo.On("CreateWithLedgerEntry", ctx, mock.Anything, mock.Anything).
			Return(nil, errors.New("db fail")).Once()

		res, err := svc.Register(ctx, validInput())

		assert.Error(t, err)
		assert.Nil(t, res)
	})

	t.Run("distinct hashes produce distinct documents", func(t *testing.T) {
		otherHash := strings.Repeat("ab", 32)

		mRepo := new(repoMocks.MockRegistryRepository)
		mSched := new(mockScheduler)
		svc := NewRegistrationService(mRepo, nil, mSched, maxSize)

		mRepo.On("FindByHash", ctx, mock.Anything).Return(nil, sql.ErrNoRows).Twice()
		mRepo.On("CreateWithLedgerEntry", ctx, mock.Anything, mock.Anything).
			Return(func(ctx context.Context, doc *model.Document, entry *model.LedgerEntry) *model.Document {
				return doc
			}, nil).Twice()
		mSched.On("Schedule", mock.Anything).Twice()

		first, err := svc.Register(ctx, validInput())
		require.NoError(t, err)

		in := validInput()
		in.FileHash = otherHash
		second, err := svc.Register(ctx, in)
		require.NoError(t, err)

		assert.NotEqual(t, first.DocumentID, second.DocumentID)
	})
}

// racingRepo serializes check-then-insert the way the unique constraint does:
// the first insert wins, later inserts observe ErrHashExists, and lookups see
// the winner once it exists.
type racingRepo struct {
	repoMocks.MockRegistryRepository
	mu      sync.Mutex
	winner  *model.Document
	inserts int
}

func (r *racingRepo) FindByHash(ctx context.Context, hash string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.winner != nil {
		return r.winner, nil
	}
	return nil, sql.ErrNoRows
}

func (r *racingRepo) CreateWithLedgerEntry(ctx context.Context, doc *model.Document, entry *model.LedgerEntry) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.winner != nil {
		return nil, repository.ErrHashExists
	}
	r.winner = doc
	r.inserts++
	return doc, nil
}

type countingScheduler struct {
	mu    sync.Mutex
	calls []string
}

func (s *countingScheduler) Schedule(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, documentID)
}

func TestRegistrationService_Register_ConcurrentSameHash(t *testing.T) {
	const callers = 16

	repo := &racingRepo{}
	sched := &countingScheduler{}
	svc := NewRegistrationService(repo, nil, sched, maxSize)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []*RegisterResult
		conflicts int
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Register(context.Background(), validInput())

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes = append(successes, res)
				return
			}
			var conflict *ConflictError
			if assert.ErrorAs(t, err, &conflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, successes, 1)
	assert.Equal(t, callers-1, conflicts)
	assert.Equal(t, 1, repo.inserts)
	assert.Equal(t, []string{repo.winner.ID}, sched.calls)
}

func TestRegistrationService_Archive(t *testing.T) {
	ctx := context.Background()
	doc := &model.Document{ID: "doc-id", Filename: "contract.pdf", FileHash: testHash}

	t.Run("happy path", func(t *testing.T) {
		mRepo := new(repoMocks.MockRegistryRepository)
		mStore := new(storeMocks.MockStorage)
		svc := NewRegistrationService(mRepo, mStore, nil, maxSize)

		mRepo.On("FindByID", ctx, "doc-id").Return(doc, nil).Once()
		mStore.On("Put", ctx, "archive/"+testHash, mock.Anything, mock.MatchedBy(func(opt storage.PutObjectOptions) bool {
			return opt.Size == 11 && opt.Metadata["document-id"] == "doc-id"
		})).Run(func(args mock.Arguments) {
			// Drain the tee reader so the service-side digest sees the bytes.
			r := args.Get(2).(io.Reader)
			_, _ = io.Copy(io.Discard, r)
		}).Return(storage.ObjectInfo{Key: "archive/" + testHash, Size: 11}, nil).Once()

		got, err := svc.Archive(ctx, "doc-id", strings.NewReader("hello world"), 11, "text/plain")

		assert.NoError(t, err)
		assert.Equal(t, doc, got)
		mStore.AssertExpectations(t)
	})

	t.Run("content mismatch rolls back the object", func(t *testing.T) {
		mRepo := new(repoMocks.MockRegistryRepository)
		mStore := new(storeMocks.MockStorage)
		svc := NewRegistrationService(mRepo, mStore, nil, maxSize)

		mRepo.On("FindByID", ctx, "doc-id").Return(doc, nil).Once()
		mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				r := args.Get(2).(io.Reader)
				_, _ = io.Copy(io.Discard, r)
			}).Return(storage.ObjectInfo{}, nil).Once()
		mStore.On("Delete", ctx, "archive/"+testHash).Return(nil).Once()

		got, err := svc.Archive(ctx, "doc-id", strings.NewReader("tampered bytes"), 14, "text/plain")

		assert.ErrorIs(t, err, ErrContentMismatch)
		assert.Nil(t, got)
		mStore.AssertExpectations(t)
	})

	t.Run("document not found", func(t *testing.T) {
		mRepo := new(repoMocks.MockRegistryRepository)
		svc := NewRegistrationService(mRepo, nil, nil, maxSize)

		mRepo.On("FindByID", ctx, "missing").Return(nil, sql.ErrNoRows).Once()

		got, err := svc.Archive(ctx, "missing", strings.NewReader("x"), 1, "text/plain")

		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, got)
	})

	t.Run("nil reader", func(t *testing.T) {
		svc := NewRegistrationService(new(repoMocks.MockRegistryRepository), nil, nil, maxSize)

		got, err := svc.Archive(ctx, "doc-id", nil, 0, "")

		assert.ErrorIs(t, err, ErrReaderNil)
		assert.Nil(t, got)
	})

	t.Run("storage error", func(t *testing.T) {
		mRepo := new(repoMocks.MockRegistryRepository)
		mStore := new(storeMocks.MockStorage)
		svc := NewRegistrationService(mRepo, mStore, nil, maxSize)

		mRepo.On("FindByID", ctx, "doc-id").Return(doc, nil).Once()
		mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{}, errors.New("storage fail")).Once()

		got, err := svc.Archive(ctx, "doc-id", strings.NewReader("hello world"), 11, "text/plain")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "archive to storage")
		assert.Nil(t, got)
	})
}

func TestRegistrationService_ArchiveURL(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		mRepo := new(repoMocks.MockRegistryRepository)
		mStore := new(storeMocks.MockStorage)
		svc := NewRegistrationService(mRepo, mStore, nil, maxSize)

		mRepo.On("FindByID", ctx, "doc-id").
			Return(&model.Document{ID: "doc-id", FileHash: testHash}, nil).Once()
		mStore.On("PresignGet", ctx, "archive/"+testHash, 15*time.Minute).
			Return("https://example.test/presigned", nil).Once()

		url, err := svc.ArchiveURL(ctx, "doc-id", 15*time.Minute)

		assert.NoError(t, err)
		assert.Equal(t, "https://example.test/presigned", url)
	})

	t.Run("document not found", func(t *testing.T) {
		mRepo := new(repoMocks.MockRegistryRepository)
		svc := NewRegistrationService(mRepo, nil, nil, maxSize)

		mRepo.On("FindByID", ctx, "missing").Return(nil, sql.ErrNoRows).Once()

		url, err := svc.ArchiveURL(ctx, "missing", time.Minute)

		assert.ErrorIs(t, err, ErrNotFound)
		assert.Empty(t, url)
	})
}
