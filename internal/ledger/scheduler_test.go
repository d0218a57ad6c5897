package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/model"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/repository"
	repoMocks "github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, ch <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for confirmation")
	}
}

func TestScheduler_Schedule(t *testing.T) {
	mRepo := new(repoMocks.MockRegistryRepository)
	confirmed := make(chan struct{})

	mRepo.On("Confirm", mock.Anything, "doc-1", mock.MatchedBy(func(txID string) bool {
		return len(txID) == 64
	}), mock.AnythingOfType("int64"), mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) { close(confirmed) }).
		Return(nil).Once()

	s := NewScheduler(mRepo, 10*time.Millisecond)
	defer s.Stop()

	before := time.Now().Unix()
	s.Schedule("doc-1")

	waitFor(t, confirmed, time.Second)
	mRepo.AssertExpectations(t)

	blockNumber := mRepo.Calls[0].Arguments.Get(3).(int64)
	assert.GreaterOrEqual(t, blockNumber, before)
}

func TestScheduler_DuplicateScheduleIsNoop(t *testing.T) {
	mRepo := new(repoMocks.MockRegistryRepository)
	confirmed := make(chan struct{})

	mRepo.On("Confirm", mock.Anything, "doc-1", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { close(confirmed) }).
		Return(nil).Once()

	s := NewScheduler(mRepo, 20*time.Millisecond)
	defer s.Stop()

	s.Schedule("doc-1")
	s.Schedule("doc-1")
	s.Schedule("doc-1")

	waitFor(t, confirmed, time.Second)
	time.Sleep(50 * time.Millisecond)

	mRepo.AssertNumberOfCalls(t, "Confirm", 1)
}

func TestScheduler_AlreadyConfirmedIsSwallowed(t *testing.T) {
	mRepo := new(repoMocks.MockRegistryRepository)
	confirmed := make(chan struct{})

	mRepo.On("Confirm", mock.Anything, "doc-1", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { close(confirmed) }).
		Return(repository.ErrAlreadyConfirmed).Once()

	s := NewScheduler(mRepo, 5*time.Millisecond)
	defer s.Stop()

	s.Schedule("doc-1")
	waitFor(t, confirmed, time.Second)
	mRepo.AssertExpectations(t)
}

func TestScheduler_ConfirmFailureDoesNotPropagate(t *testing.T) {
	mRepo := new(repoMocks.MockRegistryRepository)
	confirmed := make(chan struct{})

	mRepo.On("Confirm", mock.Anything, "doc-1", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { close(confirmed) }).
		Return(errors.New("store down")).Once()

	s := NewScheduler(mRepo, 5*time.Millisecond)
	defer s.Stop()

	s.Schedule("doc-1")
	waitFor(t, confirmed, time.Second)
	mRepo.AssertExpectations(t)
}

func TestScheduler_Stop(t *testing.T) {
	mRepo := new(repoMocks.MockRegistryRepository)

	s := NewScheduler(mRepo, 30*time.Millisecond)
	s.Schedule("doc-1")
	s.Stop()

	time.Sleep(80 * time.Millisecond)
	mRepo.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestScheduler_Recover(t *testing.T) {
	mRepo := new(repoMocks.MockRegistryRepository)
	done := make(chan struct{}, 2)

	mRepo.On("ListPendingLedgerEntries", mock.Anything).Return([]model.LedgerEntry{
		{ID: "e1", DocumentID: "d1", Status: model.LedgerStatusPending},
		{ID: "e2", DocumentID: "d2", Status: model.LedgerStatusPending},
	}, nil).Once()
	mRepo.On("Confirm", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { done <- struct{}{} }).
		Return(nil).Twice()

	s := NewScheduler(mRepo, 5*time.Millisecond)
	defer s.Stop()

	require.NoError(t, s.Recover(context.Background()))

	waitFor(t, done, time.Second)
	waitFor(t, done, time.Second)
	mRepo.AssertExpectations(t)
}

func TestScheduler_RecoverStoreError(t *testing.T) {
	mRepo := new(repoMocks.MockRegistryRepository)
	mRepo.On("ListPendingLedgerEntries", mock.Anything).Return(nil, errors.New("db fail")).Once()

	s := NewScheduler(mRepo, time.Second)
	defer s.Stop()

	err := s.Recover(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "list pending ledger entries")
}

func TestNewTransactionID(t *testing.T) {
	a, err := newTransactionID()
	require.NoError(t, err)
	b, err := newTransactionID()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", a)
	assert.NotEqual(t, a, b)
}
