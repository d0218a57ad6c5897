package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/model"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/repository"
)

// confirmTimeout bounds the store round-trip when a timer fires.
const confirmTimeout = 10 * time.Second

// ConfirmStore is the slice of the registry the scheduler needs: the atomic
// pending-to-confirmed transition and the pending scan used after a restart.
type ConfirmStore interface {
	Confirm(ctx context.Context, documentID, transactionID string, blockNumber int64, blockTimestamp time.Time) error
	ListPendingLedgerEntries(ctx context.Context) ([]model.LedgerEntry, error)
}

// Scheduler stands in for a real settlement layer. Each registered document
// gets one cancellable timer; when it fires the scheduler fabricates a
// transaction id and block and applies the confirmation through the store.
// Failures are swallowed here; the registration call that spawned the timer
// has long since returned, so there is nobody to report to. A pending entry
// whose confirmation failed is picked up again by Recover on the next start.
type Scheduler struct {
	store ConfirmStore
	delay time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewScheduler creates a Scheduler that confirms documents after the given delay.
func NewScheduler(store ConfirmStore, delay time.Duration) *Scheduler {
	return &Scheduler{
		store:  store,
		delay:  delay,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms the confirmation timer for a document. It returns immediately.
// Scheduling a document that already has a timer armed is a no-op.
func (s *Scheduler) Schedule(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[documentID]; ok {
		return
	}
	s.timers[documentID] = time.AfterFunc(s.delay, func() {
		s.confirm(documentID)
	})
}

// Recover re-arms a timer for every ledger entry still pending in the store.
// Called once at startup so confirmations lost to a process restart still fire.
func (s *Scheduler) Recover(ctx context.Context) error {
	entries, err := s.store.ListPendingLedgerEntries(ctx)
	if err != nil {
		return fmt.Errorf("list pending ledger entries: %w", err)
	}
	for _, entry := range entries {
		s.Schedule(entry.DocumentID)
	}
	if len(entries) > 0 {
		logJSON(map[string]any{
			"component": "ledger",
			"event":     "confirmation_recovered",
			"status":    "success",
			"count":     len(entries),
		})
	}
	return nil
}

// Stop cancels every armed timer. Confirmations already in flight complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *Scheduler) confirm(documentID string) {
	defer func() {
		s.mu.Lock()
		delete(s.timers, documentID)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), confirmTimeout)
	defer cancel()

	txID, err := newTransactionID()
	if err != nil {
		logJSON(map[string]any{
			"component":     "ledger",
			"event":         "confirmation_failed",
			"status":        "error",
			"document_id":   documentID,
			"error_message": err.Error(),
		})
		return
	}

	now := time.Now().UTC()
	err = s.store.Confirm(ctx, documentID, txID, blockNumberAt(now), now)
	switch {
	case err == nil:
		logJSON(map[string]any{
			"component":      "ledger",
			"event":          "confirmation_applied",
			"status":         "success",
			"document_id":    documentID,
			"transaction_id": txID,
		})
	case errors.Is(err, repository.ErrAlreadyConfirmed):
		// Second run lost the race with an earlier confirmation; nothing to do.
	default:
		logJSON(map[string]any{
			"component":     "ledger",
			"event":         "confirmation_failed",
			"status":        "error",
			"document_id":   documentID,
			"error_message": err.Error(),
		})
	}
}

// newTransactionID draws 32 random bytes and hex-encodes them, matching the
// 64-character digest shape of the stored hashes.
func newTransactionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// blockNumberAt derives a monotonically growing block number from wall time.
func blockNumberAt(t time.Time) int64 {
	return t.Unix()
}

func logJSON(data map[string]any) {
	data["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal ledger log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
