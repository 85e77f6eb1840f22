package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
)

// MemoryStore implements an in-memory artifact store.
// It is safe for concurrent use by multiple goroutines.
//
// MemoryStore keeps the latest artifact per user and stage. If TTL is
// configured, a background goroutine removes stale artifacts. For
// deployments requiring persistence or multi-instance setups, use
// RedisStore instead.
type MemoryStore struct {
	mu            sync.RWMutex
	artifacts     map[string]entry
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopped       bool
	stopMu        sync.Mutex
}

type entry struct {
	records  []dataset.Record
	storedAt time.Time
}

// NewMemoryStore creates a new in-memory artifact store with no TTL.
// Artifacts are kept until explicitly replaced.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artifacts: make(map[string]entry),
	}
}

// NewMemoryStoreWithTTL creates an in-memory artifact store with automatic
// TTL-based cleanup. A background goroutine periodically removes artifacts
// older than the TTL.
//
// The cleanup goroutine must be stopped by calling Stop() when the store
// is no longer needed to prevent goroutine leaks.
func NewMemoryStoreWithTTL(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		panic("TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	store := &MemoryStore{
		artifacts:     make(map[string]entry),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}

	go store.runCleanup()

	return store
}

// Stop gracefully shuts down the background cleanup goroutine. It blocks
// until cleanup is complete.
//
// Calling Stop multiple times or on a store without TTL is safe and does
// nothing.
func (s *MemoryStore) Stop() {
	if s.cleanupTicker == nil {
		return // No cleanup goroutine running
	}

	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	if s.stopped {
		return // Already stopped
	}

	close(s.stopCleanup)
	<-s.cleanupDone
	s.cleanupTicker.Stop()
	s.stopped = true
}

func (s *MemoryStore) runCleanup() {
	defer close(s.cleanupDone)

	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup removes artifacts older than the TTL.
func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl == 0 {
		return // No TTL configured
	}

	now := time.Now()
	for key, e := range s.artifacts {
		if now.Sub(e.storedAt) > s.ttl {
			delete(s.artifacts, key)
		}
	}
}

// Put stores an artifact for a user and stage, replacing any existing one.
// Records are deep-copied so later mutation by the caller cannot corrupt
// the stored artifact.
//
// This operation is safe for concurrent use.
func (s *MemoryStore) Put(ctx context.Context, user string, stage Stage, records []dataset.Record) error {
	if !validUser(user) {
		return fmt.Errorf("invalid user identifier %q", user)
	}
	if _, err := ParseStage(string(stage)); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	copied := make([]dataset.Record, len(records))
	for i, rec := range records {
		c := make(dataset.Record, len(rec))
		for k, v := range rec {
			c[k] = v
		}
		copied[i] = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.artifacts[memKey(user, stage)] = entry{records: copied, storedAt: time.Now()}
	return nil
}

// Get retrieves the artifact for a user and stage.
//
// Returns:
//   - records: The stored rows (nil if not found)
//   - found: true if an artifact exists for this user and stage
//   - error: Context error if context is canceled, nil otherwise
//
// This operation is safe for concurrent use.
func (s *MemoryStore) Get(ctx context.Context, user string, stage Stage) ([]dataset.Record, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, found := s.artifacts[memKey(user, stage)]
	if !found {
		return nil, false, nil
	}
	return e.records, true, nil
}

// Len returns the number of artifacts currently stored.
// This method is primarily useful for testing and metrics.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.artifacts)
}

// Delete removes the artifact for a user and stage.
// Returns true if an artifact was deleted, false if none existed.
func (s *MemoryStore) Delete(user string, stage Stage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memKey(user, stage)
	_, existed := s.artifacts[key]
	delete(s.artifacts, key)
	return existed
}

func memKey(user string, stage Stage) string {
	return user + "/" + string(stage)
}
