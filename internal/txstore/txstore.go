// Package txstore tracks autosubmit sessions by transaction hash so a
// restarted or re-entrant Autosubmitter can tell whether a hash was
// already broadcast, how many bump/retry attempts it has consumed, and
// what state it last settled to — an idempotency ledger, not a queue.
//
// Adapted from storage.TransactionStateStore / storage.MemoryTxStore
// (src/chainadapter/storage/{store,memory}.go): the same
// Get/Set/Delete/List/Clean shape and copy-on-read/write discipline,
// with TxStatus's four wallet-broadcast states replaced by
// autosubmit.State and RetryCount split into BumpCount (re-bid path) and
// RebroadcastCount (re-broadcast path) to match the two distinct timeout
// responses the autosubmitter can take.
package txstore

import (
	"sort"
	"sync"
	"time"

	"github.com/yourusername/mevcore/internal/autosubmit"
)

// SessionState is the persisted record for one tracked transaction hash
// within a submission session.
type SessionState struct {
	TxHash           [32]byte
	State            autosubmit.State
	FirstSeen        time.Time
	LastAttempt      time.Time
	BumpCount        int
	RebroadcastCount int
	RawTx            []byte
}

// Store provides idempotency tracking for transaction hashes across
// Autosubmitter invocations. Implementations MUST be safe for concurrent
// use: the same store may be consulted from multiple in-flight bump
// attempts.
type Store interface {
	Get(txHash [32]byte) (*SessionState, error)
	Set(txHash [32]byte, state *SessionState) error
	Delete(txHash [32]byte) error
	List() ([]*SessionState, error)
	ListByState(state autosubmit.State) ([]*SessionState, error)
	Clean(olderThan time.Duration) (int, error)
}

// MemoryStore implements Store over a mutex-guarded map. Sufficient for a
// single-process autosubmitter; a durable backend can implement the same
// interface without the Autosubmitter changing.
type MemoryStore struct {
	mu    sync.RWMutex
	store map[[32]byte]*SessionState
}

// NewMemoryStore creates an empty in-memory idempotency ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{store: make(map[[32]byte]*SessionState)}
}

// Record implements autosubmit.Ledger: upsert the session state for
// txHash, incrementing BumpCount on every Bump record of an existing entry
// so callers don't need to read-modify-write themselves. Record never
// changes RebroadcastCount; only Set writes it.
func (m *MemoryStore) Record(txHash [32]byte, state autosubmit.State, rawTx []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	existing, had := m.store[txHash]
	if !had {
		m.store[txHash] = &SessionState{
			TxHash:      txHash,
			State:       state,
			FirstSeen:   now,
			LastAttempt: now,
			RawTx:       append([]byte(nil), rawTx...),
		}
		return
	}

	existing.State = state
	existing.LastAttempt = now
	if state == autosubmit.Bump {
		existing.BumpCount++
	}
	if rawTx != nil {
		existing.RawTx = append([]byte(nil), rawTx...)
	}
}

func (m *MemoryStore) Get(txHash [32]byte) (*SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.store[txHash]
	if !exists {
		return nil, nil
	}
	return copyState(state), nil
}

func (m *MemoryStore) Set(txHash [32]byte, state *SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store[txHash] = copyState(state)
	return nil
}

func (m *MemoryStore) Delete(txHash [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.store, txHash)
	return nil
}

func (m *MemoryStore) List() ([]*SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*SessionState, 0, len(m.store))
	for _, state := range m.store {
		result = append(result, copyState(state))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FirstSeen.After(result[j].FirstSeen) })
	return result, nil
}

func (m *MemoryStore) ListByState(state autosubmit.State) ([]*SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*SessionState, 0)
	for _, s := range m.store {
		if s.State == state {
			result = append(result, copyState(s))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FirstSeen.After(result[j].FirstSeen) })
	return result, nil
}

func (m *MemoryStore) Clean(olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	count := 0
	for hash, state := range m.store {
		if state.FirstSeen.Before(cutoff) {
			delete(m.store, hash)
			count++
		}
	}
	return count, nil
}

func copyState(state *SessionState) *SessionState {
	if state == nil {
		return nil
	}
	rawCopy := append([]byte(nil), state.RawTx...)
	clone := *state
	clone.RawTx = rawCopy
	return &clone
}
