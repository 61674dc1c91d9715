// Package memory keeps gate-pass records in process memory behind an RWMutex.
// Records do not survive a restart, so this backend is only selected
// explicitly (tests, local development); the server never falls back to it on
// its own.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dispatchworks/gatepass/internal/model"
	"github.com/dispatchworks/gatepass/internal/store"
)

// Store is the in-memory backend.
type Store struct {
	mu      sync.RWMutex
	records map[string]*model.GatePassRecord
}

// New constructs an empty Store.
func New() *Store {
	return &Store{records: make(map[string]*model.GatePassRecord)}
}

// Create inserts the record, rejecting duplicate references.
func (s *Store) Create(ctx context.Context, rec *model.GatePassRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.Reference]; exists {
		return store.ErrDuplicateReference
	}
	s.records[rec.Reference] = snapshot(rec)
	return nil
}

// FetchByReference returns a copy of the record, or store.ErrNotFound.
func (s *Store) FetchByReference(ctx context.Context, ref string) (*model.GatePassRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[ref]
	if !ok {
		return nil, store.ErrNotFound
	}
	return snapshot(rec), nil
}

// UpdateSignatures applies the completion step under the write lock, so the
// multi-field update is atomic with respect to concurrent readers and to a
// racing second completion attempt.
func (s *Store) UpdateSignatures(ctx context.Context, ref string, c model.Completion) (*model.GatePassRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[ref]
	if !ok {
		return nil, store.ErrNotFound
	}
	if rec.Status != model.StatusPending {
		return nil, store.ErrAlreadyCompleted
	}
	now := time.Now().UTC()
	rec.AuthorizedSignature = c.AuthorizedSignature
	rec.ReceivedSignature = c.ReceivedSignature
	rec.VehicleNumber = c.VehicleNumber
	rec.Status = model.StatusCompleted
	rec.CompletedAt = &now
	return snapshot(rec), nil
}

// snapshot deep-copies a record so callers cannot mutate stored state through
// the returned pointer or the shared items slice.
func snapshot(rec *model.GatePassRecord) *model.GatePassRecord {
	cp := *rec
	cp.Items = append([]model.LineItem(nil), rec.Items...)
	if rec.CompletedAt != nil {
		t := *rec.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
