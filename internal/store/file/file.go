// Package file persists gate-pass records in a single JSON document on disk,
// keyed by reference. It is the zero-infrastructure backend: one file, no
// daemon, suitable for a single gate office. Every operation reads and
// rewrites the whole file under a process-wide mutex; writes go through a
// temp file plus rename so a crash cannot leave a half-written document.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dispatchworks/gatepass/internal/model"
	"github.com/dispatchworks/gatepass/internal/store"
)

// Store is the JSON-file backend.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a Store writing to path. The file is created on first write; a
// missing file reads as an empty store.
func New(path string) *Store {
	return &Store{path: path}
}

// Create inserts the record, rejecting duplicate references.
func (s *Store) Create(ctx context.Context, rec *model.GatePassRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return store.Failure("read gate-pass file", err)
	}
	if _, exists := all[rec.Reference]; exists {
		return store.ErrDuplicateReference
	}
	all[rec.Reference] = rec
	if err := s.save(all); err != nil {
		return store.Failure("write gate-pass file", err)
	}
	return nil
}

// FetchByReference returns the record, store.ErrNotFound for an unknown
// reference, or a StorageError if the file cannot be read. An unreadable
// file is never reported as "not found".
func (s *Store) FetchByReference(ctx context.Context, ref string) (*model.GatePassRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return nil, store.Failure("read gate-pass file", err)
	}
	rec, ok := all[ref]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

// UpdateSignatures applies the completion step. The mutex makes the
// read-modify-write atomic within this process; the rename makes it atomic on
// disk.
func (s *Store) UpdateSignatures(ctx context.Context, ref string, c model.Completion) (*model.GatePassRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return nil, store.Failure("read gate-pass file", err)
	}
	rec, ok := all[ref]
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
	if err := s.save(all); err != nil {
		return nil, store.Failure("write gate-pass file", err)
	}
	return rec, nil
}

func (s *Store) load() (map[string]*model.GatePassRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]*model.GatePassRecord), nil
		}
		return nil, err
	}
	all := make(map[string]*model.GatePassRecord)
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	return all, nil
}

func (s *Store) save(all map[string]*model.GatePassRecord) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".gatepass-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
