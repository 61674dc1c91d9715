// Package store defines the persistence contract for gate-pass records. The
// service depends only on the Store interface; picking Postgres, a flat JSON
// file, or in-memory storage is a configuration decision (see the backends in
// the subpackages).
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dispatchworks/gatepass/internal/model"
)

var (
	// ErrNotFound means the reference has no record. It is deliberately not
	// how backend outages are reported; see StorageError.
	ErrNotFound = errors.New("gate pass not found")

	// ErrAlreadyCompleted is returned by UpdateSignatures when the record has
	// already left the pending state. Completion is one-way and happens once.
	ErrAlreadyCompleted = errors.New("gate pass already completed")

	// ErrDuplicateReference is returned by Create when a record with the same
	// reference exists. The service reacts by regenerating the reference.
	ErrDuplicateReference = errors.New("reference already in use")
)

// StorageError wraps a backend I/O, auth, or connectivity failure. It is a
// hard failure: the record may or may not have been touched, and the caller
// must not confuse it with "no such gate pass".
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Failure wraps err as a StorageError for operation op.
func Failure(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Store is the persistence contract for gate-pass records.
//
// Create persists a fully assembled pending record. The reference must
// already be assigned and CreatedAt stamped. Backends with unique-key
// support report a colliding reference as ErrDuplicateReference.
//
// FetchByReference returns the record or ErrNotFound. A backend failure
// surfaces as a StorageError, never as ErrNotFound: "the database is down"
// and "no such gate pass" are different answers.
//
// UpdateSignatures applies the completion step: it sets the authorized and
// received signatures plus the vehicle number, flips Status to completed and
// stamps CompletedAt, all atomically from a reader's point of view. It
// returns ErrNotFound for an unknown reference and ErrAlreadyCompleted if
// the record is not pending. On success the updated record is returned.
type Store interface {
	Create(ctx context.Context, rec *model.GatePassRecord) error
	FetchByReference(ctx context.Context, ref string) (*model.GatePassRecord, error)
	UpdateSignatures(ctx context.Context, ref string, c model.Completion) (*model.GatePassRecord, error)
}
