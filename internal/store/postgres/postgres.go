// Package postgres implements the gate-pass store on a pgx connection pool.
// It is the backend of choice when more than one office writes records: the
// primary key on reference turns colliding creates into a clean conflict, and
// the completion step is a single conditional UPDATE, so the status check and
// the multi-field write cannot interleave with a concurrent completion.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dispatchworks/gatepass/internal/model"
	"github.com/dispatchworks/gatepass/internal/store"
)

// uniqueViolation is the Postgres error code for a duplicate primary key.
const uniqueViolation = "23505"

// Store is the Postgres backend.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store over an established pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts the pending record. A primary-key conflict surfaces as
// store.ErrDuplicateReference so the service can regenerate the reference.
func (s *Store) Create(ctx context.Context, rec *model.GatePassRecord) error {
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return store.Failure("encode items", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO gate_passes (
			reference, requested_by, send_to, purpose, return_date, dispatch_type,
			vehicle_number, items, certified_signature, authorized_signature,
			received_signature, status, created_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, rec.Reference, rec.RequestedBy, rec.SendTo, rec.Purpose, rec.ReturnDate,
		rec.DispatchType, rec.VehicleNumber, items, rec.CertifiedSignature,
		rec.AuthorizedSignature, rec.ReceivedSignature, rec.Status, rec.CreatedAt,
		rec.CompletedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrDuplicateReference
		}
		return store.Failure("insert gate pass", err)
	}
	return nil
}

// FetchByReference returns the record or store.ErrNotFound. Connection-level
// failures come back as a StorageError, never as ErrNotFound.
func (s *Store) FetchByReference(ctx context.Context, ref string) (*model.GatePassRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT reference, requested_by, send_to, purpose, return_date, dispatch_type,
			vehicle_number, items, certified_signature, authorized_signature,
			received_signature, status, created_at, completed_at
		FROM gate_passes WHERE reference=$1
	`, ref)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Failure("select gate pass", err)
	}
	return rec, nil
}

// UpdateSignatures completes the record with one conditional UPDATE guarded
// on status='pending'. When no row is updated a follow-up status probe
// distinguishes an unknown reference from an already-completed pass.
func (s *Store) UpdateSignatures(ctx context.Context, ref string, c model.Completion) (*model.GatePassRecord, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE gate_passes
		SET authorized_signature=$1,
			received_signature=$2,
			vehicle_number=$3,
			status=$4,
			completed_at=now()
		WHERE reference=$5 AND status=$6
		RETURNING reference, requested_by, send_to, purpose, return_date, dispatch_type,
			vehicle_number, items, certified_signature, authorized_signature,
			received_signature, status, created_at, completed_at
	`, c.AuthorizedSignature, c.ReceivedSignature, c.VehicleNumber,
		model.StatusCompleted, ref, model.StatusPending)
	rec, err := scanRecord(row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, store.Failure("update signatures", err)
	}
	var status string
	probe := s.pool.QueryRow(ctx, `SELECT status FROM gate_passes WHERE reference=$1`, ref)
	if err := probe.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Failure("probe gate pass status", err)
	}
	return nil, store.ErrAlreadyCompleted
}

func scanRecord(row pgx.Row) (*model.GatePassRecord, error) {
	var (
		rec         model.GatePassRecord
		items       []byte
		completedAt sql.NullTime
	)
	if err := row.Scan(&rec.Reference, &rec.RequestedBy, &rec.SendTo, &rec.Purpose,
		&rec.ReturnDate, &rec.DispatchType, &rec.VehicleNumber, &items,
		&rec.CertifiedSignature, &rec.AuthorizedSignature, &rec.ReceivedSignature,
		&rec.Status, &rec.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &rec.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	return &rec, nil
}
