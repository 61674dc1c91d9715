// Package gatepass holds the record lifecycle: what a valid draft looks like,
// how a reference gets assigned, and the one-way pending -> completed
// transition. Storage and rendering are collaborators behind interfaces.
package gatepass

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dispatchworks/gatepass/internal/model"
	"github.com/dispatchworks/gatepass/internal/queue"
	"github.com/dispatchworks/gatepass/internal/reference"
	"github.com/dispatchworks/gatepass/internal/store"
)

// createAttempts bounds the regenerate-on-collision loop. Each retry bumps
// the timestamp fed to the generator by one second, which changes the digest.
const createAttempts = 3

// RenderEnqueuer schedules a printable copy of a record. A nil enqueuer
// disables rendering, which the server logs loudly at startup.
type RenderEnqueuer interface {
	EnqueueRender(ctx context.Context, payload queue.RenderPayload) error
}

// Service implements the gate-pass operations on top of a Store.
type Service struct {
	store    store.Store
	renderer RenderEnqueuer
	now      func() time.Time
}

// New constructs a Service. renderer may be nil when no render pipeline is
// configured.
func New(st store.Store, renderer RenderEnqueuer) *Service {
	return &Service{store: st, renderer: renderer, now: time.Now}
}

// Create validates the draft, assigns a reference and persists the record as
// pending. The returned record carries the server-assigned fields.
func (s *Service) Create(ctx context.Context, draft model.Draft) (*model.GatePassRecord, error) {
	if err := validateDraft(&draft); err != nil {
		return nil, err
	}
	items := model.FilterItems(draft.Items)
	if len(items) == 0 {
		return nil, &model.ValidationError{Field: "items", Reason: "at least one non-blank item is required"}
	}

	now := s.now().UTC()
	rec := &model.GatePassRecord{
		RequestedBy:        draft.RequestedBy,
		SendTo:             draft.SendTo,
		Purpose:            draft.Purpose,
		ReturnDate:         draft.ReturnDate,
		DispatchType:       draft.DispatchType,
		VehicleNumber:      draft.VehicleNumber,
		Items:              items,
		CertifiedSignature: draft.CertifiedSignature,
		Status:             model.StatusPending,
		CreatedAt:          now,
	}

	// The generator is deterministic per (requester, second), so a duplicate
	// insert means another record hashed to the same prefix. Bumping the
	// timestamp by a second gives a fresh digest without touching CreatedAt.
	ts := now
	for attempt := 0; attempt < createAttempts; attempt++ {
		rec.Reference = reference.Generate(rec.RequestedBy, ts)
		err := s.store.Create(ctx, rec)
		if err == nil {
			s.enqueueRender(ctx, rec)
			return rec, nil
		}
		if !errors.Is(err, store.ErrDuplicateReference) {
			return nil, err
		}
		ts = ts.Add(time.Second)
	}
	return nil, store.Failure("create gate pass", fmt.Errorf("reference collision persisted after %d attempts", createAttempts))
}

// Fetch looks up a record by reference. Malformed references are rejected
// before touching storage.
func (s *Service) Fetch(ctx context.Context, ref string) (*model.GatePassRecord, error) {
	if !reference.Valid(ref) {
		return nil, &model.ValidationError{Field: "reference", Reason: "must be GP followed by 8 uppercase hex characters"}
	}
	return s.store.FetchByReference(ctx, ref)
}

// Complete applies the signature-completion step, moving the record from
// pending to completed. The certified signature fixed at creation is never
// touched.
func (s *Service) Complete(ctx context.Context, ref string, c model.Completion) (*model.GatePassRecord, error) {
	if !reference.Valid(ref) {
		return nil, &model.ValidationError{Field: "reference", Reason: "must be GP followed by 8 uppercase hex characters"}
	}
	if strings.TrimSpace(c.AuthorizedSignature) == "" {
		return nil, &model.ValidationError{Field: "authorizedSignature", Reason: "required"}
	}
	if strings.TrimSpace(c.ReceivedSignature) == "" {
		return nil, &model.ValidationError{Field: "receivedSignature", Reason: "required"}
	}
	if strings.TrimSpace(c.VehicleNumber) == "" {
		return nil, &model.ValidationError{Field: "vehicleNumber", Reason: "required"}
	}
	rec, err := s.store.UpdateSignatures(ctx, ref, c)
	if err != nil {
		return nil, err
	}
	s.enqueueRender(ctx, rec)
	return rec, nil
}

// enqueueRender schedules a printable copy. Rendering is best-effort: the
// record is already durable, so a full redis outage costs the printout, not
// the gate pass.
func (s *Service) enqueueRender(ctx context.Context, rec *model.GatePassRecord) {
	if s.renderer == nil {
		return
	}
	payload := queue.RenderPayload{Reference: rec.Reference, Stage: string(rec.Status)}
	if err := s.renderer.EnqueueRender(ctx, payload); err != nil {
		log.Printf("enqueue render for %s failed: %v", rec.Reference, err)
	}
}

func validateDraft(d *model.Draft) error {
	if strings.TrimSpace(d.RequestedBy) == "" {
		return &model.ValidationError{Field: "requestedBy", Reason: "required"}
	}
	if strings.TrimSpace(d.SendTo) == "" {
		return &model.ValidationError{Field: "sendTo", Reason: "required"}
	}
	if strings.TrimSpace(d.VehicleNumber) == "" {
		return &model.ValidationError{Field: "vehicleNumber", Reason: "required"}
	}
	if !d.DispatchType.Valid() {
		return &model.ValidationError{Field: "dispatchType", Reason: "unknown dispatch type"}
	}
	if strings.TrimSpace(d.CertifiedSignature) == "" {
		return &model.ValidationError{Field: "certifiedSignature", Reason: "required"}
	}
	return nil
}
