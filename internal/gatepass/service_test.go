package gatepass

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dispatchworks/gatepass/internal/model"
	"github.com/dispatchworks/gatepass/internal/queue"
	"github.com/dispatchworks/gatepass/internal/reference"
	"github.com/dispatchworks/gatepass/internal/store"
	"github.com/dispatchworks/gatepass/internal/store/memory"
)

const sigPNG = "data:image/png;base64,iVBORw0KGgo="

func validDraft() model.Draft {
	return model.Draft{
		RequestedBy:        "Jane Doe",
		SendTo:             "Central Stores, Makola",
		Purpose:            "Customer delivery",
		DispatchType:       model.DispatchCreditSale,
		VehicleNumber:      "WP-1234",
		Items: []model.LineItem{
			{Quantity: "5", Description: "Cable reels", TotalValue: "10000", InvoiceNo: "INV-1"},
		},
		CertifiedSignature: sigPNG,
	}
}

func newTestService() (*Service, *memory.Store) {
	st := memory.New()
	svc := New(st, nil)
	return svc, st
}

func TestCreateAssignsReferenceAndPendingStatus(t *testing.T) {
	svc, _ := newTestService()
	rec, err := svc.Create(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !reference.Valid(rec.Reference) {
		t.Errorf("reference %q does not match the GP format", rec.Reference)
	}
	if rec.Status != model.StatusPending {
		t.Errorf("status = %q, want pending", rec.Status)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}
	if rec.CompletedAt != nil {
		t.Error("CompletedAt set at creation")
	}

	// Create followed by Fetch returns the draft plus server-assigned fields.
	got, err := svc.Fetch(context.Background(), rec.Reference)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.RequestedBy != "Jane Doe" || got.SendTo != rec.SendTo || got.CertifiedSignature != sigPNG {
		t.Errorf("fetched record differs from draft: %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0].Description != "Cable reels" {
		t.Errorf("items not preserved: %+v", got.Items)
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.Draft)
	}{
		{"requestedBy", func(d *model.Draft) { d.RequestedBy = "  " }},
		{"sendTo", func(d *model.Draft) { d.SendTo = "" }},
		{"vehicleNumber", func(d *model.Draft) { d.VehicleNumber = "" }},
		{"certifiedSignature", func(d *model.Draft) { d.CertifiedSignature = "" }},
		{"dispatchType", func(d *model.Draft) { d.DispatchType = "Loan" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService()
			d := validDraft()
			tc.mutate(&d)
			_, err := svc.Create(context.Background(), d)
			var verr *model.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Create = %v, want ValidationError", err)
			}
		})
	}
}

func TestCreateRejectsAllBlankItems(t *testing.T) {
	svc, st := newTestService()
	d := validDraft()
	d.Items = []model.LineItem{{}, {Quantity: " ", Description: "\t"}}
	_, err := svc.Create(context.Background(), d)
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Create = %v, want ValidationError", err)
	}
	// Nothing may be persisted on a rejected draft.
	if _, err := st.FetchByReference(context.Background(), "GP00000000"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected empty store, fetch err = %v", err)
	}
}

func TestCreateFiltersBlankRows(t *testing.T) {
	svc, _ := newTestService()
	d := validDraft()
	d.Items = []model.LineItem{
		{Quantity: "1", Description: "Drum", TotalValue: "", InvoiceNo: ""},
		{}, // blank row from the form UI
		{Quantity: "", Description: "", TotalValue: "", InvoiceNo: "INV-9"},
	}
	rec, err := svc.Create(context.Background(), d)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(rec.Items) != 2 {
		t.Fatalf("got %d items, want 2 after filtering", len(rec.Items))
	}
	if rec.Items[0].Description != "Drum" || rec.Items[1].InvoiceNo != "INV-9" {
		t.Errorf("item order not preserved: %+v", rec.Items)
	}
}

func TestFetchUnknownReference(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Fetch(context.Background(), "GP00000000")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Fetch = %v, want ErrNotFound", err)
	}
}

func TestFetchMalformedReference(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Fetch(context.Background(), "gp1234")
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Fetch = %v, want ValidationError", err)
	}
}

func TestCompleteTransitionsToCompleted(t *testing.T) {
	svc, _ := newTestService()
	rec, err := svc.Create(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	done, err := svc.Complete(context.Background(), rec.Reference, model.Completion{
		AuthorizedSignature: sigPNG,
		ReceivedSignature:   sigPNG,
		VehicleNumber:       "WP-9876",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != model.StatusCompleted {
		t.Errorf("status = %q, want completed", done.Status)
	}
	if done.AuthorizedSignature != sigPNG || done.ReceivedSignature != sigPNG {
		t.Error("signatures not set")
	}
	if done.VehicleNumber != "WP-9876" {
		t.Errorf("vehicleNumber = %q", done.VehicleNumber)
	}
	if done.CertifiedSignature != sigPNG {
		t.Error("certified signature must not change at completion")
	}
	if done.CompletedAt == nil {
		t.Error("CompletedAt not stamped")
	}
}

func TestCompleteRejectsBlankInputs(t *testing.T) {
	svc, _ := newTestService()
	rec, err := svc.Create(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = svc.Complete(context.Background(), rec.Reference, model.Completion{
		AuthorizedSignature: sigPNG,
		ReceivedSignature:   sigPNG,
		VehicleNumber:       "   ",
	})
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Complete = %v, want ValidationError", err)
	}
	// The record must remain pending after a rejected completion.
	got, err := svc.Fetch(context.Background(), rec.Reference)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.Status != model.StatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
}

func TestCompleteUnknownReference(t *testing.T) {
	svc, st := newTestService()
	_, err := svc.Complete(context.Background(), "GPDEADBEEF", model.Completion{
		AuthorizedSignature: sigPNG,
		ReceivedSignature:   sigPNG,
		VehicleNumber:       "WP-1",
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Complete = %v, want ErrNotFound", err)
	}
	// A failed completion must not create a record.
	if _, err := st.FetchByReference(context.Background(), "GPDEADBEEF"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("record appeared out of nowhere: %v", err)
	}
}

func TestCompleteTwiceRejected(t *testing.T) {
	svc, _ := newTestService()
	rec, err := svc.Create(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	c := model.Completion{AuthorizedSignature: sigPNG, ReceivedSignature: sigPNG, VehicleNumber: "WP-1"}
	if _, err := svc.Complete(context.Background(), rec.Reference, c); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	_, err = svc.Complete(context.Background(), rec.Reference, c)
	if !errors.Is(err, store.ErrAlreadyCompleted) {
		t.Fatalf("second Complete = %v, want ErrAlreadyCompleted", err)
	}
}

// collideOnce wraps a store and reports a duplicate reference on the first
// insert, exercising the regenerate-on-collision path.
type collideOnce struct {
	store.Store
	collided bool
	refs     []string
}

func (c *collideOnce) Create(ctx context.Context, rec *model.GatePassRecord) error {
	c.refs = append(c.refs, rec.Reference)
	if !c.collided {
		c.collided = true
		return store.ErrDuplicateReference
	}
	return c.Store.Create(ctx, rec)
}

func TestCreateRetriesOnReferenceCollision(t *testing.T) {
	st := &collideOnce{Store: memory.New()}
	svc := New(st, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 14, 9, 26, 53, 0, time.UTC) }

	rec, err := svc.Create(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(st.refs) != 2 {
		t.Fatalf("expected 2 insert attempts, got %d", len(st.refs))
	}
	if st.refs[0] == st.refs[1] {
		t.Fatal("retry reused the colliding reference")
	}
	if rec.Reference != st.refs[1] {
		t.Fatalf("returned reference %q, want the retried %q", rec.Reference, st.refs[1])
	}
}

// recordingQueue captures enqueued render jobs.
type recordingQueue struct {
	payloads []queue.RenderPayload
}

func (r *recordingQueue) EnqueueRender(ctx context.Context, p queue.RenderPayload) error {
	r.payloads = append(r.payloads, p)
	return nil
}

func TestRenderEnqueuedAtBothStages(t *testing.T) {
	rq := &recordingQueue{}
	svc := New(memory.New(), rq)
	rec, err := svc.Create(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Complete(context.Background(), rec.Reference, model.Completion{
		AuthorizedSignature: sigPNG,
		ReceivedSignature:   sigPNG,
		VehicleNumber:       "WP-1",
	}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(rq.payloads) != 2 {
		t.Fatalf("got %d render jobs, want 2", len(rq.payloads))
	}
	if rq.payloads[0].Stage != "pending" || rq.payloads[1].Stage != "completed" {
		t.Errorf("stages = %q, %q", rq.payloads[0].Stage, rq.payloads[1].Stage)
	}
}
