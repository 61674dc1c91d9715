package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dispatchworks/gatepass/internal/config"
	"github.com/dispatchworks/gatepass/internal/gatepass"
	"github.com/dispatchworks/gatepass/internal/model"
	"github.com/dispatchworks/gatepass/internal/reference"
	"github.com/dispatchworks/gatepass/internal/signing"
	"github.com/dispatchworks/gatepass/internal/store/memory"
)

const sigPNG = "data:image/png;base64,iVBORw0KGgo="

func newTestServer() *Server {
	cfg := &config.Config{
		Address:       ":0",
		SigningSecret: []byte("test-secret"),
		SignedURLTTL:  5 * time.Minute,
	}
	svc := gatepass.New(memory.New(), nil)
	return New(cfg, svc, nil, signing.NewSigner(cfg.SigningSecret))
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

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

func TestCreateFetchCompleteFlow(t *testing.T) {
	h := newTestServer().Routes()

	rr := postJSON(t, h, "/gate-passes", validDraft())
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	var created model.GatePassRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if !reference.Valid(created.Reference) {
		t.Fatalf("reference %q malformed", created.Reference)
	}
	if created.Status != model.StatusPending {
		t.Fatalf("status = %q, want pending", created.Status)
	}

	rr = get(h, "/gate-passes/"+created.Reference)
	if rr.Code != http.StatusOK {
		t.Fatalf("fetch status = %d", rr.Code)
	}
	var fetched model.GatePassRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode fetch response: %v", err)
	}
	if len(fetched.Items) != 1 || fetched.Items[0].InvoiceNo != "INV-1" {
		t.Fatalf("items not round-tripped: %+v", fetched.Items)
	}

	rr = postJSON(t, h, "/gate-passes/"+created.Reference+"/signatures", model.Completion{
		AuthorizedSignature: sigPNG,
		ReceivedSignature:   sigPNG,
		VehicleNumber:       "WP-9876",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("signatures status = %d, body %s", rr.Code, rr.Body.String())
	}
	var completed model.GatePassRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &completed); err != nil {
		t.Fatalf("decode signatures response: %v", err)
	}
	if completed.Status != model.StatusCompleted {
		t.Fatalf("status = %q, want completed", completed.Status)
	}
	if completed.CertifiedSignature != sigPNG {
		t.Fatal("certified signature changed during completion")
	}

	// Second completion attempt is rejected with a conflict.
	rr = postJSON(t, h, "/gate-passes/"+created.Reference+"/signatures", model.Completion{
		AuthorizedSignature: sigPNG,
		ReceivedSignature:   sigPNG,
		VehicleNumber:       "WP-9876",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("repeat signatures status = %d, want 409", rr.Code)
	}
}

func TestCreateValidationFailure(t *testing.T) {
	h := newTestServer().Routes()
	d := validDraft()
	d.Items = []model.LineItem{{}}
	rr := postJSON(t, h, "/gate-passes", d)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
}

func TestFetchUnknownReturns404(t *testing.T) {
	h := newTestServer().Routes()
	rr := get(h, "/gate-passes/GP00000000")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestSignaturesValidation(t *testing.T) {
	h := newTestServer().Routes()
	rr := postJSON(t, h, "/gate-passes", validDraft())
	var created model.GatePassRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	rr = postJSON(t, h, "/gate-passes/"+created.Reference+"/signatures", model.Completion{
		AuthorizedSignature: sigPNG,
		ReceivedSignature:   sigPNG,
		VehicleNumber:       "  ",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}

	// Record must still be pending after the rejected attempt.
	rr = get(h, "/gate-passes/"+created.Reference)
	var fetched model.GatePassRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode fetch response: %v", err)
	}
	if fetched.Status != model.StatusPending {
		t.Fatalf("status = %q, want pending", fetched.Status)
	}
}

func TestDocumentRequiresValidSignedLink(t *testing.T) {
	srv := newTestServer()
	h := srv.Routes()
	rr := postJSON(t, h, "/gate-passes", validDraft())
	var created model.GatePassRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	rr = get(h, "/gate-passes/"+created.Reference+"/document?expires=99999999999&sig=bogus")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("forged link status = %d, want 403", rr.Code)
	}

	rr = get(h, "/gate-passes/"+created.Reference+"/document-link")
	if rr.Code != http.StatusOK {
		t.Fatalf("document-link status = %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode link response: %v", err)
	}
	// The minted link passes signature validation; with no artifact store
	// configured the handler then reports the document as unavailable.
	rr = get(h, resp["link"])
	if rr.Code != http.StatusNotFound {
		t.Fatalf("minted link status = %d, want 404 without artifact storage", rr.Code)
	}
}
