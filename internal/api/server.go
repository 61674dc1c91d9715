package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchworks/gatepass/internal/artifact"
	"github.com/dispatchworks/gatepass/internal/config"
	"github.com/dispatchworks/gatepass/internal/gatepass"
	"github.com/dispatchworks/gatepass/internal/model"
	"github.com/dispatchworks/gatepass/internal/signing"
	"github.com/dispatchworks/gatepass/internal/store"
)

// Server exposes HTTP endpoints for creating, fetching and signing gate
// passes, plus document downloads for the rendered copies.
type Server struct {
	cfg       *config.Config
	svc       *gatepass.Service
	artifacts *artifact.Store
	signer    *signing.Signer
	server    *http.Server
	once      sync.Once
}

// New constructs a Server. artifacts may be nil when no artifact storage is
// configured; the document endpoints then answer 404.
func New(cfg *config.Config, svc *gatepass.Service, artifacts *artifact.Store, signer *signing.Signer) *Server {
	return &Server{
		cfg:       cfg,
		svc:       svc,
		artifacts: artifacts,
		signer:    signer,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: corsMiddleware(loggingMiddleware(s.Routes())),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	log.Printf("api listening on %s", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Routes builds the route table. Exposed separately so tests can drive the
// handlers through httptest without binding a socket.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/gate-passes", s.handleGatePasses)
	mux.HandleFunc("/gate-passes/", s.handleGatePassRoute)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGatePasses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreate(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGatePassRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/gate-passes/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	ref := parts[0]
	if len(parts) == 1 {
		s.handleFetch(w, r, ref)
		return
	}
	switch parts[1] {
	case "signatures":
		s.handleSignatures(w, r, ref)
	case "document":
		s.handleDocument(w, r, ref)
	case "document-link":
		s.handleDocumentLink(w, r, ref)
	case "document-url":
		s.handleDocumentURL(w, r, ref)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var draft model.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	rec, err := s.svc.Create(r.Context(), draft)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request, ref string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rec, err := s.svc.Fetch(r.Context(), ref)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSignatures(w http.ResponseWriter, r *http.Request, ref string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var completion model.Completion
	if err := json.NewDecoder(r.Body).Decode(&completion); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	rec, err := s.svc.Complete(r.Context(), ref, completion)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// handleDocumentLink mints an HMAC-signed relative link for the rendered
// document, valid for the configured TTL.
func (s *Server) handleDocumentLink(w http.ResponseWriter, r *http.Request, ref string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rec, err := s.svc.Fetch(r.Context(), ref)
	if err != nil {
		respondError(w, err)
		return
	}
	link := "/gate-passes/" + rec.Reference + "/document?" +
		s.signer.Query(rec.Reference, time.Now(), s.cfg.SignedURLTTL)
	respondJSON(w, http.StatusOK, map[string]string{"link": link})
}

// handleDocument streams the rendered PDF for callers holding a valid signed
// link.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request, ref string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	if !s.signer.Validate(ref, q.Get("expires"), q.Get("sig"), time.Now()) {
		http.Error(w, "invalid or expired link", http.StatusForbidden)
		return
	}
	if s.artifacts == nil {
		http.Error(w, "document storage not configured", http.StatusNotFound)
		return
	}
	rec, err := s.svc.Fetch(r.Context(), ref)
	if err != nil {
		respondError(w, err)
		return
	}
	data, err := s.artifacts.Download(r.Context(), artifact.DocumentKey(rec.Reference, string(rec.Status)))
	if err != nil {
		http.Error(w, "document not rendered yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="gate_pass_`+rec.Reference+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleDocumentURL returns a presigned MinIO URL for the latest rendered
// copy, for deployments where clients can reach the object store directly.
func (s *Server) handleDocumentURL(w http.ResponseWriter, r *http.Request, ref string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.artifacts == nil {
		http.Error(w, "document storage not configured", http.StatusNotFound)
		return
	}
	rec, err := s.svc.Fetch(r.Context(), ref)
	if err != nil {
		respondError(w, err)
		return
	}
	url, err := s.artifacts.PresignDocumentURL(r.Context(),
		artifact.DocumentKey(rec.Reference, string(rec.Status)), s.cfg.SignedURLTTL)
	if err != nil {
		http.Error(w, "failed to generate url", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// respondError maps the service error taxonomy onto HTTP statuses. Storage
// failures are 502s: the caller should not be told "not found" when the
// backend is down.
func respondError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	var serr *store.StorageError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, store.ErrNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "gate pass not found"})
	case errors.Is(err, store.ErrAlreadyCompleted):
		respondJSON(w, http.StatusConflict, map[string]string{"error": "gate pass already completed"})
	case errors.As(err, &serr):
		log.Printf("storage failure: %v", serr)
		respondJSON(w, http.StatusBadGateway, map[string]string{"error": "storage unavailable"})
	default:
		log.Printf("internal error: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s (%s)", reqID, r.Method, r.URL.Path, time.Since(start))
	})
}
