package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/dispatchworks/gatepass/internal/artifact"
	pdfutil "github.com/dispatchworks/gatepass/internal/pdf"
	"github.com/dispatchworks/gatepass/internal/queue"
	"github.com/dispatchworks/gatepass/internal/render"
	"github.com/dispatchworks/gatepass/internal/store"
)

// Processor is plugged into the asynq worker loop. It renders gate passes to
// PDF, uploads the artifact, then uploads an extracted-text sidecar so the
// filed documents stay searchable.
type Processor struct {
	store      store.Store
	artifacts  *artifact.Store
	letterhead render.Letterhead
}

// NewProcessor constructs a worker processor.
func NewProcessor(st store.Store, artifacts *artifact.Store, letterhead render.Letterhead) *Processor {
	return &Processor{store: st, artifacts: artifacts, letterhead: letterhead}
}

// Handler registers the render job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.RenderDocumentTask, p.handleRender)
	return mux
}

func (p *Processor) handleRender(ctx context.Context, task *asynq.Task) error {
	var payload queue.RenderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	rec, err := p.store.FetchByReference(ctx, payload.Reference)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The record is gone for good; retrying cannot help.
			log.Printf("render skipped, %s no longer exists", payload.Reference)
			return nil
		}
		return fmt.Errorf("fetch %s: %w", payload.Reference, err)
	}

	// A stale pending-stage job may run after completion; render the record
	// as it is now but file it under the stage the job asked for.
	stage := payload.Stage
	if stage == "" {
		stage = string(rec.Status)
	}
	data, err := render.Document(rec, p.letterhead)
	if err != nil {
		return fmt.Errorf("render %s: %w", payload.Reference, err)
	}
	docKey := artifact.DocumentKey(payload.Reference, stage)
	if err := p.artifacts.UploadDocument(ctx, docKey, data); err != nil {
		return fmt.Errorf("upload %s: %w", docKey, err)
	}

	text, err := pdfutil.ExtractText(data)
	if err != nil {
		// The PDF is already filed; a failed sidecar is not worth a retry
		// loop that would re-upload the document.
		log.Printf("text extraction for %s failed: %v", payload.Reference, err)
		return nil
	}
	if err := p.artifacts.UploadText(ctx, artifact.TextKey(payload.Reference, stage), text); err != nil {
		log.Printf("text sidecar upload for %s failed: %v", payload.Reference, err)
	}
	log.Printf("gate pass %s rendered (%s, %d bytes)", payload.Reference, stage, len(data))
	return nil
}
