package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// RenderDocumentTask is scheduled when a gate pass is created and again
	// when it is completed, so a printable copy exists at both stages.
	RenderDocumentTask = "gatepass:render"
)

// RenderPayload tells the worker which record to render. Stage is the record
// status at enqueue time and becomes part of the artifact key, so the pending
// copy is not overwritten by the completed one.
type RenderPayload struct {
	Reference string `json:"reference"`
	Stage     string `json:"stage"`
}

// Client wraps the asynq client behind the one operation the service needs.
type Client struct {
	inner *asynq.Client
}

// NewClient wraps an asynq client.
func NewClient(inner *asynq.Client) *Client {
	return &Client{inner: inner}
}

// Close releases the underlying redis connection.
func (c *Client) Close() error {
	return c.inner.Close()
}

// EnqueueRender enqueues a document render job.
func (c *Client) EnqueueRender(ctx context.Context, payload RenderPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(RenderDocumentTask, data)
	if _, err := c.inner.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue render task: %w", err)
	}
	return nil
}
