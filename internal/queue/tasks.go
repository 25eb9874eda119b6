package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"islamic-qa-platform/internal/index"
	"islamic-qa-platform/internal/logger"
	"islamic-qa-platform/internal/retrieval"
	"islamic-qa-platform/internal/store"
)

const (
	TaskIndexDocument = "index:document"
	TaskRebuildIndex  = "index:rebuild"
)

type IndexDocumentPayload struct {
	DocumentID string `json:"document_id"`
}

type RebuildIndexPayload struct {
	RequestedBy string `json:"requested_by"`
}

// Task creators
func NewIndexDocumentTask(documentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(IndexDocumentPayload{DocumentID: documentID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexDocument,
		payload,
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("default"),
	), nil
}

func NewRebuildIndexTask(requestedBy string) (*asynq.Task, error) {
	payload, err := json.Marshal(RebuildIndexPayload{RequestedBy: requestedBy})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskRebuildIndex,
		payload,
		asynq.MaxRetry(1),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// Task handlers
type TaskProcessor struct {
	engine *retrieval.Engine
	docs   store.DocumentStore
}

func NewTaskProcessor(engine *retrieval.Engine, docs store.DocumentStore) *TaskProcessor {
	return &TaskProcessor{
		engine: engine,
		docs:   docs,
	}
}

// ProcessIndexDocument embeds and indexes one stored document.
func (p *TaskProcessor) ProcessIndexDocument(ctx context.Context, t *asynq.Task) error {
	var payload IndexDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	doc, err := p.docs.Get(ctx, payload.DocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted between enqueue and processing; nothing to do.
			logger.Warn("indexing task for missing document", "document_id", payload.DocumentID)
			return nil
		}
		return err
	}
	if !doc.IsActive {
		p.engine.RemoveDocument(doc.ID)
		return nil
	}

	if err := p.engine.IndexDocument(ctx, doc); err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID, err)
	}
	logger.Info("document indexed", "document_id", doc.ID, "language", doc.Language)
	return nil
}

// ProcessRebuildIndex runs a full re-embed and atomic index swap.
func (p *TaskProcessor) ProcessRebuildIndex(ctx context.Context, t *asynq.Task) error {
	var payload RebuildIndexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("starting index rebuild", "requested_by", payload.RequestedBy)

	if err := p.engine.RebuildIndex(ctx); err != nil {
		if errors.Is(err, index.ErrRebuildInProgress) {
			// Another rebuild is underway; this one is redundant.
			logger.Warn("rebuild skipped, another rebuild in flight")
			return nil
		}
		return fmt.Errorf("rebuild index: %w", err)
	}
	return nil
}
