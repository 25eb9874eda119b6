package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"islamic-qa-platform/internal/index"
	"islamic-qa-platform/internal/logger"
	"islamic-qa-platform/internal/store"
	"islamic-qa-platform/internal/textnorm"
	"islamic-qa-platform/models"
	"islamic-qa-platform/utils"
)

// Ingest accepts one normalized Q&A record from the ingestion pipeline.
// Outcomes (accepted, duplicate, rejected) are reported synchronously;
// only infrastructure failures return an error. Re-submitting an unchanged
// document is a no-op beyond the duplicate outcome.
func (e *Engine) Ingest(ctx context.Context, doc *models.Document) (*models.IngestOutcome, error) {
	if reason := validateDocument(doc); reason != "" {
		e.recordIngestion(models.IngestRejected)
		return &models.IngestOutcome{Status: models.IngestRejected, Reason: reason}, nil
	}

	if doc.Language == "" || doc.Language == models.LanguageAuto {
		doc.Language = textnorm.DetectLanguage(doc.QuestionText)
	}

	normalized := textnorm.Normalize(doc.QuestionText, doc.Language)
	if normalized == "" {
		e.recordIngestion(models.IngestRejected)
		return &models.IngestOutcome{Status: models.IngestRejected, Reason: "question normalizes to empty text"}, nil
	}
	doc.ContentHash = utils.ContentHash(normalized)

	existing, err := e.docs.FindByContentHash(ctx, doc.ContentHash)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	if existing != nil {
		return e.ingestExisting(ctx, existing, doc)
	}

	now := time.Now().UTC()
	doc.ID = uuid.NewString()
	doc.IsActive = true
	doc.EmbeddingVersion = ""
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if err := e.docs.Insert(ctx, doc); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Lost an insert race to the same content hash.
			winner, lookupErr := e.docs.FindByContentHash(ctx, doc.ContentHash)
			if lookupErr != nil {
				return nil, fmt.Errorf("post-race lookup: %w", lookupErr)
			}
			e.recordIngestion(models.IngestDuplicate)
			return &models.IngestOutcome{Status: models.IngestDuplicate, ExistingID: winner.ID}, nil
		}
		return nil, fmt.Errorf("store document: %w", err)
	}

	e.indexBestEffort(ctx, doc)
	e.recordIngestion(models.IngestAccepted)
	return &models.IngestOutcome{Status: models.IngestAccepted, DocumentID: doc.ID}, nil
}

// ingestExisting handles re-ingestion of a question already known by
// content hash: an unchanged answer is a duplicate, an updated answer
// mutates the record and marks it for re-embedding.
func (e *Engine) ingestExisting(ctx context.Context, existing *models.Document, incoming *models.Document) (*models.IngestOutcome, error) {
	if existing.AnswerText == incoming.AnswerText {
		e.recordIngestion(models.IngestDuplicate)
		return &models.IngestOutcome{Status: models.IngestDuplicate, ExistingID: existing.ID}, nil
	}

	existing.AnswerText = incoming.AnswerText
	existing.SourceName = incoming.SourceName
	existing.SourceURL = incoming.SourceURL
	existing.ScholarName = incoming.ScholarName
	existing.Category = incoming.Category
	existing.IsVerified = incoming.IsVerified
	existing.SourcePriority = incoming.SourcePriority
	existing.EmbeddingVersion = "" // stale until re-embedded

	if err := e.docs.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("update document %s: %w", existing.ID, err)
	}

	e.indexBestEffort(ctx, existing)
	e.recordIngestion(models.IngestAccepted)
	return &models.IngestOutcome{Status: models.IngestAccepted, DocumentID: existing.ID}, nil
}

func validateDocument(doc *models.Document) string {
	switch {
	case doc == nil:
		return "missing document"
	case strings.TrimSpace(doc.QuestionText) == "":
		return "question_text is required"
	case strings.TrimSpace(doc.AnswerText) == "":
		return "answer_text is required"
	case strings.TrimSpace(doc.SourceName) == "":
		return "source_name is required; answers are never stored without attribution"
	case doc.Language != "" && doc.Language != models.LanguageAuto &&
		doc.Language != models.LanguageArabic && doc.Language != models.LanguageEnglish:
		return fmt.Sprintf("unsupported language %q", doc.Language)
	}
	return ""
}

// IndexDocument normalizes, embeds and upserts one document into the vector
// and lexical indexes, then records the embedding version in the store.
// Re-processing an unchanged document computes the same vector and upserts
// idempotently.
func (e *Engine) IndexDocument(ctx context.Context, doc *models.Document) error {
	normalized := textnorm.Normalize(doc.QuestionText, doc.Language)

	embedCtx, cancel := context.WithTimeout(ctx, e.opts.EmbedTimeout)
	vector, err := e.embedder.Embed(embedCtx, normalized)
	cancel()
	if err != nil {
		return fmt.Errorf("embed document %s: %w", doc.ID, err)
	}

	if err := e.idx.Upsert(doc.ID, vector); err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID, err)
	}
	e.lexical.add(doc.ID, normalized, doc.Language)

	if err := e.docs.MarkEmbedded(ctx, doc.ID, e.embedder.Version()); err != nil {
		return fmt.Errorf("mark embedded %s: %w", doc.ID, err)
	}
	doc.EmbeddingVersion = e.embedder.Version()
	return nil
}

// RemoveDocument drops a document from both indexes. The store record is
// left in place; deactivation is a flag, never removal.
func (e *Engine) RemoveDocument(id string) {
	e.idx.Remove(id)
	e.lexical.remove(id)
}

// indexBestEffort tries to index synchronously so fresh answers are
// retrievable immediately. A failed embedding leaves the document stored
// but stale; the periodic reindex sweep picks it up.
func (e *Engine) indexBestEffort(ctx context.Context, doc *models.Document) {
	if err := e.IndexDocument(ctx, doc); err != nil {
		if e.metrics != nil {
			e.metrics.RecordEmbeddingFailure("ingest")
		}
		logger.Warn("deferred indexing of ingested document", "document_id", doc.ID, "error", err)
	}
}

// RebuildIndex re-embeds every active document and atomically replaces the
// vector index content. Blocking; callers that need fire-and-forget wrap it
// in a task. Only one rebuild runs at a time.
func (e *Engine) RebuildIndex(ctx context.Context) error {
	if !e.rebuildRunning.CompareAndSwap(false, true) {
		return index.ErrRebuildInProgress
	}
	defer e.rebuildRunning.Store(false)

	var rebuilt []*models.Document
	var normalizedTexts []string

	err := e.idx.Rebuild(func() ([]index.Entry, error) {
		docs, err := e.docs.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("load documents: %w", err)
		}

		texts := make([]string, len(docs))
		for i, doc := range docs {
			texts[i] = textnorm.Normalize(doc.QuestionText, doc.Language)
		}

		vectors, err := e.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed corpus: %w", err)
		}

		entries := make([]index.Entry, len(docs))
		for i, doc := range docs {
			entries[i] = index.Entry{ID: doc.ID, Vector: vectors[i]}
		}
		rebuilt = docs
		normalizedTexts = texts
		return entries, nil
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordIndexRebuild(false)
		}
		return err
	}

	e.lexical.clear()
	for i, doc := range rebuilt {
		e.lexical.add(doc.ID, normalizedTexts[i], doc.Language)
	}

	version := e.embedder.Version()
	for _, doc := range rebuilt {
		if err := e.docs.MarkEmbedded(ctx, doc.ID, version); err != nil {
			logger.Error("failed to record embedding version", "document_id", doc.ID, "error", err)
		}
	}

	// Every cached ranking may now be stale.
	e.cache.Flush(ctx)

	if e.metrics != nil {
		e.metrics.RecordIndexRebuild(true)
	}
	logger.Info("index rebuilt", "documents", len(rebuilt), "embedding_version", version)
	return nil
}

// IncrementalReindex sweeps documents changed since the given time:
// deactivated records leave the indexes, stale or missing ones are
// re-embedded. Returns the number of documents touched.
func (e *Engine) IncrementalReindex(ctx context.Context, since time.Time) (int, error) {
	changed, err := e.docs.ListChangedSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("list changed documents: %w", err)
	}

	version := e.embedder.Version()
	touched := 0
	for _, doc := range changed {
		if !doc.IsActive {
			e.RemoveDocument(doc.ID)
			touched++
			continue
		}
		if doc.Stale(version) || !e.idx.Contains(doc.ID) {
			if err := e.IndexDocument(ctx, doc); err != nil {
				logger.Warn("incremental reindex skipped document", "document_id", doc.ID, "error", err)
				continue
			}
			touched++
		}
	}
	return touched, nil
}

// Health reports the engine-level health snapshot.
func (e *Engine) Health() models.HealthStatus {
	return models.HealthStatus{
		IndexSize:        e.idx.Size(),
		EmbeddingVersion: e.embedder.Version(),
		CacheHitRate:     e.cache.HitRate(),
		LastRebuild:      e.idx.LastRebuild(),
		RebuildRunning:   e.rebuildRunning.Load(),
	}
}

// RebuildRunning reports whether a full rebuild is currently in flight.
func (e *Engine) RebuildRunning() bool {
	return e.rebuildRunning.Load()
}

func (e *Engine) recordIngestion(outcome string) {
	if e.metrics != nil {
		e.metrics.RecordIngestion(outcome)
	}
}
