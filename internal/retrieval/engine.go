// Package retrieval implements the knowledge retrieval engine: it owns the
// vector index, the response cache and the consistency protocol between
// index and document store, and orchestrates query handling from
// normalization through ranking.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"islamic-qa-platform/internal/ai"
	"islamic-qa-platform/internal/cache"
	"islamic-qa-platform/internal/config"
	"islamic-qa-platform/internal/index"
	"islamic-qa-platform/internal/logger"
	"islamic-qa-platform/internal/store"
	"islamic-qa-platform/internal/telemetry"
	"islamic-qa-platform/internal/textnorm"
	"islamic-qa-platform/models"
	"islamic-qa-platform/utils"
)

// ErrIndexUnavailable means the vector index could not serve the query.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// Options holds the tunable retrieval parameters. Thresholds apply to the
// display similarity in [0,1].
type Options struct {
	SimilarityFloor     float64
	HighConfidenceMin   float64
	MediumConfidenceMin float64
	DefaultTopK         int
	MaxTopK             int
	OverFetchFactor     int
	EmbedTimeout        time.Duration
	IndexQueryTimeout   time.Duration
}

func DefaultOptions() Options {
	return Options{
		SimilarityFloor:     0.30,
		HighConfidenceMin:   0.80,
		MediumConfidenceMin: 0.55,
		DefaultTopK:         5,
		MaxTopK:             20,
		OverFetchFactor:     3,
		EmbedTimeout:        10 * time.Second,
		IndexQueryTimeout:   500 * time.Millisecond,
	}
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SimilarityFloor:     cfg.SimilarityFloor,
		HighConfidenceMin:   cfg.HighConfidenceMin,
		MediumConfidenceMin: cfg.MediumConfidenceMin,
		DefaultTopK:         cfg.DefaultTopK,
		MaxTopK:             cfg.MaxTopK,
		OverFetchFactor:     cfg.OverFetchFactor,
		EmbedTimeout:        time.Duration(cfg.EmbedTimeoutSeconds) * time.Second,
		IndexQueryTimeout:   time.Duration(cfg.IndexQueryTimeoutMS) * time.Millisecond,
	}
}

// Engine is the retrieval coordinator. All collaborators are injected at
// construction; the engine owns no global state and is safe for concurrent
// use.
type Engine struct {
	embedder ai.Embedder
	idx      *index.Index
	docs     store.DocumentStore
	cache    *cache.ResponseCache
	lexical  *lexicalIndex
	opts     Options
	metrics  *telemetry.Metrics

	rebuildRunning atomic.Bool
}

// New wires the engine. metrics may be nil.
func New(embedder ai.Embedder, idx *index.Index, docs store.DocumentStore, respCache *cache.ResponseCache, opts Options, metrics *telemetry.Metrics) *Engine {
	return &Engine{
		embedder: embedder,
		idx:      idx,
		docs:     docs,
		cache:    respCache,
		lexical:  newLexicalIndex(),
		opts:     opts,
		metrics:  metrics,
	}
}

// Retrieve answers a free-text query with a ranked, attributed, confidence
// scored result set. Stage failures degrade the result rather than failing
// the call; only caller cancellation is surfaced as an error.
func (e *Engine) Retrieve(ctx context.Context, query, language string, k int, filters map[string]string) (*models.RankedResult, error) {
	started := time.Now()

	if k <= 0 {
		k = e.opts.DefaultTopK
	}
	if k > e.opts.MaxTopK {
		k = e.opts.MaxTopK
	}
	if language == "" || language == models.LanguageAuto {
		language = textnorm.DetectLanguage(query)
	}

	normalized := textnorm.Normalize(query, language)
	if normalized == "" {
		return e.emptyResult(query, language), nil
	}

	fingerprint := utils.QueryFingerprint(normalized, language, k, filters)
	if cached, ok := e.cache.Get(ctx, fingerprint); ok {
		e.recordQuery(language, true, started)
		return cached, nil
	}

	// Embedding is the expensive stage: check for abandonment first.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embedCtx, cancel := context.WithTimeout(ctx, e.opts.EmbedTimeout)
	vector, embedErr := e.embedder.Embed(embedCtx, normalized)
	cancel()

	var result *models.RankedResult
	switch {
	case embedErr == nil:
		semantic, err := e.semanticSearch(ctx, vector, language, k, filters)
		if err != nil {
			logger.Error("semantic search failed", "error", err)
			result = e.degradedEmpty(query, language, models.DegradedIndexUnavailable)
		} else {
			result = semantic
		}
	case ctx.Err() != nil:
		// Caller abandoned the query; nothing useful to return.
		return nil, ctx.Err()
	default:
		reason := models.DegradedModelUnavailable
		if errors.Is(embedErr, context.DeadlineExceeded) {
			reason = models.DegradedEmbedTimeout
		}
		if e.metrics != nil {
			e.metrics.RecordEmbeddingFailure("query")
		}
		logger.Warn("embedding failed, using lexical fallback", "reason", reason, "error", embedErr)
		result = e.lexicalSearch(ctx, normalized, query, language, k, filters, reason)
	}

	result.Query = query
	result.Language = language

	// Fire-and-forget cache write; the response never waits on it.
	go func(fp string, r *models.RankedResult) {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		e.cache.Put(cacheCtx, fp, r)
	}(fingerprint, result)

	e.recordQuery(language, false, started)
	if result.Degraded && e.metrics != nil {
		e.metrics.RecordDegradedQuery(result.DegradedBy)
	}
	return result, nil
}

// semanticSearch runs the primary path: index query, store resolution,
// scoring and ranking.
func (e *Engine) semanticSearch(ctx context.Context, vector []float32, language string, k int, filters map[string]string) (*models.RankedResult, error) {
	queryCtx, cancel := context.WithTimeout(ctx, e.opts.IndexQueryTimeout)
	defer cancel()

	// Over-fetch so stale and deactivated documents can be filtered without
	// a second index round trip.
	hits, err := e.idx.Query(queryCtx, vector, k*e.opts.OverFetchFactor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	matches, err := e.resolveHits(ctx, hits, language, filters, false)
	if err != nil {
		return nil, err
	}
	if len(matches) > k {
		matches = matches[:k]
	}

	return &models.RankedResult{
		Matches:    matches,
		ComputedAt: time.Now().UTC(),
	}, nil
}

// lexicalSearch is the degraded path used when embedding is unavailable.
// Confidence is capped below high regardless of overlap score.
func (e *Engine) lexicalSearch(ctx context.Context, normalized, query, language string, k int, filters map[string]string, reason string) *models.RankedResult {
	hits := e.lexical.search(normalized, language, k*e.opts.OverFetchFactor)

	indexHits := make([]index.Hit, len(hits))
	for i, h := range hits {
		indexHits[i] = index.Hit{ID: h.id, Similarity: h.score}
	}

	matches, err := e.resolveHits(ctx, indexHits, language, filters, true)
	if err != nil {
		logger.Error("lexical resolution failed", "error", err)
		return e.degradedEmpty(query, language, reason)
	}
	if len(matches) > k {
		matches = matches[:k]
	}

	return &models.RankedResult{
		Matches:    matches,
		Degraded:   true,
		DegradedBy: reason,
		ComputedAt: time.Now().UTC(),
	}
}

// resolveHits maps index hits to documents, drops unresolvable, inactive,
// stale and off-language candidates, applies the similarity floor, and
// ranks with deterministic tie-breaking. If fewer than requested survive,
// the shortfall is returned as is; padding with sub-floor matches is worse
// than a short answer.
func (e *Engine) resolveHits(ctx context.Context, hits []index.Hit, language string, filters map[string]string, lexical bool) ([]models.Match, error) {
	if len(hits) == 0 {
		return []models.Match{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}

	resolved, err := e.docs.GetBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve candidates: %w", err)
	}

	currentVersion := e.embedder.Version()
	matches := make([]models.Match, 0, len(hits))
	for _, hit := range hits {
		doc, ok := resolved[hit.ID]
		if !ok {
			// Stale index reference; filtered, logged, never surfaced.
			logger.Debug("dropping unresolvable index entry", "document_id", hit.ID)
			continue
		}
		if !doc.IsActive || doc.Language != language {
			continue
		}
		if !lexical && doc.Stale(currentVersion) {
			continue
		}
		if category, ok := filters["category"]; ok && doc.Category != category {
			continue
		}

		// Lexical overlap scores live on a different scale than cosine
		// similarity; their own minimum is applied at search time.
		similarity := displaySimilarity(hit.Similarity)
		if !lexical && similarity < e.opts.SimilarityFloor {
			continue
		}

		confidence := e.confidenceLabel(similarity)
		if lexical && confidence == models.ConfidenceHigh {
			confidence = models.ConfidenceMedium
		}

		matches = append(matches, models.Match{
			Document:   doc,
			Similarity: similarity,
			Confidence: confidence,
		})
	}

	sortMatches(matches)
	return matches, nil
}

// sortMatches orders by similarity, then verified flag, then source
// priority, then recency, then id. Fully deterministic for a fixed corpus.
func sortMatches(matches []models.Match) {
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Document.IsVerified != b.Document.IsVerified {
			return a.Document.IsVerified
		}
		if a.Document.SourcePriority != b.Document.SourcePriority {
			return a.Document.SourcePriority > b.Document.SourcePriority
		}
		if !a.Document.UpdatedAt.Equal(b.Document.UpdatedAt) {
			return a.Document.UpdatedAt.After(b.Document.UpdatedAt)
		}
		return a.Document.ID < b.Document.ID
	})
}

// displaySimilarity clamps raw cosine similarity into [0,1] for display and
// thresholding. Negative cosine carries no retrieval signal here.
func displaySimilarity(cos float64) float64 {
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}

func (e *Engine) confidenceLabel(similarity float64) models.ConfidenceLabel {
	switch {
	case similarity >= e.opts.HighConfidenceMin:
		return models.ConfidenceHigh
	case similarity >= e.opts.MediumConfidenceMin:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func (e *Engine) emptyResult(query, language string) *models.RankedResult {
	return &models.RankedResult{
		Query:      query,
		Language:   language,
		Matches:    []models.Match{},
		ComputedAt: time.Now().UTC(),
	}
}

func (e *Engine) degradedEmpty(query, language, reason string) *models.RankedResult {
	return &models.RankedResult{
		Query:      query,
		Language:   language,
		Matches:    []models.Match{},
		Degraded:   true,
		DegradedBy: reason,
		ComputedAt: time.Now().UTC(),
	}
}

func (e *Engine) recordQuery(language string, cacheHit bool, started time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordQuery(language, cacheHit, time.Since(started).Seconds())
	e.metrics.RecordCacheLookup(cacheHit)
}
