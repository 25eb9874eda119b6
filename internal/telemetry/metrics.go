package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter    metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	QueryCounter      metric.Int64Counter
	QueryDuration     metric.Float64Histogram
	CacheLookups      metric.Int64Counter
	EmbeddingFailures metric.Int64Counter
	DegradedQueries   metric.Int64Counter
	IndexRebuilds     metric.Int64Counter
	DocumentsIngested metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("islamic-qa-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	queryCounter, err := meter.Int64Counter(
		"retrieval.queries.total",
		metric.WithDescription("Total retrieval queries"),
	)
	if err != nil {
		return nil, err
	}

	queryDuration, err := meter.Float64Histogram(
		"retrieval.query.duration",
		metric.WithDescription("Retrieval query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"retrieval.cache.lookups",
		metric.WithDescription("Response cache lookups by outcome"),
	)
	if err != nil {
		return nil, err
	}

	embeddingFailures, err := meter.Int64Counter(
		"embeddings.failures.total",
		metric.WithDescription("Embedding backend failures"),
	)
	if err != nil {
		return nil, err
	}

	degradedQueries, err := meter.Int64Counter(
		"retrieval.queries.degraded",
		metric.WithDescription("Queries answered through a fallback path"),
	)
	if err != nil {
		return nil, err
	}

	indexRebuilds, err := meter.Int64Counter(
		"index.rebuilds.total",
		metric.WithDescription("Vector index rebuilds"),
	)
	if err != nil {
		return nil, err
	}

	documentsIngested, err := meter.Int64Counter(
		"ingestion.documents.total",
		metric.WithDescription("Ingested documents by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:    requestCounter,
		RequestDuration:   requestDuration,
		QueryCounter:      queryCounter,
		QueryDuration:     queryDuration,
		CacheLookups:      cacheLookups,
		EmbeddingFailures: embeddingFailures,
		DegradedQueries:   degradedQueries,
		IndexRebuilds:     indexRebuilds,
		DocumentsIngested: documentsIngested,
	}, nil
}

// RecordRequest records one HTTP request
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordQuery records one retrieval query
func (m *Metrics) RecordQuery(language string, cacheHit bool, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("query.language", language),
		attribute.Bool("query.cache_hit", cacheHit),
	}

	m.QueryCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.QueryDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordCacheLookup records a response cache lookup outcome
func (m *Metrics) RecordCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheLookups.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("cache.outcome", outcome),
	))
}

// RecordEmbeddingFailure records an embedding backend failure
func (m *Metrics) RecordEmbeddingFailure(stage string) {
	m.EmbeddingFailures.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("embedding.stage", stage),
	))
}

// RecordDegradedQuery records a query served through a fallback path
func (m *Metrics) RecordDegradedQuery(reason string) {
	m.DegradedQueries.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("degraded.reason", reason),
	))
}

// RecordIndexRebuild records a completed or failed index rebuild
func (m *Metrics) RecordIndexRebuild(success bool) {
	m.IndexRebuilds.Add(context.Background(), 1, metric.WithAttributes(
		attribute.Bool("rebuild.success", success),
	))
}

// RecordIngestion records an ingestion outcome
func (m *Metrics) RecordIngestion(outcome string) {
	m.DocumentsIngested.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("ingest.outcome", outcome),
	))
}
