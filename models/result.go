package models

import "time"

// ConfidenceLabel is the discretized display bucket derived from similarity.
type ConfidenceLabel string

const (
	ConfidenceHigh   ConfidenceLabel = "high"
	ConfidenceMedium ConfidenceLabel = "medium"
	ConfidenceLow    ConfidenceLabel = "low"
)

// Match is a single scored hit: document reference, similarity rescaled to
// [0,1] for display, and the derived confidence bucket.
type Match struct {
	Document   *Document       `json:"document"`
	Similarity float64         `json:"similarity"`
	Confidence ConfidenceLabel `json:"confidence"`
}

// RankedResult is the ordered answer set for one query. Ephemeral, never
// persisted outside the response cache.
type RankedResult struct {
	Query      string    `json:"query"`
	Language   string    `json:"language"`
	Matches    []Match   `json:"matches"`
	Degraded   bool      `json:"degraded"`
	DegradedBy string    `json:"degraded_by,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
}

// Degradation reason codes reported on a degraded result.
const (
	DegradedModelUnavailable = "model_unavailable"
	DegradedEmbedTimeout     = "embed_timeout"
	DegradedIndexUnavailable = "index_unavailable"
)

// IngestOutcome reports the synchronous result of an ingestion call.
type IngestOutcome struct {
	Status     string `json:"status"` // "accepted", "duplicate" or "rejected"
	DocumentID string `json:"document_id,omitempty"`
	ExistingID string `json:"existing_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

const (
	IngestAccepted  = "accepted"
	IngestDuplicate = "duplicate"
	IngestRejected  = "rejected"
)

// HealthStatus is the engine-level health snapshot exposed to the API layer.
type HealthStatus struct {
	IndexSize        int       `json:"index_size"`
	EmbeddingVersion string    `json:"embedding_version"`
	CacheHitRate     float64   `json:"cache_hit_rate"`
	LastRebuild      time.Time `json:"last_rebuild_timestamp"`
	RebuildRunning   bool      `json:"rebuild_running"`
}
