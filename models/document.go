package models

import "time"

// Language codes supported by the platform.
const (
	LanguageArabic  = "ar"
	LanguageEnglish = "en"
	LanguageAuto    = "auto"
)

// Document is one verified question/answer pair, the atomic retrievable unit.
// QuestionText and AnswerText keep their as-ingested form; normalized text is
// derived on demand and never stored as the source of truth.
type Document struct {
	ID             string `bson:"_id" json:"id"`
	Language       string `bson:"language" json:"language"`
	QuestionText   string `bson:"question_text" json:"question_text"`
	AnswerText     string `bson:"answer_text" json:"answer_text"`
	SourceName     string `bson:"source_name" json:"source_name"`
	SourceURL      string `bson:"source_url,omitempty" json:"source_url,omitempty"`
	ScholarName    string `bson:"scholar_name,omitempty" json:"scholar_name,omitempty"`
	Category       string `bson:"category,omitempty" json:"category,omitempty"`
	ContentHash    string `bson:"content_hash" json:"content_hash"`
	SourcePriority int    `bson:"source_priority" json:"source_priority"`
	IsVerified     bool   `bson:"is_verified" json:"is_verified"`
	IsActive       bool   `bson:"is_active" json:"is_active"`
	// EmbeddingVersion identifies the model/config that produced the vector
	// currently held in the index for this document. A mismatch with the
	// provider's current version marks the document stale.
	EmbeddingVersion string    `bson:"embedding_version,omitempty" json:"embedding_version,omitempty"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
}

// Stale reports whether the stored vector was produced by a different
// embedding version than the one given.
func (d *Document) Stale(currentVersion string) bool {
	return d.EmbeddingVersion != currentVersion
}
