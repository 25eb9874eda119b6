// Package store is the read/write facade over the relational document
// storage. The retrieval engine only ever touches documents through this
// narrow contract, which keeps the vector index free of storage concerns.
package store

import (
	"context"
	"errors"
	"time"

	"islamic-qa-platform/models"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate document")
)

// DocumentStore maps document ids to full records and back. GetBatch omits
// missing ids silently; a stale index entry must degrade, never crash.
// MarkEmbedded is the sole writer of embedding_version.
type DocumentStore interface {
	Get(ctx context.Context, id string) (*models.Document, error)
	GetBatch(ctx context.Context, ids []string) (map[string]*models.Document, error)
	Insert(ctx context.Context, doc *models.Document) error
	Update(ctx context.Context, doc *models.Document) error
	FindByContentHash(ctx context.Context, hash string) (*models.Document, error)
	ListActive(ctx context.Context) ([]*models.Document, error)
	ListChangedSince(ctx context.Context, since time.Time) ([]*models.Document, error)
	MarkEmbedded(ctx context.Context, id, version string) error
	Deactivate(ctx context.Context, id string) error
}
