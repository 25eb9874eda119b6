package retrieval

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"islamic-qa-platform/internal/ai"
	"islamic-qa-platform/internal/cache"
	"islamic-qa-platform/internal/index"
	"islamic-qa-platform/internal/store"
	"islamic-qa-platform/models"
)

// fakeStore is an in-memory DocumentStore for engine tests.
type fakeStore struct {
	mu     sync.Mutex
	docs   map[string]*models.Document
	byHash map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:   make(map[string]*models.Document),
		byHash: make(map[string]string),
	}
}

func (f *fakeStore) Get(_ context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeStore) GetBatch(_ context.Context, ids []string) (map[string]*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*models.Document, len(ids))
	for _, id := range ids {
		if doc, ok := f.docs[id]; ok {
			cp := *doc
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *fakeStore) Insert(_ context.Context, doc *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byHash[doc.ContentHash]; ok {
		return store.ErrDuplicate
	}
	cp := *doc
	f.docs[doc.ID] = &cp
	f.byHash[doc.ContentHash] = doc.ID
	return nil
}

func (f *fakeStore) Update(_ context.Context, doc *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[doc.ID]; !ok {
		return store.ErrNotFound
	}
	doc.UpdatedAt = time.Now().UTC()
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeStore) FindByContentHash(_ context.Context, hash string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byHash[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *f.docs[id]
	return &cp, nil
}

func (f *fakeStore) ListActive(_ context.Context) ([]*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Document
	for _, doc := range f.docs {
		if doc.IsActive {
			cp := *doc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) ListChangedSince(_ context.Context, since time.Time) ([]*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Document
	for _, doc := range f.docs {
		if !doc.UpdatedAt.Before(since) {
			cp := *doc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkEmbedded(_ context.Context, id, version string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	doc.EmbeddingVersion = version
	return nil
}

func (f *fakeStore) Deactivate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	doc.IsActive = false
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.docs[id]; ok {
		delete(f.byHash, doc.ContentHash)
		delete(f.docs, id)
	}
}

// countingEmbedder wraps another embedder, counting calls and optionally
// failing on demand to simulate a down model backend.
type countingEmbedder struct {
	inner ai.Embedder
	calls atomic.Int64
	fail  atomic.Bool
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.fail.Load() {
		return nil, ai.ErrModelUnavailable
	}
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := c.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (c *countingEmbedder) Dimension() int  { return c.inner.Dimension() }
func (c *countingEmbedder) Version() string { return c.inner.Version() }

// scriptedEmbedder returns canned vectors keyed by normalized text, giving
// tests exact control over similarity scores.
type scriptedEmbedder struct {
	dim     int
	vectors map[string][]float32
	version string
}

func (s *scriptedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if vec, ok := s.vectors[text]; ok {
		return vec, nil
	}
	// Unknown text maps to a vector orthogonal to everything scripted.
	v := make([]float32, s.dim)
	v[s.dim-1] = 1
	return v, nil
}

func (s *scriptedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = s.Embed(ctx, t)
	}
	return out, nil
}

func (s *scriptedEmbedder) Dimension() int { return s.dim }

func (s *scriptedEmbedder) Version() string {
	if s.version == "" {
		return "test/scripted-v1"
	}
	return s.version
}

func newTestEngine(embedder ai.Embedder) (*Engine, *fakeStore) {
	docs := newFakeStore()
	idx := index.New(embedder.Dimension())
	respCache := cache.NewResponseCache(nil, time.Minute, 128)
	eng := New(embedder, idx, docs, respCache, DefaultOptions(), nil)
	return eng, docs
}

func question(lang, q, a, sourceName string) *models.Document {
	return &models.Document{
		Language:     lang,
		QuestionText: q,
		AnswerText:   a,
		SourceName:   sourceName,
	}
}
