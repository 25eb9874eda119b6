// Package index implements the in-memory vector index used for semantic
// question matching. Search is an exact cosine scan over L2-normalized
// vectors.
package index

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrRebuildInProgress = errors.New("index rebuild already in progress")
	ErrEmptyID           = errors.New("empty document id")
)

// Entry pairs a document id with its embedding vector.
type Entry struct {
	ID     string
	Vector []float32
}

// Hit is one similarity match returned by Query.
type Hit struct {
	ID         string
	Similarity float64 // raw cosine in [-1, 1]
}

type op struct {
	id     string
	vector []float32 // nil means remove
}

// Index holds the live vector set. Readers run concurrently under an RLock;
// upserts take the write lock for a single map write; Rebuild constructs a
// fresh map off-line and swaps it in atomically, replaying any upserts that
// arrived while the build was running.
type Index struct {
	mu        sync.RWMutex
	vectors   map[string][]float32
	dimension int
	lastBuild time.Time

	rebuildMu sync.Mutex // serializes rebuilds; TryLock reports in-flight

	logMu   sync.Mutex
	logging bool
	log     []op
}

func New(dimension int) *Index {
	return &Index{
		vectors:   make(map[string][]float32),
		dimension: dimension,
	}
}

// Upsert inserts or replaces the vector for id. The vector is copied, so
// readers never observe a partially written or later-mutated slice.
func (ix *Index) Upsert(id string, vector []float32) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(vector) != ix.dimension {
		return ErrDimensionMismatch
	}
	v := make([]float32, len(vector))
	copy(v, vector)

	ix.mu.Lock()
	ix.vectors[id] = v
	ix.recordOp(op{id: id, vector: v})
	ix.mu.Unlock()
	return nil
}

// Remove drops id from future query results.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	delete(ix.vectors, id)
	ix.recordOp(op{id: id})
	ix.mu.Unlock()
}

// recordOp captures writes issued during an in-flight rebuild so they can be
// replayed against the replacement map. Caller holds ix.mu.
func (ix *Index) recordOp(o op) {
	ix.logMu.Lock()
	if ix.logging {
		ix.log = append(ix.log, o)
	}
	ix.logMu.Unlock()
}

// Query returns up to k hits sorted by descending similarity, ties broken by
// ascending id for determinism. Vectors are assumed L2-normalized, so the
// dot product is the cosine similarity.
func (ix *Index) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if len(vector) != ix.dimension {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	hits := make([]Hit, 0, len(ix.vectors))
	for id, v := range ix.vectors {
		hits = append(hits, Hit{ID: id, Similarity: dot(v, vector)})
	}
	ix.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Rebuild atomically replaces the entire index content with the entries
// produced by load. Only one rebuild may run at a time; a second caller gets
// ErrRebuildInProgress. Readers see the old index until the swap, never a
// mix. Upserts and removes issued while load runs are applied to the live
// map as usual and replayed onto the new map before the swap, so no write
// lands only on the discarded index.
func (ix *Index) Rebuild(load func() ([]Entry, error)) error {
	if !ix.rebuildMu.TryLock() {
		return ErrRebuildInProgress
	}
	defer ix.rebuildMu.Unlock()

	ix.logMu.Lock()
	ix.logging = true
	ix.log = ix.log[:0]
	ix.logMu.Unlock()

	entries, err := load()
	if err != nil {
		ix.stopLogging()
		return err
	}

	next := make(map[string][]float32, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if len(e.Vector) != ix.dimension {
			ix.stopLogging()
			return ErrDimensionMismatch
		}
		v := make([]float32, len(e.Vector))
		copy(v, e.Vector)
		next[e.ID] = v
	}

	ix.mu.Lock()
	ix.logMu.Lock()
	for _, o := range ix.log {
		if o.vector == nil {
			delete(next, o.id)
		} else {
			next[o.id] = o.vector
		}
	}
	ix.logging = false
	ix.log = nil
	ix.logMu.Unlock()

	ix.vectors = next
	ix.lastBuild = time.Now()
	ix.mu.Unlock()
	return nil
}

func (ix *Index) stopLogging() {
	ix.logMu.Lock()
	ix.logging = false
	ix.log = nil
	ix.logMu.Unlock()
}

// Size returns the number of indexed vectors.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Contains reports whether id currently has a vector in the index.
func (ix *Index) Contains(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.vectors[id]
	return ok
}

// LastRebuild returns when the index was last atomically rebuilt.
func (ix *Index) LastRebuild() time.Time {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.lastBuild
}

// Dimension returns the fixed vector width accepted by this index.
func (ix *Index) Dimension() int { return ix.dimension }

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
