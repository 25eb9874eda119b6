package index

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func unit(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func TestQueryOrdering(t *testing.T) {
	ix := New(3)
	if err := ix.Upsert("a", []float32{1, 0, 0}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ix.Upsert("b", []float32{0.8, 0.6, 0})
	ix.Upsert("c", []float32{0, 1, 0})

	hits, err := ix.Query(context.Background(), []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].ID != "a" || hits[1].ID != "b" || hits[2].ID != "c" {
		t.Errorf("wrong order: %v", hits)
	}
}

func TestQueryTieBreakByID(t *testing.T) {
	ix := New(2)
	// Identical vectors: ties must resolve by ascending id.
	ix.Upsert("z", []float32{1, 0})
	ix.Upsert("a", []float32{1, 0})
	ix.Upsert("m", []float32{1, 0})

	hits, err := ix.Query(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if hits[0].ID != "a" || hits[1].ID != "m" || hits[2].ID != "z" {
		t.Errorf("tie-break not deterministic: %v", hits)
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	ix := New(4)
	hits, err := ix.Query(context.Background(), unit(4, 0), 5)
	if err != nil {
		t.Fatalf("query on empty index: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %v", hits)
	}
}

func TestUpsertReplaces(t *testing.T) {
	ix := New(2)
	ix.Upsert("a", []float32{1, 0})
	ix.Upsert("a", []float32{0, 1})
	if ix.Size() != 1 {
		t.Fatalf("size = %d, want 1", ix.Size())
	}
	hits, _ := ix.Query(context.Background(), []float32{0, 1}, 1)
	if hits[0].Similarity < 0.99 {
		t.Errorf("replacement vector not in effect: %v", hits)
	}
}

func TestUpsertDimensionMismatch(t *testing.T) {
	ix := New(3)
	if err := ix.Upsert("a", []float32{1, 0}); err != ErrDimensionMismatch {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	ix := New(2)
	ix.Upsert("a", []float32{1, 0})
	ix.Remove("a")
	hits, _ := ix.Query(context.Background(), []float32{1, 0}, 1)
	if len(hits) != 0 {
		t.Errorf("removed id still returned: %v", hits)
	}
}

func TestRebuildReplacesContent(t *testing.T) {
	ix := New(2)
	ix.Upsert("old", []float32{1, 0})

	err := ix.Rebuild(func() ([]Entry, error) {
		return []Entry{
			{ID: "new1", Vector: []float32{1, 0}},
			{ID: "new2", Vector: []float32{0, 1}},
		}, nil
	})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if ix.Contains("old") {
		t.Error("pre-rebuild entry survived the swap")
	}
	if ix.Size() != 2 {
		t.Errorf("size = %d, want 2", ix.Size())
	}
	if ix.LastRebuild().IsZero() {
		t.Error("last rebuild timestamp not set")
	}
}

func TestConcurrentUpsertsDuringRebuild(t *testing.T) {
	const dim = 8
	ix := New(dim)
	for i := 0; i < 50; i++ {
		ix.Upsert(fmt.Sprintf("seed-%02d", i), unit(dim, i%dim))
	}

	entries := make([]Entry, 0, 50)
	for i := 0; i < 50; i++ {
		entries = append(entries, Entry{ID: fmt.Sprintf("built-%02d", i), Vector: unit(dim, i%dim)})
	}

	// The loader signals once the rebuild is in flight, then blocks until all
	// live upserts have landed, guaranteeing they hit the replay path.
	var upserts sync.WaitGroup
	building := make(chan struct{})
	rebuildDone := make(chan error, 1)
	upserts.Add(4)

	go func() {
		rebuildDone <- ix.Rebuild(func() ([]Entry, error) {
			close(building)
			upserts.Wait()
			return entries, nil
		})
	}()

	for w := 0; w < 4; w++ {
		go func(w int) {
			defer upserts.Done()
			<-building
			for i := 0; i < 25; i++ {
				id := fmt.Sprintf("live-%d-%02d", w, i)
				if err := ix.Upsert(id, unit(dim, i%dim)); err != nil {
					t.Errorf("upsert %s: %v", id, err)
				}
			}
		}(w)
	}

	if err := <-rebuildDone; err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	// Final state: rebuilt set plus every concurrent upsert, no losses.
	for i := 0; i < 50; i++ {
		if !ix.Contains(fmt.Sprintf("built-%02d", i)) {
			t.Errorf("rebuilt entry built-%02d missing", i)
		}
	}
	for w := 0; w < 4; w++ {
		for i := 0; i < 25; i++ {
			id := fmt.Sprintf("live-%d-%02d", w, i)
			if !ix.Contains(id) {
				t.Errorf("concurrent upsert %s lost by rebuild", id)
			}
		}
	}
}

func TestSecondRebuildRejectedWhileRunning(t *testing.T) {
	ix := New(2)
	ix.rebuildMu.Lock()
	defer ix.rebuildMu.Unlock()
	err := ix.Rebuild(func() ([]Entry, error) { return nil, nil })
	if err != ErrRebuildInProgress {
		t.Errorf("expected ErrRebuildInProgress, got %v", err)
	}
}

func TestQueryLimitsToK(t *testing.T) {
	ix := New(2)
	for i := 0; i < 10; i++ {
		ix.Upsert(fmt.Sprintf("d%d", i), []float32{1, 0})
	}
	hits, _ := ix.Query(context.Background(), []float32{1, 0}, 3)
	if len(hits) != 3 {
		t.Errorf("expected 3 hits, got %d", len(hits))
	}
}
