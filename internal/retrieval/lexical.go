package retrieval

import (
	"sort"
	"sync"

	"islamic-qa-platform/internal/textnorm"
)

// lexicalMinScore is the minimum word-overlap score a document needs to be
// considered a fallback match at all.
const lexicalMinScore = 0.1

// lexicalIndex is a small in-memory inverted index over normalized question
// text. It only exists so the engine can degrade to keyword matching when
// the embedding backend is down; its scores are deliberately modest and its
// results are never labeled high confidence.
type lexicalIndex struct {
	mu       sync.RWMutex
	postings map[string]map[string]struct{} // token -> set of doc ids
	docs     map[string]lexicalDoc
}

type lexicalDoc struct {
	language string
	tokens   []string
}

func newLexicalIndex() *lexicalIndex {
	return &lexicalIndex{
		postings: make(map[string]map[string]struct{}),
		docs:     make(map[string]lexicalDoc),
	}
}

func (l *lexicalIndex) add(id, normalizedQuestion, language string) {
	tokens := textnorm.Tokens(normalizedQuestion)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.removeLocked(id)
	l.docs[id] = lexicalDoc{language: language, tokens: tokens}
	for _, tok := range tokens {
		set, ok := l.postings[tok]
		if !ok {
			set = make(map[string]struct{})
			l.postings[tok] = set
		}
		set[id] = struct{}{}
	}
}

func (l *lexicalIndex) remove(id string) {
	l.mu.Lock()
	l.removeLocked(id)
	l.mu.Unlock()
}

func (l *lexicalIndex) removeLocked(id string) {
	doc, ok := l.docs[id]
	if !ok {
		return
	}
	for _, tok := range doc.tokens {
		if set, ok := l.postings[tok]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(l.postings, tok)
			}
		}
	}
	delete(l.docs, id)
}

func (l *lexicalIndex) clear() {
	l.mu.Lock()
	l.postings = make(map[string]map[string]struct{})
	l.docs = make(map[string]lexicalDoc)
	l.mu.Unlock()
}

type lexicalHit struct {
	id    string
	score float64
}

// search scores documents of the given language by word overlap with the
// normalized query: |query ∩ question| / max(|query|, |question|).
func (l *lexicalIndex) search(normalizedQuery, language string, k int) []lexicalHit {
	queryTokens := textnorm.Tokens(normalizedQuery)
	if len(queryTokens) == 0 || k <= 0 {
		return nil
	}

	querySet := make(map[string]struct{}, len(queryTokens))
	for _, tok := range queryTokens {
		querySet[tok] = struct{}{}
	}

	l.mu.RLock()
	overlap := make(map[string]int)
	for tok := range querySet {
		for id := range l.postings[tok] {
			overlap[id]++
		}
	}

	hits := make([]lexicalHit, 0, len(overlap))
	for id, n := range overlap {
		doc := l.docs[id]
		if doc.language != language {
			continue
		}
		denom := len(querySet)
		if len(doc.tokens) > denom {
			denom = len(doc.tokens)
		}
		score := float64(n) / float64(denom)
		if score >= lexicalMinScore {
			hits = append(hits, lexicalHit{id: id, score: score})
		}
	}
	l.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func (l *lexicalIndex) size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.docs)
}
