package index

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// embedDim is the embedding width requested from the embedder. 768
// matches the text-embedding models used by the Gemini adapter.
const embedDim = 768

// MemorySemantic is the in-process Semantic implementation: embeddings
// held in memory, ranked by cosine similarity.
type MemorySemantic struct {
	embedder Embedder

	mu      sync.RWMutex
	entries map[string]*semanticEntry // by version ID
}

type semanticEntry struct {
	entry  Entry
	vector []float32
}

// NewMemorySemantic creates an in-memory semantic index.
func NewMemorySemantic(embedder Embedder) *MemorySemantic {
	return &MemorySemantic{
		embedder: embedder,
		entries:  make(map[string]*semanticEntry),
	}
}

func (m *MemorySemantic) Upsert(ctx context.Context, entry Entry) error {
	vec, err := m.embedder.Embed(ctx, entry.Text, embedDim)
	if err != nil {
		return goerr.Wrap(err, "failed to embed entry", goerr.V("version_id", entry.VersionID))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.VersionID] = &semanticEntry{entry: entry, vector: vec}
	return nil
}

func (m *MemorySemantic) Query(ctx context.Context, text string, k int) ([]Candidate, error) {
	qv, err := m.embedder.Embed(ctx, text, embedDim)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	m.mu.RLock()
	candidates := make([]Candidate, 0, len(m.entries))
	for _, e := range m.entries {
		candidates = append(candidates, Candidate{
			DocumentID: e.entry.DocumentID,
			VersionID:  e.entry.VersionID,
			Score:      clampScore(cosine(qv, e.vector)),
		})
	}
	m.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].VersionID < candidates[j].VersionID
	})

	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// MemoryGraph is the in-process Graph implementation: an adjacency map
// from entity to the document versions that mention it.
type MemoryGraph struct {
	mu       sync.RWMutex
	byEntity map[string]map[string]Entry // entity -> version ID -> entry
	byDoc    map[string]string           // document ID -> head version ID
}

// NewMemoryGraph creates an in-memory graph index.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		byEntity: make(map[string]map[string]Entry),
		byDoc:    make(map[string]string),
	}
}

func (m *MemoryGraph) Upsert(ctx context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Drop edges of the superseded version so relations reflect the
	// newest derived features per document.
	if prev, ok := m.byDoc[entry.DocumentID]; ok {
		for _, versions := range m.byEntity {
			delete(versions, prev)
		}
	}
	m.byDoc[entry.DocumentID] = entry.VersionID

	for _, entity := range entry.Entities {
		versions, ok := m.byEntity[entity]
		if !ok {
			versions = make(map[string]Entry)
			m.byEntity[entity] = versions
		}
		versions[entry.VersionID] = entry
	}
	return nil
}

func (m *MemoryGraph) Related(ctx context.Context, anchor string, k int) ([]Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions, ok := m.byEntity[anchor]
	if !ok {
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(versions))
	for _, e := range versions {
		candidates = append(candidates, Candidate{
			DocumentID: e.DocumentID,
			VersionID:  e.VersionID,
			Score:      1.0,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].DocumentID < candidates[j].DocumentID
	})

	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}
