// Package index defines the narrow contracts for the semantic and
// graph indexes and provides in-memory reference implementations plus
// Firestore (vector) and Neo4j (graph) backends. Both indexes are
// derived, rebuildable state: they are updated asynchronously after a
// store commit and may transiently lag it.
package index

import "context"

// Entry is the derived feature set of one committed document version.
type Entry struct {
	VersionID  string
	DocumentID string
	// Text is the embeddable surface of the version: business context
	// plus tags.
	Text string
	// Entities are the graph features: tags, department, uploader
	// domain.
	Entities []string
}

// Candidate is a ranked hit from candidate generation. Score is within
// [0, 1], higher is more relevant.
type Candidate struct {
	DocumentID string
	VersionID  string
	Score      float64
}

// Semantic answers nearest-neighbor queries over embedded entries. The
// core depends only on this contract; the backing service is
// swappable.
type Semantic interface {
	Upsert(ctx context.Context, entry Entry) error
	Query(ctx context.Context, text string, k int) ([]Candidate, error)
}

// Graph answers entity-relation queries. Related returns documents
// connected to the anchor entity.
type Graph interface {
	Upsert(ctx context.Context, entry Entry) error
	Related(ctx context.Context, anchor string, k int) ([]Candidate, error)
}

// Embedder turns text into a vector. Satisfied by the Gemini adapter.
type Embedder interface {
	Embed(ctx context.Context, text string, dim int32) ([]float32, error)
}
