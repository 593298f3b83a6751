// Package search resolves retrieval queries across the semantic and
// graph indexes, reconciled against the temporal index so that a query
// never surfaces a version newer than its as-of date.
package search

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/futureready/retain/pkg/index"
	"github.com/futureready/retain/pkg/model"
	"github.com/futureready/retain/pkg/store"
	"github.com/futureready/retain/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// futureSlack tolerates clock skew between callers and the resolver.
const futureSlack = time.Minute

// Resolver ranks documents for a SearchQuery.
type Resolver struct {
	store    *store.Store
	semantic index.Semantic
	graph    index.Graph
	weights  Weights
	now      func() time.Time
}

// ResolverOption is a functional option for Resolver
type ResolverOption func(*Resolver)

// WithWeights overrides the default scoring profile.
func WithWeights(w Weights) ResolverOption {
	return func(r *Resolver) {
		r.weights = w
	}
}

// WithClock injects the time source. Tests use this to pin "now".
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// New creates a resolver. semantic and graph may be nil when the
// corresponding backend is not configured.
func New(s *store.Store, semantic index.Semantic, graph index.Graph, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:    s,
		semantic: semantic,
		graph:    graph,
		weights:  DefaultWeights(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// candidate accumulates per-document evidence before scoring.
type candidate struct {
	docID    model.DocumentID
	semantic float64
	hasSem   bool
	hasGraph bool
}

// Search resolves a query into a ranked result list. With an as-of
// date, every returned version existed at that date; tombstoned
// documents never appear.
func (r *Resolver) Search(ctx context.Context, q model.SearchQuery) ([]model.SearchResult, error) {
	if q.Query == "" && q.GraphAnchor == "" {
		return nil, goerr.Wrap(model.ErrValidation, "query requires text or a graph anchor")
	}
	if q.Department != "" {
		if err := q.Department.Validate(); err != nil {
			return nil, err
		}
	}

	now := r.now().UTC()
	asOf := now
	if q.AsOf != nil {
		if q.AsOf.After(now.Add(futureSlack)) {
			return nil, goerr.Wrap(model.ErrTemporal, "as-of date is in the future",
				goerr.V("as_of", *q.AsOf), goerr.V("now", now))
		}
		asOf = q.AsOf.UTC()
	}

	candidates, err := r.gather(ctx, q)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = r.weights.TopK
	}

	tidx := r.store.Temporal()
	halfLife := time.Duration(r.weights.RecencyHalfLifeDays) * 24 * time.Hour

	results := make([]model.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		v, err := tidx.AsOf(c.docID, asOf)
		if err != nil {
			// Did not exist at the as-of date.
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if v.Tombstone {
			continue
		}
		if !matchesFilters(v, q) {
			continue
		}

		age := asOf.Sub(v.UploadTime)
		if age < 0 {
			age = 0
		}
		recency := math.Exp2(-float64(age) / float64(halfLife))

		score := clamp01(r.weights.Semantic*c.semantic + r.weights.Recency*recency)
		if c.hasGraph && score < r.weights.GraphFloor {
			score = r.weights.GraphFloor
		}

		results = append(results, model.SearchResult{
			DocumentID: c.docID,
			VersionID:  v.VersionID,
			Score:      score,
			Reason:     r.reason(c, q, v),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocumentID < results[j].DocumentID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	logging.From(ctx).Debug("resolved query",
		"candidates", len(candidates), "results", len(results), "as_of", asOf)
	return results, nil
}

// gather collects per-document candidates from both indexes, keeping
// the best semantic score per document.
func (r *Resolver) gather(ctx context.Context, q model.SearchQuery) ([]*candidate, error) {
	byDoc := make(map[model.DocumentID]*candidate)
	var order []*candidate

	get := func(id model.DocumentID) *candidate {
		if c, ok := byDoc[id]; ok {
			return c
		}
		c := &candidate{docID: id}
		byDoc[id] = c
		order = append(order, c)
		return c
	}

	if r.semantic != nil && q.Query != "" {
		hits, err := r.semantic.Query(ctx, q.Query, r.weights.TopK)
		if err != nil {
			return nil, goerr.Wrap(err, "semantic query failed")
		}
		for _, hit := range hits {
			c := get(model.DocumentID(hit.DocumentID))
			c.hasSem = true
			if hit.Score > c.semantic {
				c.semantic = hit.Score
			}
		}
	}

	if r.graph != nil && q.GraphAnchor != "" {
		hits, err := r.graph.Related(ctx, q.GraphAnchor, r.weights.TopK)
		if err != nil {
			return nil, goerr.Wrap(err, "graph query failed")
		}
		for _, hit := range hits {
			get(model.DocumentID(hit.DocumentID)).hasGraph = true
		}
	}

	return order, nil
}

// matchesFilters applies the hard department and tag filters against
// the qualifying version's metadata.
func matchesFilters(v *model.DocumentVersion, q model.SearchQuery) bool {
	if q.Department != "" && v.Metadata.Department != q.Department {
		return false
	}
	for _, tag := range q.Tags {
		if !v.Metadata.HasTag(tag) {
			return false
		}
	}
	return true
}

// reason labels a hit by its evidence. A hit resolved to an older
// version by an as-of date is a temporal match regardless of which
// index surfaced it.
func (r *Resolver) reason(c *candidate, q model.SearchQuery, v *model.DocumentVersion) model.MatchReason {
	if q.AsOf != nil {
		if head, err := r.store.Temporal().Latest(c.docID); err == nil && head.VersionID != v.VersionID {
			return model.MatchTemporal
		}
	}
	switch {
	case c.hasSem && c.hasGraph:
		return model.MatchCombined
	case c.hasGraph:
		return model.MatchGraph
	default:
		return model.MatchSemantic
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
