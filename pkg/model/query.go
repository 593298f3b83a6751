package model

import "time"

// MatchReason explains which index produced a search hit.
type MatchReason string

const (
	MatchSemantic MatchReason = "semantic"
	MatchTemporal MatchReason = "temporal"
	MatchGraph    MatchReason = "graph"
	MatchCombined MatchReason = "combined"
)

// SearchQuery describes one retrieval request. All filters are
// optional; an empty query with a graph anchor is a pure relation
// lookup.
type SearchQuery struct {
	Query       string
	Department  Department
	Tags        []string
	AsOf        *time.Time
	GraphAnchor string
	Limit       int
}

// SearchResult is one ranked hit. Score is always within [0, 1].
type SearchResult struct {
	DocumentID DocumentID
	VersionID  VersionID
	Score      float64
	Reason     MatchReason
}
