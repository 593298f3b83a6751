package search

import (
	"os"

	"github.com/futureready/retain/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// Weights controls how the resolver folds index signals into one
// relevance score.
type Weights struct {
	// Semantic and Recency are the linear blend coefficients.
	Semantic float64 `yaml:"semantic"`
	Recency  float64 `yaml:"recency"`

	// GraphFloor is the minimum score of a graph-matched candidate.
	GraphFloor float64 `yaml:"graph_floor"`

	// RecencyHalfLifeDays is the age at which the recency signal has
	// decayed to 0.5.
	RecencyHalfLifeDays int `yaml:"recency_half_life_days"`

	// TopK is the candidate fetch size per index.
	TopK int `yaml:"top_k"`
}

// DefaultWeights returns the built-in scoring profile.
func DefaultWeights() Weights {
	return Weights{
		Semantic:            0.7,
		Recency:             0.3,
		GraphFloor:          0.35,
		RecencyHalfLifeDays: 180,
		TopK:                20,
	}
}

// LoadWeights reads a YAML weights file on top of the defaults. Fields
// absent from the file keep their default values.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()

	raw, err := os.ReadFile(path)
	if err != nil {
		return w, goerr.Wrap(err, "failed to read weights file", goerr.V("path", path))
	}
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return w, goerr.Wrap(err, "failed to parse weights file", goerr.V("path", path))
	}
	if err := w.Validate(); err != nil {
		return w, err
	}
	return w, nil
}

// Validate rejects profiles that cannot produce a meaningful ranking.
func (w Weights) Validate() error {
	if w.Semantic < 0 || w.Recency < 0 {
		return goerr.Wrap(model.ErrValidation, "scoring weights must be non-negative")
	}
	if w.Semantic+w.Recency == 0 {
		return goerr.Wrap(model.ErrValidation, "at least one scoring weight must be positive")
	}
	if w.GraphFloor < 0 || w.GraphFloor > 1 {
		return goerr.Wrap(model.ErrValidation, "graph floor must be within [0, 1]")
	}
	if w.RecencyHalfLifeDays <= 0 {
		return goerr.Wrap(model.ErrValidation, "recency half-life must be positive")
	}
	if w.TopK <= 0 {
		return goerr.Wrap(model.ErrValidation, "top_k must be positive")
	}
	return nil
}
