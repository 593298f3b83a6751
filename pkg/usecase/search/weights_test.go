package search_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/futureready/retain/pkg/model"
	"github.com/futureready/retain/pkg/usecase/search"
	"github.com/m-mizutani/gt"
)

func TestLoadWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yml")
	gt.NoError(t, os.WriteFile(path, []byte("semantic: 0.5\nrecency: 0.5\n"), 0644))

	w, err := search.LoadWeights(path)
	gt.NoError(t, err)
	gt.Equal(t, w.Semantic, 0.5)
	gt.Equal(t, w.Recency, 0.5)

	// Fields absent from the file keep their defaults.
	gt.Equal(t, w.GraphFloor, search.DefaultWeights().GraphFloor)
	gt.Equal(t, w.TopK, search.DefaultWeights().TopK)
}

func TestWeightsValidate(t *testing.T) {
	testCases := map[string]search.Weights{
		"negative weight": func() search.Weights {
			w := search.DefaultWeights()
			w.Semantic = -0.1
			return w
		}(),
		"zero blend": func() search.Weights {
			w := search.DefaultWeights()
			w.Semantic = 0
			w.Recency = 0
			return w
		}(),
		"floor out of range": func() search.Weights {
			w := search.DefaultWeights()
			w.GraphFloor = 1.5
			return w
		}(),
		"non-positive half-life": func() search.Weights {
			w := search.DefaultWeights()
			w.RecencyHalfLifeDays = 0
			return w
		}(),
		"non-positive top_k": func() search.Weights {
			w := search.DefaultWeights()
			w.TopK = 0
			return w
		}(),
	}

	for name, w := range testCases {
		t.Run(name, func(t *testing.T) {
			err := w.Validate()
			gt.Error(t, err)
			gt.True(t, errors.Is(err, model.ErrValidation))
		})
	}

	gt.NoError(t, search.DefaultWeights().Validate())
}
