package index_test

import (
	"context"
	"hash/fnv"
	"testing"

	"github.com/futureready/retain/pkg/index"
	"github.com/m-mizutani/gt"
)

// hashEmbedder is a deterministic stand-in for the real embedder: a
// word-count vector keyed by hash buckets, so texts sharing words get
// similar vectors.
type hashEmbedder struct{}

func (hashEmbedder) Embed(ctx context.Context, text string, dim int32) ([]float32, error) {
	vec := make([]float32, dim)
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == ' ' {
			if i > start {
				h := fnv.New32a()
				h.Write([]byte(text[start:i]))
				vec[h.Sum32()%uint32(dim)]++
			}
			start = i + 1
		}
	}
	return vec, nil
}

func TestMemorySemantic(t *testing.T) {
	ctx := context.Background()
	sem := index.NewMemorySemantic(hashEmbedder{})

	gt.NoError(t, sem.Upsert(ctx, index.Entry{
		VersionID:  "v-travel",
		DocumentID: "doc-travel",
		Text:       "travel expense reimbursement policy",
	}))
	gt.NoError(t, sem.Upsert(ctx, index.Entry{
		VersionID:  "v-parking",
		DocumentID: "doc-parking",
		Text:       "office parking assignment rules",
	}))

	hits, err := sem.Query(ctx, "how do I get a travel expense reimbursed", 10)
	gt.NoError(t, err)
	gt.A(t, hits).Longer(0)
	gt.Equal(t, hits[0].DocumentID, "doc-travel")

	for _, hit := range hits {
		gt.True(t, hit.Score >= 0 && hit.Score <= 1)
	}

	// k truncates.
	hits, err = sem.Query(ctx, "policy rules", 1)
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
}

func TestMemorySemanticSupersede(t *testing.T) {
	ctx := context.Background()
	sem := index.NewMemorySemantic(hashEmbedder{})

	gt.NoError(t, sem.Upsert(ctx, index.Entry{
		VersionID:  "v1",
		DocumentID: "doc-a",
		Text:       "remote work allowed two days per week",
	}))
	gt.NoError(t, sem.Upsert(ctx, index.Entry{
		VersionID:  "v1",
		DocumentID: "doc-a",
		Text:       "remote work allowed four days per week",
	}))

	hits, err := sem.Query(ctx, "remote work", 10)
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
}

func TestMemoryGraph(t *testing.T) {
	ctx := context.Background()
	g := index.NewMemoryGraph()

	gt.NoError(t, g.Upsert(ctx, index.Entry{
		VersionID:  "v1",
		DocumentID: "doc-msa",
		Entities:   []string{"contract", "acme"},
	}))
	gt.NoError(t, g.Upsert(ctx, index.Entry{
		VersionID:  "v2",
		DocumentID: "doc-nda",
		Entities:   []string{"contract", "initech"},
	}))

	hits, err := g.Related(ctx, "contract", 10)
	gt.NoError(t, err)
	gt.A(t, hits).Length(2)
	gt.Equal(t, hits[0].DocumentID, "doc-msa")
	gt.Equal(t, hits[1].DocumentID, "doc-nda")

	hits, err = g.Related(ctx, "acme", 10)
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
	gt.Equal(t, hits[0].DocumentID, "doc-msa")

	hits, err = g.Related(ctx, "unknown-entity", 10)
	gt.NoError(t, err)
	gt.A(t, hits).Length(0)
}

func TestMemoryGraphSupersede(t *testing.T) {
	ctx := context.Background()
	g := index.NewMemoryGraph()

	gt.NoError(t, g.Upsert(ctx, index.Entry{
		VersionID:  "v1",
		DocumentID: "doc-a",
		Entities:   []string{"acme"},
	}))

	// The new version no longer mentions acme; its edge disappears.
	gt.NoError(t, g.Upsert(ctx, index.Entry{
		VersionID:  "v2",
		DocumentID: "doc-a",
		Entities:   []string{"initech"},
	}))

	hits, err := g.Related(ctx, "acme", 10)
	gt.NoError(t, err)
	gt.A(t, hits).Length(0)

	hits, err = g.Related(ctx, "initech", 10)
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
	gt.Equal(t, hits[0].VersionID, "v2")
}
