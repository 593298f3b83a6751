package index

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// FirestoreSemantic is the Semantic implementation backed by Firestore
// vector search. One Firestore document per version, embedding stored
// as Vector32.
type FirestoreSemantic struct {
	client     *firestore.Client
	collection string
	embedder   Embedder
}

// FirestoreOption is a functional option for FirestoreSemantic
type FirestoreOption func(*FirestoreSemantic)

// WithCollection overrides the backing collection name.
func WithCollection(name string) FirestoreOption {
	return func(f *FirestoreSemantic) {
		f.collection = name
	}
}

// NewFirestoreSemantic creates a Firestore-backed semantic index.
func NewFirestoreSemantic(ctx context.Context, projectID, databaseID string, embedder Embedder, opts ...FirestoreOption) (*FirestoreSemantic, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	f := &FirestoreSemantic{
		client:     client,
		collection: "semantic_index",
		embedder:   embedder,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

type semanticDoc struct {
	DocumentID string              `firestore:"document_id"`
	Text       string              `firestore:"text"`
	Embedding  firestore.Vector32  `firestore:"embedding"`
	Distance   float64             `firestore:"distance,omitempty"`
}

func (f *FirestoreSemantic) Upsert(ctx context.Context, entry Entry) error {
	vec, err := f.embedder.Embed(ctx, entry.Text, embedDim)
	if err != nil {
		return goerr.Wrap(err, "failed to embed entry", goerr.V("version_id", entry.VersionID))
	}

	_, err = f.client.Collection(f.collection).Doc(entry.VersionID).Set(ctx, &semanticDoc{
		DocumentID: entry.DocumentID,
		Text:       entry.Text,
		Embedding:  firestore.Vector32(vec),
	})
	if err != nil {
		return goerr.Wrap(err, "failed to upsert semantic entry", goerr.V("version_id", entry.VersionID))
	}
	return nil
}

func (f *FirestoreSemantic) Query(ctx context.Context, text string, k int) ([]Candidate, error) {
	vec, err := f.embedder.Embed(ctx, text, embedDim)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	vq := f.client.Collection(f.collection).FindNearest(
		"embedding",
		firestore.Vector32(vec),
		k,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{
			DistanceResultField: "distance",
		},
	)

	iter := vq.Documents(ctx)
	defer iter.Stop()

	var candidates []Candidate
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate vector search results")
		}

		var doc semanticDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode semantic entry", goerr.V("doc", snap.Ref.ID))
		}

		// Cosine distance is within [0, 2]; fold into a [0, 1] score.
		candidates = append(candidates, Candidate{
			DocumentID: doc.DocumentID,
			VersionID:  snap.Ref.ID,
			Score:      clampScore(1.0 - doc.Distance),
		})
	}

	return candidates, nil
}

// Close releases the Firestore client.
func (f *FirestoreSemantic) Close() error {
	return f.client.Close()
}
