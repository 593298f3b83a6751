package ingest_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/futureready/retain/pkg/index"
	"github.com/futureready/retain/pkg/model"
	"github.com/futureready/retain/pkg/store"
	"github.com/futureready/retain/pkg/usecase/ingest"
	"github.com/m-mizutani/gt"
)

// recordingIndex captures upserted entries and optionally fails the
// first few attempts per entry.
type recordingIndex struct {
	mu       sync.Mutex
	entries  []index.Entry
	failures int
	attempts map[string]int
}

func newRecordingIndex(failures int) *recordingIndex {
	return &recordingIndex{
		failures: failures,
		attempts: make(map[string]int),
	}
}

func (r *recordingIndex) Upsert(ctx context.Context, entry index.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts[entry.VersionID]++
	if r.attempts[entry.VersionID] <= r.failures {
		return errors.New("transient backend failure")
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingIndex) Query(ctx context.Context, text string, k int) ([]index.Candidate, error) {
	return nil, nil
}

func (r *recordingIndex) Related(ctx context.Context, anchor string, k int) ([]index.Candidate, error) {
	return nil, nil
}

func (r *recordingIndex) recorded() []index.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]index.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func validInput() ingest.MetadataInput {
	return ingest.MetadataInput{
		Uploader:        "mina@futureready.example",
		Department:      model.DepartmentLegal,
		BusinessContext: "Data processing agreement with the analytics vendor",
		Tags:            []string{"contract", "privacy"},
	}
}

func TestIngestValidationGate(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(ctx)
	gt.NoError(t, err)
	defer s.Close()

	uc := ingest.New(s, nil, nil)
	defer uc.Close()

	input := validInput()
	input.BusinessContext = "too short"
	_, err = uc.Ingest(ctx, []byte("body"), input)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrValidation))

	input = validInput()
	input.Uploader = "not-an-email"
	_, err = uc.Ingest(ctx, []byte("body"), input)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrValidation))

	// Nothing was committed.
	gt.A(t, s.Temporal().Documents()).Length(0)
}

func TestIngestFanout(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(ctx)
	gt.NoError(t, err)
	defer s.Close()

	semantic := newRecordingIndex(0)
	graph := newRecordingIndex(0)
	uc := ingest.New(s, semantic, graph)
	defer uc.Close()

	v, err := uc.Ingest(ctx, []byte("termination clause: 30 days notice"), validInput())
	gt.NoError(t, err)
	uc.Wait()

	entries := semantic.recorded()
	gt.A(t, entries).Length(1)
	gt.Equal(t, entries[0].VersionID, string(v.VersionID))
	gt.Equal(t, entries[0].DocumentID, string(v.DocumentID))
	gt.S(t, entries[0].Text).Contains("Data processing agreement")

	// Entities derive from tags, department and uploader domain.
	gt.A(t, graph.recorded()).Length(1)
	entities := graph.recorded()[0].Entities
	gt.Equal(t, entities, []string{"contract", "privacy", "legal", "futureready.example"})
}

func TestIngestFanoutRetries(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(ctx)
	gt.NoError(t, err)
	defer s.Close()

	// Fails twice, succeeds on the third attempt.
	semantic := newRecordingIndex(2)
	uc := ingest.New(s, semantic, nil,
		ingest.WithRetries(3), ingest.WithBackoff(time.Millisecond))
	defer uc.Close()

	_, err = uc.Ingest(ctx, []byte("body"), validInput())
	gt.NoError(t, err)
	uc.Wait()

	gt.A(t, semantic.recorded()).Length(1)
}

func TestIngestFanoutExhaustion(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(ctx)
	gt.NoError(t, err)
	defer s.Close()

	// Never succeeds within the retry budget; ingestion still commits.
	semantic := newRecordingIndex(10)
	uc := ingest.New(s, semantic, nil,
		ingest.WithRetries(2), ingest.WithBackoff(time.Millisecond))
	defer uc.Close()

	v, err := uc.Ingest(ctx, []byte("body"), validInput())
	gt.NoError(t, err)
	uc.Wait()

	gt.A(t, semantic.recorded()).Length(0)

	// The commit itself is durable regardless of index state.
	head, err := s.Get(ctx, v.DocumentID, "")
	gt.NoError(t, err)
	gt.Equal(t, head.VersionID, v.VersionID)
}

func TestUpdateAndRetract(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(ctx)
	gt.NoError(t, err)
	defer s.Close()

	semantic := newRecordingIndex(0)
	uc := ingest.New(s, semantic, nil)
	defer uc.Close()

	v1, err := uc.Ingest(ctx, []byte("v1"), validInput())
	gt.NoError(t, err)
	v2, err := uc.Update(ctx, v1.DocumentID, []byte("v2"), validInput())
	gt.NoError(t, err)
	gt.Equal(t, v2.Seq, 2)
	uc.Wait()

	gt.A(t, semantic.recorded()).Length(2)

	input := validInput()
	input.BusinessContext = "Superseded by the renegotiated agreement"
	tomb, err := uc.Retract(ctx, v1.DocumentID, input)
	gt.NoError(t, err)
	gt.True(t, tomb.Tombstone)
	gt.Equal(t, tomb.Seq, 3)
}

func TestReindex(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(ctx)
	gt.NoError(t, err)
	defer s.Close()

	// Commit without any index wired, then reindex into a fresh one.
	seed := ingest.New(s, nil, nil)
	_, err = seed.Ingest(ctx, []byte("doc one"), validInput())
	gt.NoError(t, err)

	hr := validInput()
	hr.Department = model.DepartmentHR
	hr.BusinessContext = "Parental leave policy for all full-time staff"
	_, err = seed.Ingest(ctx, []byte("doc two"), hr)
	gt.NoError(t, err)
	seed.Close()

	semantic := newRecordingIndex(0)
	uc := ingest.New(s, semantic, nil)
	defer uc.Close()

	gt.NoError(t, uc.Reindex(ctx))
	uc.Wait()

	gt.A(t, semantic.recorded()).Length(2)
}
