// Package ingest implements the ingestion boundary: the unconditional
// metadata gate, the store commit, and the asynchronous fan-out that
// feeds the semantic and graph indexes.
package ingest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/futureready/retain/pkg/index"
	"github.com/futureready/retain/pkg/model"
	"github.com/futureready/retain/pkg/store"
	"github.com/futureready/retain/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// MetadataInput is the raw, unvalidated metadata supplied by a caller.
// It only becomes a model.Metadata by passing the validation gate.
type MetadataInput struct {
	Uploader        string
	Department      model.Department
	BusinessContext string
	Tags            []string
}

// UseCase provides ingestion operations
type UseCase struct {
	store    *store.Store
	semantic index.Semantic
	graph    index.Graph

	workers  int
	retries  int
	backoff  time.Duration
	queue    chan index.Entry
	inflight sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithWorkers sets the number of background fan-out workers.
func WithWorkers(n int) Option {
	return func(uc *UseCase) {
		uc.workers = n
	}
}

// WithRetries sets the number of attempts per index update.
func WithRetries(n int) Option {
	return func(uc *UseCase) {
		uc.retries = n
	}
}

// WithBackoff sets the initial retry backoff; it doubles per attempt.
func WithBackoff(d time.Duration) Option {
	return func(uc *UseCase) {
		uc.backoff = d
	}
}

// New creates the ingestion use case and starts its fan-out workers.
// semantic and graph may be nil when no backend is configured.
func New(s *store.Store, semantic index.Semantic, graph index.Graph, opts ...Option) *UseCase {
	uc := &UseCase{
		store:    s,
		semantic: semantic,
		graph:    graph,
		workers:  4,
		retries:  3,
		backoff:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(uc)
	}

	uc.ctx, uc.cancel = context.WithCancel(context.Background())
	uc.queue = make(chan index.Entry, uc.workers*4)
	for i := 0; i < uc.workers; i++ {
		go uc.worker()
	}

	return uc
}

// Ingest validates metadata and commits the first version of a new
// document. Validation failures carry ErrValidation and leave no
// partial write behind.
func (uc *UseCase) Ingest(ctx context.Context, body []byte, input MetadataInput) (*model.DocumentVersion, error) {
	return uc.commit(ctx, "", body, input)
}

// Update commits a successor version of an existing document.
func (uc *UseCase) Update(ctx context.Context, docID model.DocumentID, body []byte, input MetadataInput) (*model.DocumentVersion, error) {
	return uc.commit(ctx, docID, body, input)
}

func (uc *UseCase) commit(ctx context.Context, docID model.DocumentID, body []byte, input MetadataInput) (*model.DocumentVersion, error) {
	meta, err := model.NewMetadata(input.Uploader, input.Department, input.BusinessContext, input.Tags)
	if err != nil {
		return nil, err
	}

	v, err := uc.store.Put(ctx, docID, body, meta)
	if err != nil {
		return nil, err
	}

	uc.enqueue(v)
	return v, nil
}

// Retract commits a tombstone version. The retraction itself carries
// mandatory metadata: who retracted and why.
func (uc *UseCase) Retract(ctx context.Context, docID model.DocumentID, input MetadataInput) (*model.DocumentVersion, error) {
	meta, err := model.NewMetadata(input.Uploader, input.Department, input.BusinessContext, input.Tags)
	if err != nil {
		return nil, err
	}
	return uc.store.Retract(ctx, docID, meta)
}

// enqueue schedules the background index updates for a committed
// version. Commit durability never waits on this.
func (uc *UseCase) enqueue(v *model.DocumentVersion) {
	if uc.semantic == nil && uc.graph == nil {
		return
	}

	uc.inflight.Add(1)
	select {
	case uc.queue <- deriveEntry(v):
	case <-uc.ctx.Done():
		uc.inflight.Done()
	}
}

// deriveEntry builds the index features of a version from its
// metadata.
func deriveEntry(v *model.DocumentVersion) index.Entry {
	meta := v.Metadata

	entities := make([]string, 0, len(meta.Tags)+2)
	entities = append(entities, meta.Tags...)
	entities = append(entities, string(meta.Department))
	if i := strings.Index(meta.Uploader, "@"); i >= 0 && i+1 < len(meta.Uploader) {
		entities = append(entities, meta.Uploader[i+1:])
	}

	return index.Entry{
		VersionID:  string(v.VersionID),
		DocumentID: string(v.DocumentID),
		Text:       meta.BusinessContext + " " + strings.Join(meta.Tags, " "),
		Entities:   entities,
	}
}

func (uc *UseCase) worker() {
	for entry := range uc.queue {
		uc.update(entry)
		uc.inflight.Done()
	}
}

// update pushes one entry into both indexes with bounded retry.
// Exhausted retries degrade query recall transiently; they never fail
// the ingestion.
func (uc *UseCase) update(entry index.Entry) {
	logger := logging.Default()

	if uc.semantic != nil {
		if err := uc.withRetry(func() error { return uc.semantic.Upsert(uc.ctx, entry) }); err != nil {
			logger.Warn("semantic index update failed",
				"version_id", entry.VersionID, "error", err)
		}
	}
	if uc.graph != nil {
		if err := uc.withRetry(func() error { return uc.graph.Upsert(uc.ctx, entry) }); err != nil {
			logger.Warn("graph index update failed",
				"version_id", entry.VersionID, "error", err)
		}
	}
}

func (uc *UseCase) withRetry(fn func() error) error {
	var err error
	wait := uc.backoff
	for attempt := 0; attempt < uc.retries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		select {
		case <-time.After(wait):
			wait *= 2
		case <-uc.ctx.Done():
			return err
		}
	}
	return err
}

// Reindex schedules index updates for the head version of every stored
// document. Used to repopulate in-process index backends after a
// restart.
func (uc *UseCase) Reindex(ctx context.Context) error {
	tidx := uc.store.Temporal()
	for _, id := range tidx.Documents() {
		if err := ctx.Err(); err != nil {
			return goerr.Wrap(err, "reindex cancelled")
		}
		head, err := tidx.Latest(id)
		if err != nil || head.Tombstone {
			continue
		}
		uc.enqueue(head)
	}
	return nil
}

// Wait blocks until all scheduled index updates have finished. Used by
// CLI teardown and tests.
func (uc *UseCase) Wait() {
	uc.inflight.Wait()
}

// Close drains pending work and stops the workers.
func (uc *UseCase) Close() {
	uc.once.Do(func() {
		uc.inflight.Wait()
		uc.cancel()
		close(uc.queue)
	})
}
