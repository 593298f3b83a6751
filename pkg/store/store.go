// Package store implements the content-addressed, append-only,
// versioned document store. Every commit is durably logged before it
// becomes visible, and the temporal index is updated inside the commit
// section so as-of reconstruction never misses a committed version.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/futureready/retain/pkg/model"
	"github.com/futureready/retain/pkg/temporal"
	"github.com/m-mizutani/goerr/v2"
)

// docState is an immutable snapshot of one document's committed state.
// Commits build a fresh docState and swap the pointer, so readers that
// grabbed the previous pointer keep a consistent view without locking.
type docState struct {
	versions  []*model.DocumentVersion
	byVersion map[model.VersionID]*model.DocumentVersion
	bodies    map[model.VersionID][]byte
}

// Store is the sole source of truth together with its temporal index.
// Writes are serialized per document; reads observe full commits only.
type Store struct {
	log   Log
	blobs BlobStore
	tidx  *temporal.Index
	clock func() time.Time

	mu   sync.RWMutex
	docs map[model.DocumentID]*docState

	lockMu sync.Mutex
	locks  map[model.DocumentID]*sync.Mutex
}

// Option is a functional option for Store
type Option func(*Store)

// WithLog sets the durable version log. Defaults to a volatile
// in-memory log.
func WithLog(log Log) Option {
	return func(s *Store) {
		s.log = log
	}
}

// WithBlobs stores document bodies in an external blob store instead of
// inlining them into the log.
func WithBlobs(blobs BlobStore) Option {
	return func(s *Store) {
		s.blobs = blobs
	}
}

// WithClock overrides the commit clock. Used by tests to build version
// chains at controlled timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New creates a Store and rebuilds state from the configured log. A
// replay that yields an out-of-order sequence number means the log was
// written by a broken serialization and fails with ErrConflict.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	s := &Store{
		log:   NewMemoryLog(),
		tidx:  temporal.New(),
		clock: time.Now,
		docs:  make(map[model.DocumentID]*docState),
		locks: make(map[model.DocumentID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}

	err := s.log.Replay(ctx, func(rec *Record) error {
		return s.apply(rec)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to replay version log")
	}

	return s, nil
}

// apply publishes a replayed record to memory without re-appending it.
func (s *Store) apply(rec *Record) error {
	v := rec.Version
	state := s.state(v.DocumentID)

	expected := 1
	if state != nil {
		expected = len(state.versions) + 1
	}
	if v.Seq != expected {
		return goerr.Wrap(model.ErrConflict, "log replay out of order",
			goerr.V("document_id", v.DocumentID),
			goerr.V("seq", v.Seq), goerr.V("expected", expected))
	}

	s.publish(state, v, rec.Body)
	return nil
}

// state returns the current immutable snapshot for the document.
func (s *Store) state(id model.DocumentID) *docState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[id]
}

// publish swaps in a new docState containing the committed version and
// inserts it into the temporal index. Both happen under the store
// write lock: once the temporal index answers for a version, a Get
// holding the read lock is guaranteed to find it too.
func (s *Store) publish(prev *docState, v *model.DocumentVersion, body []byte) {
	next := &docState{
		byVersion: make(map[model.VersionID]*model.DocumentVersion),
		bodies:    make(map[model.VersionID][]byte),
	}
	if prev != nil {
		next.versions = append(next.versions, prev.versions...)
		for id, pv := range prev.byVersion {
			next.byVersion[id] = pv
		}
		for id, b := range prev.bodies {
			next.bodies[id] = b
		}
	}
	next.versions = append(next.versions, v)
	next.byVersion[v.VersionID] = v
	if s.blobs == nil && !v.Tombstone {
		next.bodies[v.VersionID] = body
	}

	s.mu.Lock()
	s.tidx.Insert(v)
	s.docs[v.DocumentID] = next
	s.mu.Unlock()
}

// docLock returns the commit lock for one document.
func (s *Store) docLock(id model.DocumentID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	return mu
}

// Put commits a new version. An empty docID starts a new document whose
// identity is the content hash of the first version. Re-ingesting a
// body+metadata pair whose hash already exists for the document returns
// the existing version: concurrent duplicate ingests converge on one
// canonical version.
func (s *Store) Put(ctx context.Context, docID model.DocumentID, body []byte, meta model.Metadata) (*model.DocumentVersion, error) {
	vid := model.ComputeVersionID(body, meta)
	if docID == "" {
		docID = model.DocumentID(vid)
	}
	return s.commit(ctx, docID, vid, body, meta, false)
}

// Retract appends a tombstone version, preserving the full history.
// Retracting an already retracted document is a no-op returning the
// existing tombstone.
func (s *Store) Retract(ctx context.Context, docID model.DocumentID, meta model.Metadata) (*model.DocumentVersion, error) {
	if s.state(docID) == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "unknown document", goerr.V("document_id", docID))
	}
	return s.commit(ctx, docID, "", nil, meta, true)
}

func (s *Store) commit(ctx context.Context, docID model.DocumentID, vid model.VersionID, body []byte, meta model.Metadata, tombstone bool) (*model.DocumentVersion, error) {
	mu := s.docLock(docID)
	mu.Lock()
	defer mu.Unlock()

	state := s.state(docID)

	if tombstone {
		if state != nil {
			if head := state.versions[len(state.versions)-1]; head.Tombstone {
				return head, nil
			}
		}
		seq := 1
		if state != nil {
			seq = len(state.versions) + 1
		}
		vid = tombstoneID(docID, seq)
	} else if state != nil {
		if existing, ok := state.byVersion[vid]; ok {
			return existing, nil
		}
	}

	seq := 1
	var last *model.DocumentVersion
	if state != nil {
		seq = len(state.versions) + 1
		last = state.versions[len(state.versions)-1]
	}

	// Upload time is monotonic per document; equal timestamps are
	// allowed and disambiguated by seq.
	now := s.clock().UTC()
	if last != nil && now.Before(last.UploadTime) {
		now = last.UploadTime
	}

	v := &model.DocumentVersion{
		VersionID:  vid,
		DocumentID: docID,
		Seq:        seq,
		UploadTime: now,
		Metadata:   meta,
		Tombstone:  tombstone,
		BodyRef:    "inline",
	}

	rec := &Record{Version: v, Body: body}
	if s.blobs != nil && !tombstone {
		key := string(vid)
		if err := s.blobs.Put(ctx, key, body); err != nil {
			return nil, goerr.Wrap(err, "failed to store document body", goerr.V("version_id", vid))
		}
		v.BodyRef = "blob:" + key
		rec.Body = nil
	}
	if tombstone {
		v.BodyRef = ""
		rec.Body = nil
	}

	// Durability first: the version becomes visible only after the
	// log append succeeded.
	if err := s.log.Append(ctx, rec); err != nil {
		return nil, err
	}

	s.publish(state, v, body)
	return v, nil
}

// tombstoneID derives a stable version ID for a retraction, which has
// no body to hash.
func tombstoneID(docID model.DocumentID, seq int) model.VersionID {
	h := sha256.Sum256([]byte(fmt.Sprintf("tombstone/%s/%d", docID, seq)))
	return model.VersionID(hex.EncodeToString(h[:]))
}

// Get retrieves a version. An empty versionID resolves the head.
func (s *Store) Get(ctx context.Context, docID model.DocumentID, versionID model.VersionID) (*model.DocumentVersion, error) {
	state := s.state(docID)
	if state == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "unknown document", goerr.V("document_id", docID))
	}

	if versionID == "" {
		return state.versions[len(state.versions)-1], nil
	}

	v, ok := state.byVersion[versionID]
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "unknown version",
			goerr.V("document_id", docID), goerr.V("version_id", versionID))
	}
	return v, nil
}

// History returns the full append-only version chain in commit order.
func (s *Store) History(ctx context.Context, docID model.DocumentID) ([]*model.DocumentVersion, error) {
	state := s.state(docID)
	if state == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "unknown document", goerr.V("document_id", docID))
	}

	out := make([]*model.DocumentVersion, len(state.versions))
	copy(out, state.versions)
	return out, nil
}

// Body loads the stored body bytes of a version.
func (s *Store) Body(ctx context.Context, v *model.DocumentVersion) ([]byte, error) {
	if v.Tombstone {
		return nil, goerr.Wrap(model.ErrNotFound, "version is a tombstone", goerr.V("version_id", v.VersionID))
	}

	if s.blobs != nil {
		body, err := s.blobs.Get(ctx, string(v.VersionID))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load document body", goerr.V("version_id", v.VersionID))
		}
		return body, nil
	}

	state := s.state(v.DocumentID)
	if state == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "unknown document", goerr.V("document_id", v.DocumentID))
	}
	body, ok := state.bodies[v.VersionID]
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "body not available", goerr.V("version_id", v.VersionID))
	}
	return body, nil
}

// Temporal exposes the synchronously maintained temporal index.
func (s *Store) Temporal() *temporal.Index {
	return s.tidx
}

// Close closes the underlying log.
func (s *Store) Close() error {
	return s.log.Close()
}
