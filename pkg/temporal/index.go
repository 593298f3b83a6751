// Package temporal maintains per-document version chains ordered by
// upload time and answers point-in-time ("as of") reconstruction
// queries. The index is updated synchronously with every DocumentStore
// commit; visibility correctness of as-of queries depends on that.
package temporal

import (
	"sort"
	"sync"
	"time"

	"github.com/futureready/retain/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// chain is an immutable snapshot of one document's committed versions,
// ordered by (UploadTime, Seq). Insert replaces the whole value so that
// readers holding a chain pointer always observe a consistent state.
type chain struct {
	versions []*model.DocumentVersion
}

// Index answers last-write-before-time lookups over committed versions.
type Index struct {
	mu     sync.RWMutex
	chains map[model.DocumentID]*chain
}

func New() *Index {
	return &Index{
		chains: make(map[model.DocumentID]*chain),
	}
}

// Insert records a committed version. It is called by the store inside
// the per-document commit section, so versions of one document arrive
// in strictly increasing Seq order.
func (x *Index) Insert(v *model.DocumentVersion) {
	x.mu.Lock()
	defer x.mu.Unlock()

	prev := x.chains[v.DocumentID]
	var versions []*model.DocumentVersion
	if prev != nil {
		versions = make([]*model.DocumentVersion, 0, len(prev.versions)+1)
		versions = append(versions, prev.versions...)
	}
	versions = append(versions, v)
	x.chains[v.DocumentID] = &chain{versions: versions}
}

func (x *Index) chain(id model.DocumentID) *chain {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.chains[id]
}

// AsOf resolves the latest version of the document with
// UploadTime <= at. Ties at the same timestamp are broken by the
// strictly increasing commit sequence. A date earlier than the first
// version is a NotFound condition, not a failure: the document did not
// exist yet.
func (x *Index) AsOf(id model.DocumentID, at time.Time) (*model.DocumentVersion, error) {
	c := x.chain(id)
	if c == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "unknown document", goerr.V("document_id", id))
	}

	// First index whose upload time is strictly after `at`; the
	// qualifying version is the one just before it.
	n := sort.Search(len(c.versions), func(i int) bool {
		return c.versions[i].UploadTime.After(at)
	})
	if n == 0 {
		return nil, goerr.Wrap(model.ErrNotFound, "document did not exist at requested time",
			goerr.V("document_id", id), goerr.V("as_of", at))
	}
	return c.versions[n-1], nil
}

// Latest returns the head version of the document.
func (x *Index) Latest(id model.DocumentID) (*model.DocumentVersion, error) {
	c := x.chain(id)
	if c == nil || len(c.versions) == 0 {
		return nil, goerr.Wrap(model.ErrNotFound, "unknown document", goerr.V("document_id", id))
	}
	return c.versions[len(c.versions)-1], nil
}

// Documents lists all known document IDs in unspecified order.
func (x *Index) Documents() []model.DocumentID {
	x.mu.RLock()
	defer x.mu.RUnlock()

	ids := make([]model.DocumentID, 0, len(x.chains))
	for id := range x.chains {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot reconstructs the state of knowledge at the given time: the
// qualifying version per document. Documents that did not exist yet or
// whose qualifying version is a tombstone are absent.
func (x *Index) Snapshot(at time.Time) map[model.DocumentID]*model.DocumentVersion {
	out := make(map[model.DocumentID]*model.DocumentVersion)
	for _, id := range x.Documents() {
		v, err := x.AsOf(id, at)
		if err != nil || v.Tombstone {
			continue
		}
		out[id] = v
	}
	return out
}

// DiffResult describes how the knowledge state changed between two
// points in time.
type DiffResult struct {
	Added   []model.DocumentID
	Changed []model.DocumentID
	Removed []model.DocumentID
}

// Diff set-compares the as-of snapshots at a and b. Added documents
// exist only at b, Removed only at a (retraction), Changed exist at
// both with different qualifying versions.
func (x *Index) Diff(a, b time.Time) *DiffResult {
	snapA := x.Snapshot(a)
	snapB := x.Snapshot(b)

	var result DiffResult
	for id, vb := range snapB {
		va, ok := snapA[id]
		switch {
		case !ok:
			result.Added = append(result.Added, id)
		case va.VersionID != vb.VersionID:
			result.Changed = append(result.Changed, id)
		}
	}
	for id := range snapA {
		if _, ok := snapB[id]; !ok {
			result.Removed = append(result.Removed, id)
		}
	}

	sortIDs(result.Added)
	sortIDs(result.Changed)
	sortIDs(result.Removed)
	return &result
}

func sortIDs(ids []model.DocumentID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
