package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/futureready/retain/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// badgerLog is the durable Log backed by BadgerDB. Layout:
//
//	log/<document_id>/<seq, zero padded>  -> JSON Record
//	doc/<document_id>                     -> head seq
//
// The doc/ keys form the global index mapping a document to its log
// location; both keys are written in one transaction so a crash can
// never leave a version without its index entry.
type badgerLog struct {
	db *badger.DB
}

// OpenBadgerLog opens (or creates) a durable version log at path.
// Synchronous writes are enabled: Append returning nil means the
// version is on disk.
func OpenBadgerLog(path string) (Log, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open badger log", goerr.V("path", path))
	}
	return &badgerLog{db: db}, nil
}

// OpenBadgerLogInMemory opens a volatile badger-backed log for tests.
func OpenBadgerLogInMemory() (Log, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open in-memory badger log")
	}
	return &badgerLog{db: db}, nil
}

func logKey(id model.DocumentID, seq int) []byte {
	return []byte(fmt.Sprintf("log/%s/%08d", id, seq))
}

func docKey(id model.DocumentID) []byte {
	return []byte("doc/" + string(id))
}

func (l *badgerLog) Append(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return goerr.Wrap(err, "context cancelled before log append")
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return goerr.Wrap(err, "failed to encode log record")
	}

	v := rec.Version
	err = l.db.Update(func(txn *badger.Txn) error {
		// A pre-existing key at this seq means the store's
		// per-document serialization was violated.
		if _, err := txn.Get(logKey(v.DocumentID, v.Seq)); err == nil {
			return goerr.Wrap(model.ErrConflict, "log position already written",
				goerr.V("document_id", v.DocumentID), goerr.V("seq", v.Seq))
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if err := txn.Set(logKey(v.DocumentID, v.Seq), raw); err != nil {
			return err
		}
		return txn.Set(docKey(v.DocumentID), []byte(fmt.Sprintf("%d", v.Seq)))
	})
	if err != nil {
		return goerr.Wrap(err, "failed to append log record",
			goerr.V("document_id", v.DocumentID), goerr.V("seq", v.Seq))
	}
	return nil
}

func (l *badgerLog) Replay(ctx context.Context, fn func(rec *Record) error) error {
	return l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("log/")

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return goerr.Wrap(err, "context cancelled during replay")
			}

			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return goerr.Wrap(err, "failed to decode log record",
					goerr.V("key", string(it.Item().Key())))
			}
			if err := fn(&rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *badgerLog) Close() error {
	return l.db.Close()
}
