package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/storage"
)

// DocSinkStore implements storage.DocSinkStore for BadgerDB.
type DocSinkStore struct {
	backend *Backend
}

var _ storage.DocSinkStore = (*DocSinkStore)(nil)

// NewDocSinkStore creates a new DocSinkStore.
func NewDocSinkStore(backend *Backend) (storage.DocSinkStore, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &DocSinkStore{backend: backend}, nil
}

// Close implements storage.DocSinkStore.
func (s *DocSinkStore) Close() error {
	return nil
}

// CreateDocSink persists raw content for a document source.
func (s *DocSinkStore) CreateDocSink(ctx context.Context, create *core.DocSinkCreate) (*core.DocSink, error) {
	if create == nil || create.DocSourceUUID == "" {
		return nil, errors.New("docsink create requires a docsource uuid")
	}

	sink := &core.DocSink{
		UUID:          core.NewUUID(),
		DocSourceUUID: create.DocSourceUUID,
		KBID:          create.KBID,
		RawURI:        create.RawURI,
		Content:       create.Content,
		Fingerprint:   core.IDFromContent(create.Content),
		CreatedAt:     time.Now().UTC(),
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeDocSinkKey(sink.UUID), storage.MarshalDocSink(sink)); err != nil {
			return err
		}
		indexKey := makeDocSinkSourceKey(sink.DocSourceUUID, sink.UUID)
		if err := tx.Set(indexKey, []byte(sink.UUID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// GetDocSink retrieves a sink by UUID.
func (s *DocSinkStore) GetDocSink(ctx context.Context, uuid string) (*core.DocSink, error) {
	var sink *core.DocSink
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDocSinkKey(uuid))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			sink, err = storage.UnmarshalDocSink(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// ListDocSinksForSource returns all sinks produced for a document source.
func (s *DocSinkStore) ListDocSinksForSource(ctx context.Context, docSourceUUID string) ([]*core.DocSink, error) {
	var uuids []string
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialDocSinkSourceKey(docSourceUUID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				uuids = append(uuids, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sinks := make([]*core.DocSink, 0, len(uuids))
	for _, uuid := range uuids {
		sink, err := s.GetDocSink(ctx, uuid)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}
