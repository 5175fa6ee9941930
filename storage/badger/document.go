package badger

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/storage"
)

// DocumentStore implements storage.DocumentStore for BadgerDB.
type DocumentStore struct {
	backend *Backend
}

var _ storage.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(backend *Backend) (storage.DocumentStore, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &DocumentStore{backend: backend}, nil
}

// Close implements storage.DocumentStore.
func (s *DocumentStore) Close() error {
	return nil
}

// CreateDocument persists an ingested chunk. If a document with the same
// content fingerprint already exists in the knowledge base, the existing
// record is returned and nothing is written, which keeps re-processing
// idempotent.
func (s *DocumentStore) CreateDocument(ctx context.Context, create *core.DocumentCreate) (*core.Document, error) {
	if create == nil || create.Content == "" {
		return nil, errors.New("document create requires content")
	}

	fingerprint := core.IDFromContent(create.Content)
	fingerKey := makeDocumentFingerprintKey(create.KBID, fingerprint)

	var doc *core.Document
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		// Dedup check via the fingerprint index
		item, err := tx.Get(fingerKey)
		if err == nil {
			var existingUUID string
			if err := item.Value(func(val []byte) error {
				existingUUID = string(val)
				return nil
			}); err != nil {
				return err
			}
			doc, err = readDocument(tx, existingUUID)
			return err
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		now := time.Now().UTC()
		doc = &core.Document{
			UUID:          core.NewUUID(),
			DocSinkUUID:   create.DocSinkUUID,
			DocSourceUUID: create.DocSourceUUID,
			KBID:          create.KBID,
			Content:       create.Content,
			Vector:        create.Vector,
			Fingerprint:   fingerprint,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := tx.Set(makeDocumentKey(doc.UUID), storage.MarshalDocument(doc)); err != nil {
			return err
		}
		if err := tx.Set(fingerKey, []byte(doc.UUID)); err != nil {
			return err
		}
		indexKey := makeDocumentSourceKey(doc.DocSourceUUID, doc.UUID)
		if err := tx.Set(indexKey, []byte(doc.UUID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument retrieves a document by UUID.
func (s *DocumentStore) GetDocument(ctx context.Context, uuid string) (*core.Document, error) {
	var doc *core.Document
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		doc, err = readDocument(tx, uuid)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocumentsForSource returns all documents produced for a document source.
func (s *DocumentStore) ListDocumentsForSource(ctx context.Context, docSourceUUID string) ([]*core.Document, error) {
	var uuids []string
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialDocumentSourceKey(docSourceUUID)
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

	docs := make([]*core.Document, 0, len(uuids))
	for _, uuid := range uuids {
		doc, err := s.GetDocument(ctx, uuid)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// FindSimilar finds documents in a knowledge base similar to the given vector.
// Cosine similarity is computed as a dot product; callers are expected to
// store and query with normalized vectors.
func (s *DocumentStore) FindSimilar(ctx context.Context, kbID string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	var results []*core.SearchResult

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var doc *core.Document
			err := iter.Item().Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocument(val)
				return err
			})
			if err != nil {
				return err
			}
			if doc.KBID != kbID || len(doc.Vector) == 0 {
				continue
			}

			similarity := dotProduct(vector, doc.Vector)
			if similarity >= minSimilarity {
				results = append(results, &core.SearchResult{
					Document: doc,
					Score:    similarity,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ListDocumentsByKB returns all documents in a knowledge base.
func (s *DocumentStore) ListDocumentsByKB(ctx context.Context, kbID string) ([]*core.Document, error) {
	var docs []*core.Document
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var doc *core.Document
			err := iter.Item().Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocument(val)
				return err
			})
			if err != nil {
				return err
			}
			if doc.KBID == kbID {
				docs = append(docs, doc)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// UpdateDocumentVector replaces a document's embedding vector.
func (s *DocumentStore) UpdateDocumentVector(ctx context.Context, uuid string, vector []float32) (*core.Document, error) {
	var doc *core.Document
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		doc, err = readDocument(tx, uuid)
		if err != nil {
			return err
		}
		doc.Vector = vector
		doc.UpdatedAt = time.Now().UTC()
		if err := tx.Set(makeDocumentKey(doc.UUID), storage.MarshalDocument(doc)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// readDocument reads and unmarshals a document inside a transaction.
func readDocument(tx *badger.Txn, uuid string) (*core.Document, error) {
	item, err := tx.Get(makeDocumentKey(uuid))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var err error
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// dotProduct computes the dot product of two vectors. Dimension mismatches
// score zero rather than erroring; they only occur when the embedding model
// changed under an existing knowledge base.
func dotProduct(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
