// Copyright 2025 Quarry Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


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

// waitPollInterval is how often WaitForDocSource re-reads the source status.
const waitPollInterval = 250 * time.Millisecond

// DocSourceStore implements storage.DocSourceStore for BadgerDB.
type DocSourceStore struct {
	backend *Backend
}

var _ storage.DocSourceStore = (*DocSourceStore)(nil)

// NewDocSourceStore creates a new DocSourceStore.
func NewDocSourceStore(backend *Backend) (storage.DocSourceStore, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &DocSourceStore{backend: backend}, nil
}

// Close implements storage.DocSourceStore. The backend's lifecycle is owned
// by its opener.
func (s *DocSourceStore) Close() error {
	return nil
}

// CreateDocSource persists a new document source in the Created status.
func (s *DocSourceStore) CreateDocSource(ctx context.Context, create *core.DocSourceCreate) (*core.DocSource, error) {
	if err := core.ValidateDocSourceCreate(create); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	source := &core.DocSource{
		UUID:        core.NewUUID(),
		OrgID:       create.OrgID,
		KBID:        create.KBID,
		SourceType:  create.SourceType,
		URI:         create.URI,
		DisplayName: create.DisplayName,
		Status:      core.DocSourceCreated,
		Ingest:      create.Ingest,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeDocSourceKey(source.UUID), storage.MarshalDocSource(source)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return source, nil
}

// GetDocSource retrieves a document source by UUID.
func (s *DocSourceStore) GetDocSource(ctx context.Context, uuid string) (*core.DocSource, error) {
	var source *core.DocSource
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		source, err = readDocSource(tx, uuid)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return source, nil
}

// UpdateDocSourceStatus moves a source to the given status, enforcing the
// monotonic lifecycle.
func (s *DocSourceStore) UpdateDocSourceStatus(ctx context.Context, uuid string, status core.DocSourceStatus) (*core.DocSource, error) {
	return s.mutate(uuid, func(source *core.DocSource) error {
		if err := core.ValidateStatusTransition(source.Status, status); err != nil {
			return err
		}
		source.Status = status
		return nil
	})
}

// MarkDocSourceFailed moves a source to Failed and increments its retry count.
func (s *DocSourceStore) MarkDocSourceFailed(ctx context.Context, uuid string) (*core.DocSource, error) {
	return s.mutate(uuid, func(source *core.DocSource) error {
		if err := core.ValidateStatusTransition(source.Status, core.DocSourceFailed); err != nil {
			return err
		}
		source.Status = core.DocSourceFailed
		source.RetryCount++
		return nil
	})
}

// mutate applies fn to the stored record and writes it back in one transaction.
func (s *DocSourceStore) mutate(uuid string, fn func(*core.DocSource) error) (*core.DocSource, error) {
	var source *core.DocSource
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		source, err = readDocSource(tx, uuid)
		if err != nil {
			return err
		}
		if err := fn(source); err != nil {
			return err
		}
		source.UpdatedAt = time.Now().UTC()
		if err := tx.Set(makeDocSourceKey(uuid), storage.MarshalDocSource(source)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return source, nil
}

// ListDocSourcesByStatus returns all sources in any of the given statuses,
// ordered by creation time.
func (s *DocSourceStore) ListDocSourcesByStatus(ctx context.Context, statuses ...core.DocSourceStatus) ([]*core.DocSource, error) {
	var results []*core.DocSource
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(docSourcePrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var source *core.DocSource
			err := iter.Item().Value(func(val []byte) error {
				var err error
				source, err = storage.UnmarshalDocSource(val)
				return err
			})
			if err != nil {
				return err
			}
			if slices.Contains(statuses, source.Status) {
				results = append(results, source)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.DocSource) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return results, nil
}

// WaitForDocSource blocks until the source reaches a terminal status or the
// timeout elapses. The wait is a plain poll; it holds no locks.
func (s *DocSourceStore) WaitForDocSource(ctx context.Context, uuid string, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		source, err := s.GetDocSource(ctx, uuid)
		if err != nil {
			return false, err
		}
		if source.Status.Terminal() {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}

		timer := time.NewTimer(waitPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
}

// readDocSource reads and unmarshals a source inside a transaction.
func readDocSource(tx *badger.Txn, uuid string) (*core.DocSource, error) {
	item, err := tx.Get(makeDocSourceKey(uuid))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	var source *core.DocSource
	err = item.Value(func(val []byte) error {
		var err error
		source, err = storage.UnmarshalDocSource(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return source, nil
}
