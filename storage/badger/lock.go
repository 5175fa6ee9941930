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
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/storage"
)

// LockStore implements storage.LockStore on BadgerDB records. Mutual
// exclusion comes from Badger's transaction conflict detection: two
// concurrent acquires of the same name read and write the same key, so at
// most one commit succeeds.
type LockStore struct {
	backend *Backend
}

var _ storage.LockStore = (*LockStore)(nil)

// NewLockStore creates a new LockStore.
func NewLockStore(backend *Backend) (storage.LockStore, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &LockStore{backend: backend}, nil
}

// Close implements storage.LockStore.
func (s *LockStore) Close() error {
	return nil
}

// AcquireLock attempts to take the named lock. Returns false when another
// live lease holds it or when the acquire loses a commit race.
func (s *LockStore) AcquireLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	key := makeLockKey(name)

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if err == nil {
			var current *core.LockRecord
			if err := item.Value(func(val []byte) error {
				var err error
				current, err = storage.UnmarshalLockRecord(val)
				return err
			}); err != nil {
				return err
			}
			// A live lease owned by someone else blocks the acquire.
			if current.Token != token && !current.Expired(now) {
				return core.ErrLeaseHeld
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		lock := &core.LockRecord{
			Name:      name,
			Token:     token,
			ExpiresAt: now.Add(ttl),
		}
		if err := tx.Set(key, storage.MarshalLockRecord(lock)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err != nil {
		// Both a held lease and a lost commit race mean "not acquired".
		if errors.Is(err, core.ErrLeaseHeld) || errors.Is(err, badger.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReleaseLock releases the named lock if the token matches the current holder.
func (s *LockStore) ReleaseLock(ctx context.Context, name, token string) error {
	key := makeLockKey(name)

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		var current *core.LockRecord
		if err := item.Value(func(val []byte) error {
			var err error
			current, err = storage.UnmarshalLockRecord(val)
			return err
		}); err != nil {
			return err
		}
		if current.Token != token {
			return nil
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if errors.Is(err, badger.ErrConflict) {
		// Someone re-acquired concurrently; their lease stands.
		return nil
	}
	return err
}
