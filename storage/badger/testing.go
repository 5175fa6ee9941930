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

import "github.com/quarrylabs/quarry/storage"

// MemoryStores bundles the in-memory stores used by tests.
type MemoryStores struct {
	DocSources storage.DocSourceStore
	DocSinks   storage.DocSinkStore
	Documents  storage.DocumentStore
	Locks      storage.LockStore
	Backend    *Backend
}

// NewMemoryStores creates in-memory stores over a shared backend for testing.
// Caller must close the backend when done.
func NewMemoryStores() (*MemoryStores, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	docSources, err := NewDocSourceStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	docSinks, err := NewDocSinkStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	documents, err := NewDocumentStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	locks, err := NewLockStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &MemoryStores{
		DocSources: docSources,
		DocSinks:   docSinks,
		Documents:  documents,
		Locks:      locks,
		Backend:    backend,
	}, nil
}

// Close closes the shared backend.
func (m *MemoryStores) Close() error {
	return m.Backend.Close()
}
