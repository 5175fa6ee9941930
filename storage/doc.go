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


// Package storage provides the storage abstraction layer for quarry.
//
// This package defines store interfaces that decouple the scheduler, pipeline
// and flow engine from any particular persistence engine. The core consumes
// these contracts; it never depends on how a store indexes or queries data.
//
// # Constructor Return Type Pattern
//
// Public constructors in implementation packages return the interfaces defined
// here to enforce abstraction and keep backends swappable:
//
//	store, err := badger.NewDocSourceStore(backend) // returns storage.DocSourceStore
//
// # Architecture
//
//   - DocSourceStore: intake records and their status lifecycle, plus the
//     WaitForDocSource primitive the scheduler's wait mechanism is built on
//   - DocSinkStore: raw fetched content, 0..N per source
//   - DocumentStore: ingested chunks with embedding vectors and similarity search
//   - LockStore: named advisory locks with lease expiry, used for the
//     single-active-scheduler lock and the per-source worker leases
//
// # Thread Safety
//
// All store implementations must be thread-safe. The stores provide
// read-after-write consistency for a single source's status field; the
// per-source lease in LockStore is the only mutual-exclusion primitive the
// core relies on beyond that.
package storage
