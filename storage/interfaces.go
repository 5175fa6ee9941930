package storage

import (
	"context"
	"time"

	"github.com/quarrylabs/quarry/core"
)

// DocSourceStore manages document source records and their status lifecycle.
type DocSourceStore interface {
	// CreateDocSource persists a new document source in the Created status.
	// UUID and timestamps are populated by the store.
	CreateDocSource(ctx context.Context, create *core.DocSourceCreate) (*core.DocSource, error)

	// GetDocSource retrieves a document source by UUID.
	// Returns ErrNotFound if it doesn't exist.
	GetDocSource(ctx context.Context, uuid string) (*core.DocSource, error)

	// UpdateDocSourceStatus moves a source to the given status, enforcing the
	// monotonic lifecycle. Returns the updated record.
	UpdateDocSourceStatus(ctx context.Context, uuid string, status core.DocSourceStatus) (*core.DocSource, error)

	// MarkDocSourceFailed moves a source to Failed and increments its retry
	// count in one transaction.
	MarkDocSourceFailed(ctx context.Context, uuid string) (*core.DocSource, error)

	// ListDocSourcesByStatus returns all sources currently in any of the given
	// statuses, ordered by creation time.
	ListDocSourcesByStatus(ctx context.Context, statuses ...core.DocSourceStatus) ([]*core.DocSource, error)

	// WaitForDocSource blocks until the source reaches a terminal status or
	// the timeout elapses. Returns true if the source finished in time.
	// The wait never holds any lock or lease.
	WaitForDocSource(ctx context.Context, uuid string, timeout time.Duration) (bool, error)

	// Close releases store resources.
	Close() error
}

// DocSinkStore manages the raw fetched content produced for document sources.
type DocSinkStore interface {
	// CreateDocSink persists raw content for a source. The fingerprint is
	// computed from the content; creating the same content twice returns the
	// existing record.
	CreateDocSink(ctx context.Context, create *core.DocSinkCreate) (*core.DocSink, error)

	// GetDocSink retrieves a sink by UUID.
	// Returns ErrNotFound if it doesn't exist.
	GetDocSink(ctx context.Context, uuid string) (*core.DocSink, error)

	// ListDocSinksForSource returns all sinks produced for a document source.
	ListDocSinksForSource(ctx context.Context, docSourceUUID string) ([]*core.DocSink, error)

	// Close releases store resources.
	Close() error
}

// DocumentStore manages ingested document chunks and similarity search over them.
type DocumentStore interface {
	// CreateDocument persists an ingested chunk. Documents are keyed by
	// content fingerprint: creating a chunk whose fingerprint already exists
	// in the knowledge base returns the existing record instead of a duplicate.
	CreateDocument(ctx context.Context, create *core.DocumentCreate) (*core.Document, error)

	// GetDocument retrieves a document by UUID.
	// Returns ErrNotFound if it doesn't exist.
	GetDocument(ctx context.Context, uuid string) (*core.Document, error)

	// ListDocumentsForSource returns all documents produced for a document source.
	ListDocumentsForSource(ctx context.Context, docSourceUUID string) ([]*core.Document, error)

	// ListDocumentsByKB returns all documents in a knowledge base.
	ListDocumentsByKB(ctx context.Context, kbID string) ([]*core.Document, error)

	// UpdateDocumentVector replaces a document's embedding vector.
	// Returns ErrNotFound if the document doesn't exist.
	UpdateDocumentVector(ctx context.Context, uuid string, vector []float32) (*core.Document, error)

	// FindSimilar finds documents in a knowledge base similar to the given
	// vector. Returns documents with similarity >= minSimilarity, up to limit
	// results, ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, kbID string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// Close releases store resources.
	Close() error
}

// LockStore provides named advisory locks with lease expiry. Both the
// single-active-scheduler lock and the per-source worker leases are built on
// it, so a multi-process deployment coordinates through the shared store.
type LockStore interface {
	// AcquireLock attempts to take the named lock with the given token and
	// TTL. Returns false when another live lease holds the lock. A holder may
	// re-acquire with its own token to renew the lease.
	AcquireLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error)

	// ReleaseLock releases the named lock if the token matches the current
	// holder; releasing a lock held by someone else is a no-op.
	ReleaseLock(ctx context.Context, name, token string) error

	// Close releases store resources.
	Close() error
}
