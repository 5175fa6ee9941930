package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// ID is a content fingerprint for persisted artifacts.
// Identical content always produces the same ID, which is what makes
// re-processing a document source idempotent at the artifact level.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// NewUUID returns a random record identifier.
func NewUUID() string {
	return uuid.NewString()
}

// DocSourceStatus tracks a document source through its ingestion lifecycle.
// Transitions are monotonic: Created -> Processing -> {Completed, Failed}.
// Failed re-enters Processing only through a scheduler retry.
type DocSourceStatus int

const (
	// DocSourceCreated is the initial status of a new document source.
	DocSourceCreated DocSourceStatus = iota + 1
	// DocSourceProcessing means a worker currently owns the source.
	DocSourceProcessing
	// DocSourceCompleted is a terminal status: ingestion succeeded.
	DocSourceCompleted
	// DocSourceFailed means the last attempt failed. The status is terminal
	// once the retry budget is exhausted.
	DocSourceFailed
)

// String returns the status name used in logs and CLI output.
func (s DocSourceStatus) String() string {
	switch s {
	case DocSourceCreated:
		return "created"
	case DocSourceProcessing:
		return "processing"
	case DocSourceCompleted:
		return "completed"
	case DocSourceFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status value ends the source lifecycle.
// Whether a Failed source still has retry budget is the scheduler's concern,
// not the status value's.
func (s DocSourceStatus) Terminal() bool {
	return s == DocSourceCompleted || s == DocSourceFailed
}

// DocSourceType identifies where a document source's content comes from.
type DocSourceType int

const (
	// DocSourceURL is a single web page or file URL.
	DocSourceURL DocSourceType = iota + 1
	// DocSourceSearch is a saved web search query.
	DocSourceSearch
	// DocSourceLocal is a path on the local filesystem.
	DocSourceLocal
)

// String returns the source type name.
func (t DocSourceType) String() string {
	switch t {
	case DocSourceURL:
		return "url"
	case DocSourceSearch:
		return "search"
	case DocSourceLocal:
		return "local"
	default:
		return "unknown"
	}
}

// IngestConfig carries per-source processing configuration set at intake time.
type IngestConfig struct {
	FlowOptions     map[string]string // flow options in effect when the source was created
	ExtraParameters map[string]string // opaque parameters, e.g. originating chat/query ids
}

// DocSource is a unit of intake: a URL, a local path, or a saved search query.
// Sources are created by intake operations and mutated only by the pipeline
// driver and the scheduler. The core never deletes them.
type DocSource struct {
	UUID        string
	OrgID       string
	KBID        string
	SourceType  DocSourceType
	URI         string
	DisplayName string
	Status      DocSourceStatus
	Ingest      IngestConfig
	RetryCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DocSourceCreate is the intake payload for a new document source.
type DocSourceCreate struct {
	OrgID       string
	KBID        string
	SourceType  DocSourceType
	URI         string
	DisplayName string
	Ingest      IngestConfig
}

// DocSink is the raw fetched content for one document source. A crawl or a
// search may yield many sinks for a single source.
type DocSink struct {
	UUID          string
	DocSourceUUID string
	KBID          string
	RawURI        string // where the content was fetched from
	Content       string // raw content before conversion
	Fingerprint   ID
	CreatedAt     time.Time
}

// DocSinkCreate is the payload for persisting fetched raw content.
type DocSinkCreate struct {
	DocSourceUUID string
	KBID          string
	RawURI        string
	Content       string
}

// Document is one ingested chunk with its embedding vector. Documents are
// keyed by content fingerprint so re-processing the same source does not
// duplicate them.
type Document struct {
	UUID          string
	DocSinkUUID   string
	DocSourceUUID string
	KBID          string
	Content       string
	Vector        []float32
	Fingerprint   ID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DocumentCreate is the payload for persisting an ingested chunk.
type DocumentCreate struct {
	DocSinkUUID   string
	DocSourceUUID string
	KBID          string
	Content       string
	Vector        []float32
}

// LockRecord is a named advisory lock with lease expiry, stored in the shared
// store so that separate processes coordinate correctly.
type LockRecord struct {
	Name      string
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the lease has lapsed at the given instant.
func (l *LockRecord) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// Org is the organization a query or source belongs to.
type Org struct {
	ID   string
	Name string
}

// KnowledgeBase groups document sources and their ingested documents.
type KnowledgeBase struct {
	ID           string
	OrgID        string
	Name         string
	AutoSchedule bool // when true new sources are handed to the scheduler
	ChunkSize    int  // 0 means use the configured default
}

// User identifies the caller of a flow or intake operation.
type User struct {
	ID   string
	Name string
}

// ChatQueryItem is the originating query for one flow invocation.
type ChatQueryItem struct {
	ChatID       string
	QueryID      string
	QueryContent string
	FlowOptions  map[string]string // caller-supplied option overrides
}

// QueryMetadata carries optional analysis of the query itself.
type QueryMetadata struct {
	Intention string
	Language  string
	Keywords  []string
}

// ResultSection is one titled section of a multi-section article result.
type ResultSection struct {
	Title   string
	Content string
}

// ChatQueryResultCreate is the result of one flow invocation, ready to be
// appended to the chat history by the caller.
type ChatQueryResultCreate struct {
	ChatID      string
	QueryID     string
	FlowType    string
	ArticleType string
	Content     string
	Sections    []ResultSection
	Metadata    *QueryMetadata
	CreatedAt   time.Time
}

// SearchResult is a document match from vector similarity search.
type SearchResult struct {
	Document *Document
	Score    float32
}

// Topic is a planned article topic with the prompt used to write its section.
type Topic struct {
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

// TopicList is the structured output of the topic planning step.
type TopicList struct {
	Topics []Topic `json:"topics"`
}
