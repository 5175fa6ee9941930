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


package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/quarrylabs/quarry/ai"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/storage"
	"github.com/quarrylabs/quarry/web"
)

// defaultMaxSearchResults bounds the fan-out of a search-backed source.
const defaultMaxSearchResults = 10

// Driver runs the ingestion stages for a single document source.
type Driver struct {
	sinks            storage.DocSinkStore
	documents        storage.DocumentStore
	embedder         ai.Embedder
	retrievers       *web.Registry
	fetcher          *Fetcher
	chunkSize        int
	chunkOverlap     int
	maxSearchResults int
	logger           *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// WithChunking sets the chunk size and overlap used when splitting text.
func WithChunking(size, overlap int) Option {
	return func(d *Driver) error {
		if size < 1 {
			return fmt.Errorf("chunk size must be positive, got %d", size)
		}
		if overlap < 0 || overlap >= size {
			return fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, size)
		}
		d.chunkSize = size
		d.chunkOverlap = overlap
		return nil
	}
}

// WithFetcher sets a custom fetcher.
func WithFetcher(fetcher *Fetcher) Option {
	return func(d *Driver) error {
		d.fetcher = fetcher
		return nil
	}
}

// WithMaxSearchResults bounds how many result pages a search-backed
// source fans out to.
func WithMaxSearchResults(n int) Option {
	return func(d *Driver) error {
		if n < 1 {
			return fmt.Errorf("max search results must be positive, got %d", n)
		}
		d.maxSearchResults = n
		return nil
	}
}

// NewDriver creates a pipeline driver.
func NewDriver(
	sinks storage.DocSinkStore,
	documents storage.DocumentStore,
	provider ai.AIProvider,
	retrievers *web.Registry,
	opts ...Option,
) (*Driver, error) {
	if sinks == nil {
		return nil, ErrDocSinkStoreRequired
	}
	if documents == nil {
		return nil, ErrDocumentStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if retrievers == nil {
		return nil, ErrRetrieverRegistryRequired
	}

	d := &Driver{
		sinks:            sinks,
		documents:        documents,
		embedder:         provider.Embedder(),
		retrievers:       retrievers,
		fetcher:          NewFetcher(nil),
		chunkSize:        1000,
		chunkOverlap:     200,
		maxSearchResults: defaultMaxSearchResults,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Process runs the full ingestion for one source and returns the
// persisted document chunks. The caller owns the source's status
// bookkeeping; Process only reports success or failure.
func (d *Driver) Process(ctx context.Context, source *core.DocSource) ([]*core.Document, error) {
	logger := d.logger.With("source", source.UUID, "uri", source.URI)

	if source.SourceType == core.DocSourceSearch || web.IsSearchURI(source.URI) {
		return d.processSearch(ctx, source, logger)
	}
	return d.processPage(ctx, source, source.URI, logger)
}

// processPage ingests a single page: fetch, convert, chunk, embed, persist.
func (d *Driver) processPage(ctx context.Context, source *core.DocSource, uri string, logger *slog.Logger) ([]*core.Document, error) {
	raw, err := d.fetcher.Fetch(ctx, uri)
	if err != nil {
		return nil, failure(StageFetch, err)
	}

	sink, err := d.sinks.CreateDocSink(ctx, &core.DocSinkCreate{
		DocSourceUUID: source.UUID,
		KBID:          source.KBID,
		RawURI:        uri,
		Content:       raw,
	})
	if err != nil {
		return nil, failure(StagePersist, err)
	}

	text, err := convertToText(ctx, raw)
	if err != nil {
		return nil, failure(StageConvert, err)
	}
	if text == "" {
		return nil, failure(StageConvert, fmt.Errorf("%w in %s", ErrEmptyContent, uri))
	}

	chunkSize, chunkOverlap := d.chunkingFor(source)
	chunks, err := chunkText(text, chunkSize, chunkOverlap)
	if err != nil {
		return nil, failure(StageChunk, err)
	}

	vectors, err := d.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return nil, failure(StageEmbed, err)
	}
	if len(vectors) != len(chunks) {
		return nil, failure(StageEmbed,
			fmt.Errorf("embedding result mismatch. expected %d, received %d", len(chunks), len(vectors)))
	}

	documents := make([]*core.Document, 0, len(chunks))
	for i, chunk := range chunks {
		doc, err := d.documents.CreateDocument(ctx, &core.DocumentCreate{
			DocSinkUUID:   sink.UUID,
			DocSourceUUID: source.UUID,
			KBID:          source.KBID,
			Content:       chunk,
			Vector:        NormalizeVector(vectors[i]),
		})
		if err != nil {
			return nil, failure(StagePersist, err)
		}
		documents = append(documents, doc)
	}

	logger.Info("page ingested", "page", uri, "chunks", len(documents))
	return documents, nil
}

// processSearch fans a search-backed source out through its retriever and
// ingests each result page. Individual page failures are logged and
// skipped; the source fails only when no page could be ingested.
func (d *Driver) processSearch(ctx context.Context, source *core.DocSource, logger *slog.Logger) ([]*core.Document, error) {
	searchURI, err := web.ParseSearchURI(source.URI)
	if err != nil {
		return nil, failure(StageSearch, err)
	}

	retriever, err := d.retrievers.Get(searchURI.Retriever)
	if err != nil {
		return nil, failure(StageSearch, err)
	}

	maxResults := searchURI.MaxResults
	if maxResults <= 0 {
		maxResults = d.maxSearchResults
	}

	results, err := retriever.Search(ctx, searchURI.Query, maxResults)
	if err != nil {
		return nil, failure(StageSearch, err)
	}
	if len(results) == 0 {
		logger.Info("search returned no results", "query", searchURI.Query)
		return nil, nil
	}

	var documents []*core.Document
	var pageErrs int
	for _, result := range results {
		docs, err := d.processPage(ctx, source, result.URL, logger)
		if err != nil {
			pageErrs++
			logger.Warn("skipping search result page", "page", result.URL, "err", err)
			continue
		}
		documents = append(documents, docs...)
	}

	if len(documents) == 0 && pageErrs > 0 {
		return nil, failure(StageSearch,
			fmt.Errorf("all %d result pages failed for query %q", pageErrs, searchURI.Query))
	}

	logger.Info("search ingested",
		"query", searchURI.Query,
		"pages", len(results)-pageErrs,
		"failed", pageErrs,
		"chunks", len(documents))
	return documents, nil
}

// chunkingFor resolves the chunk parameters for a source, honoring a
// per-source chunk_size override from its ingest config.
func (d *Driver) chunkingFor(source *core.DocSource) (int, int) {
	chunkSize := d.chunkSize
	if raw, ok := source.Ingest.ExtraParameters["chunk_size"]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			chunkSize = n
		}
	}
	chunkOverlap := d.chunkOverlap
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return chunkSize, chunkOverlap
}
