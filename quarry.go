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


package quarry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quarrylabs/quarry/ai"
	"github.com/quarrylabs/quarry/ai/openai"
	"github.com/quarrylabs/quarry/config"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/flow"
	"github.com/quarrylabs/quarry/flow/flows"
	"github.com/quarrylabs/quarry/pipeline"
	"github.com/quarrylabs/quarry/scheduler"
	"github.com/quarrylabs/quarry/search"
	"github.com/quarrylabs/quarry/storage"
	badgerstore "github.com/quarrylabs/quarry/storage/badger"
	"github.com/quarrylabs/quarry/web"
)

// System wires the stores, the AI provider, the ingestion pipeline, the
// scheduler, and the flow registry into one handle. It is the embedding
// API of the engine; the CLI is a thin shell over it.
type System struct {
	settings *config.Settings

	backend    *badgerstore.Backend
	docSources storage.DocSourceStore
	docSinks   storage.DocSinkStore
	documents  storage.DocumentStore
	locks      storage.LockStore

	provider   ai.AIProvider
	retrievers *web.Registry
	driver     *pipeline.Driver
	scheduler  *scheduler.Scheduler
	searcher   *search.Searcher
	registry   *flow.Registry

	logger *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	provider   ai.AIProvider
	retrievers *web.Registry
	logger     *slog.Logger
}

// WithAIProvider substitutes the AI provider, mainly for embedding the
// engine with a mock backend in tests.
func WithAIProvider(provider ai.AIProvider) SystemOption {
	return func(o *systemOptions) { o.provider = provider }
}

// WithRetrieverRegistry substitutes the web retriever registry.
func WithRetrieverRegistry(registry *web.Registry) SystemOption {
	return func(o *systemOptions) { o.retrievers = registry }
}

// WithSystemLogger sets the logger for the system and its components.
func WithSystemLogger(logger *slog.Logger) SystemOption {
	return func(o *systemOptions) { o.logger = logger }
}

// NewSystem opens the storage backend and builds every component from
// the settings.
func NewSystem(settings *config.Settings, opts ...SystemOption) (*System, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	options := &systemOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badgerstore.OpenBackend(settings.DataDir, settings.InMemory)
	if err != nil {
		return nil, err
	}

	docSources, err := badgerstore.NewDocSourceStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	docSinks, err := badgerstore.NewDocSinkStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	documents, err := badgerstore.NewDocumentStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	locks, err := badgerstore.NewLockStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(ai.NewConfig(
			ai.WithAPIKey(settings.OpenAIAPIKey),
			ai.WithInferenceModel(settings.InferenceModel),
			ai.WithEmbeddingModel(settings.EmbeddingModel),
		))
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	retrievers := options.retrievers
	if retrievers == nil {
		retrievers = web.NewRegistry()
		if settings.GoogleAPIKey != "" && settings.GoogleEngineID != "" {
			google, gerr := web.NewGoogleRetriever(settings.GoogleAPIKey, settings.GoogleEngineID)
			if gerr != nil {
				backend.Close()
				return nil, gerr
			}
			retrievers.Register("google", google)
		}
	}

	driver, err := pipeline.NewDriver(docSinks, documents, provider, retrievers,
		pipeline.WithChunking(settings.ChunkSize, settings.ChunkOverlap),
		pipeline.WithLogger(options.logger),
	)
	if err != nil {
		backend.Close()
		return nil, err
	}

	sched, err := scheduler.NewScheduler(docSources, locks, driver, scheduler.Config{
		PollInterval:   settings.PollInterval,
		LockTTL:        settings.LockTTL,
		RetryBaseDelay: settings.RetryBaseDelay,
		RetryMaxDelay:  settings.RetryMaxDelay,
		MaxRetries:     settings.MaxRetries,
		RetryHorizon:   settings.RetryHorizon,
	}, scheduler.WithLogger(options.logger))
	if err != nil {
		backend.Close()
		return nil, err
	}

	searcher, err := search.NewSearcher(documents, provider, search.WithLogger(options.logger))
	if err != nil {
		backend.Close()
		return nil, err
	}

	registry := flow.NewRegistry()
	if err := flows.Register(registry); err != nil {
		backend.Close()
		return nil, err
	}

	return &System{
		settings:   settings,
		backend:    backend,
		docSources: docSources,
		docSinks:   docSinks,
		documents:  documents,
		locks:      locks,
		provider:   provider,
		retrievers: retrievers,
		driver:     driver,
		scheduler:  sched,
		searcher:   searcher,
		registry:   registry,
		logger:     options.logger,
	}, nil
}

// Close stops the scheduler and releases every resource.
func (s *System) Close() error {
	if err := s.scheduler.Stop(context.Background()); err != nil {
		s.logger.Error("error stopping scheduler", "err", err)
	}
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing storage backend", "err", err)
		return err
	}
	return nil
}

// Settings exposes the settings the system was built from.
func (s *System) Settings() *config.Settings { return s.settings }

// DocSourceStore exposes the document source store.
func (s *System) DocSourceStore() storage.DocSourceStore { return s.docSources }

// Embedder exposes the configured embedding backend.
func (s *System) Embedder() ai.Embedder { return s.provider.Embedder() }

// DocumentStore exposes the ingested document store.
func (s *System) DocumentStore() storage.DocumentStore { return s.documents }

// Scheduler exposes the ingestion scheduler.
func (s *System) Scheduler() *scheduler.Scheduler { return s.scheduler }

// Searcher exposes the knowledge-base searcher.
func (s *System) Searcher() *search.Searcher { return s.searcher }

// Registry exposes the flow and step registry.
func (s *System) Registry() *flow.Registry { return s.registry }

// Pipeline exposes the ingestion pipeline driver.
func (s *System) Pipeline() *pipeline.Driver { return s.driver }

// SubmitSource creates a document source in the knowledge base and sees
// it through ingestion. With auto-schedule on the knowledge base, the
// source is handed to the scheduler and this call returns immediately;
// use WaitForSource to block on the outcome. Otherwise the source is
// processed synchronously before the call returns.
func (s *System) SubmitSource(ctx context.Context, kb *core.KnowledgeBase, create *core.DocSourceCreate) (*core.DocSource, error) {
	create.OrgID = kb.OrgID
	create.KBID = kb.ID

	source, err := s.docSources.CreateDocSource(ctx, create)
	if err != nil {
		return nil, err
	}
	s.logger.Info("created document source", "source", source.UUID, "uri", source.URI)

	if kb.AutoSchedule {
		if _, err := s.scheduler.Start(ctx, s.settings.SchedulerWorkers); err != nil {
			return nil, err
		}
		if err := s.scheduler.Submit(ctx, source.UUID); err != nil {
			s.logger.Warn("failed to submit source, poll loop will pick it up", "err", err)
		}
		return source, nil
	}
	return s.processInline(ctx, source)
}

// processInline drives the pipeline for one source, doing the status
// bookkeeping the scheduler would otherwise do.
func (s *System) processInline(ctx context.Context, source *core.DocSource) (*core.DocSource, error) {
	processing, err := s.docSources.UpdateDocSourceStatus(ctx, source.UUID, core.DocSourceProcessing)
	if err != nil {
		return nil, err
	}
	docs, err := s.driver.Process(ctx, processing)
	if err != nil {
		if _, ferr := s.docSources.MarkDocSourceFailed(ctx, source.UUID); ferr != nil {
			s.logger.Error("failed to mark source failed", "source", source.UUID, "err", ferr)
		}
		return nil, err
	}
	s.logger.Info("processed document source", "source", source.UUID, "chunks", len(docs))
	return s.docSources.UpdateDocSourceStatus(ctx, source.UUID, core.DocSourceCompleted)
}

// WaitForSource blocks until the source reaches a terminal status or the
// timeout elapses. Returns true when the source finished in time.
func (s *System) WaitForSource(ctx context.Context, uuid string) (bool, error) {
	return s.scheduler.WaitForCompletion(ctx, uuid, s.settings.WaitTimeout)
}

// RunFlow resolves the flow's options against the query's overrides,
// builds the execution context, and runs the flow.
func (s *System) RunFlow(ctx context.Context, flowType string, org *core.Org, kb *core.KnowledgeBase, user *core.User, query *core.ChatQueryItem) (*core.ChatQueryResultCreate, error) {
	f, err := s.registry.GetFlow(flowType)
	if err != nil {
		return nil, err
	}

	declared, err := s.registry.OptionsFor(flowType)
	if err != nil {
		return nil, err
	}
	options, err := flow.ResolveOptions(declared, query.FlowOptions)
	if err != nil {
		return nil, err
	}

	exec := &flow.ExecInfo{
		Org:     org,
		KB:      kb,
		User:    user,
		Query:   query,
		Options: options,
		Logger:  s.logger.With("flow", flowType, "query", query.QueryID),

		Settings:   s.settings,
		DocSources: s.docSources,
		Documents:  s.documents,
		Caller:     s.provider.Caller(),
		Searcher:   s.searcher,
		Scheduler:  s.scheduler,
		Pipeline:   s.driver,
	}

	s.logger.Info("running flow", "flow", flowType, "query", query.QueryContent)
	result, err := flow.Run(ctx, f, exec)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", flowType, err)
	}
	return result, nil
}
