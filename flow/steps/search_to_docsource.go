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


package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/flow"
	"github.com/quarrylabs/quarry/web"
)

// Option names exposed by SearchToDocSource.
const (
	OptRetriever   = "retriever"
	OptMaxResults  = "search_max_results"
	OptWaitTimeout = "wait_timeout"
)

// SearchToDocSource creates a search-backed document source for the query
// and sees it through ingestion.
//
// When the knowledge base has auto-schedule enabled, the source is handed
// to the scheduler, starting one if no instance is live, and the step
// blocks until the source finishes or the wait timeout elapses. On
// timeout it logs a warning and returns the source as-is rather than
// failing the flow; downstream steps work with whatever was ingested.
//
// With auto-schedule disabled, the source is processed synchronously
// through the pipeline before the step returns.
type SearchToDocSource struct{}

func (s *SearchToDocSource) Name() string { return "search_to_docsource" }

func (s *SearchToDocSource) Description() string {
	return "Search the web for related documents and ingest them into the knowledge base."
}

func (s *SearchToDocSource) Options() []flow.OptionItem {
	return []flow.OptionItem{
		{
			Name:        OptRetriever,
			Type:        flow.OptionString,
			Default:     "google",
			Description: "Web retriever backend to search with.",
			Explicit:    true,
		},
		{
			Name:        OptMaxResults,
			Type:        flow.OptionInt,
			Default:     "10",
			Description: "Maximum number of search results to ingest.",
			Explicit:    true,
		},
		{
			Name:        OptWaitTimeout,
			Type:        flow.OptionDuration,
			Default:     "10m",
			Description: "How long to wait for scheduled ingestion before continuing with partial results.",
		},
	}
}

func (s *SearchToDocSource) DependsOn() []string { return nil }

// Run creates the search source and waits for its ingestion. When
// keywords is empty, the original query content is searched.
func (s *SearchToDocSource) Run(ctx context.Context, exec *flow.ExecInfo, keywords string) (*core.DocSource, error) {
	if keywords == "" {
		keywords = exec.Query.QueryContent
	}
	if keywords == "" {
		return nil, fmt.Errorf("%w: no search keywords and no query content", core.ErrUnexpectedCase)
	}

	retriever := exec.Options.String(OptRetriever)
	if retriever == "" {
		retriever = exec.Settings.DefaultRetriever
	}

	searchURI := web.SearchURI{
		Retriever:  retriever,
		Query:      keywords,
		MaxResults: exec.Options.Int(OptMaxResults),
		Timestamp:  time.Now(),
	}

	exec.Logger.Info("searching the web",
		"query", keywords, "retriever", retriever, "maxResults", searchURI.MaxResults)

	source, err := exec.DocSources.CreateDocSource(ctx, &core.DocSourceCreate{
		OrgID:       orgID(exec),
		KBID:        exec.KB.ID,
		SourceType:  core.DocSourceSearch,
		URI:         searchURI.String(),
		DisplayName: keywords,
		Ingest: core.IngestConfig{
			ExtraParameters: map[string]string{
				"chat_id":  exec.Query.ChatID,
				"query_id": exec.Query.QueryID,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	exec.TrackDocSource(source.UUID)

	if exec.KB.AutoSchedule {
		return s.runScheduled(ctx, exec, source)
	}
	return s.runSynchronous(ctx, exec, source)
}

// runScheduled hands the source to the scheduler and waits for it.
func (s *SearchToDocSource) runScheduled(ctx context.Context, exec *flow.ExecInfo, source *core.DocSource) (*core.DocSource, error) {
	started, err := exec.Scheduler.Start(ctx, exec.Settings.SchedulerWorkers)
	if err != nil {
		return nil, err
	}
	if started {
		exec.Logger.Info("started scheduler to process the new source")
	} else {
		exec.Logger.Info("scheduler already active, source will be picked up")
	}

	if exec.Scheduler.Running() {
		if err := exec.Scheduler.Submit(ctx, source.UUID); err != nil {
			exec.Logger.Warn("failed to submit source, poll loop will pick it up", "err", err)
		}
	}

	waitTimeout := exec.Options.Duration(OptWaitTimeout)
	if waitTimeout <= 0 {
		waitTimeout = exec.Settings.WaitTimeout
	}

	done, err := exec.Scheduler.WaitForCompletion(ctx, source.UUID, waitTimeout)
	if err != nil {
		return nil, err
	}
	if !done {
		exec.Logger.Warn("document source has not finished processing yet, continuing with partial results",
			"source", source.UUID, "waited", waitTimeout)
		return source, nil
	}

	exec.Logger.Info("document source finished processing", "source", source.UUID)
	return exec.DocSources.GetDocSource(ctx, source.UUID)
}

// runSynchronous drives the pipeline inline, doing the scheduler's status
// bookkeeping itself.
func (s *SearchToDocSource) runSynchronous(ctx context.Context, exec *flow.ExecInfo, source *core.DocSource) (*core.DocSource, error) {
	exec.Logger.Info("processing document source inline", "source", source.UUID)

	processing, err := exec.DocSources.UpdateDocSourceStatus(ctx, source.UUID, core.DocSourceProcessing)
	if err != nil {
		return nil, err
	}

	documents, err := exec.Pipeline.Process(ctx, processing)
	if err != nil {
		if _, ferr := exec.DocSources.MarkDocSourceFailed(ctx, source.UUID); ferr != nil {
			exec.Logger.Error("failed to mark source failed", "source", source.UUID, "err", ferr)
		}
		return nil, err
	}

	exec.Logger.Info("processed document source inline", "source", source.UUID, "chunks", len(documents))
	return exec.DocSources.UpdateDocSourceStatus(ctx, source.UUID, core.DocSourceCompleted)
}

func orgID(exec *flow.ExecInfo) string {
	if exec.Org == nil {
		return ""
	}
	return exec.Org.ID
}
