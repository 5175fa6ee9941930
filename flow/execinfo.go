package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/quarrylabs/quarry/ai"
	"github.com/quarrylabs/quarry/config"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/scheduler"
	"github.com/quarrylabs/quarry/search"
	"github.com/quarrylabs/quarry/storage"
)

// ExecInfo is the per-request execution context. It is constructed once
// per flow invocation, read by every step, and owned exclusively by that
// invocation.
type ExecInfo struct {
	Org     *core.Org
	KB      *core.KnowledgeBase
	User    *core.User
	Query   *core.ChatQueryItem
	Options *Options
	Logger  *slog.Logger

	Settings   *config.Settings
	DocSources storage.DocSourceStore
	Documents  storage.DocumentStore
	Caller     ai.InferenceCaller
	Searcher   *search.Searcher
	Scheduler  *scheduler.Scheduler
	Pipeline   scheduler.Processor

	mu      sync.Mutex
	tracked []string
}

// Validate checks that the context carries everything a step may need.
func (e *ExecInfo) Validate() error {
	switch {
	case e.KB == nil:
		return errorMissing("knowledge base")
	case e.Query == nil:
		return errorMissing("chat query item")
	case e.Options == nil:
		return errorMissing("resolved options")
	case e.Settings == nil:
		return errorMissing("settings")
	case e.DocSources == nil:
		return errorMissing("doc source store")
	}
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	return nil
}

func errorMissing(what string) error {
	return errors.Join(core.ErrUnexpectedCase, errors.New(what+" not provided"))
}

// TrackDocSource records a document source created by this flow so Run
// can mark it failed if a later step aborts the flow.
func (e *ExecInfo) TrackDocSource(uuid string) {
	e.mu.Lock()
	e.tracked = append(e.tracked, uuid)
	e.mu.Unlock()
}

// TrackedDocSources returns the sources created so far by this flow.
func (e *ExecInfo) TrackedDocSources() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.tracked))
	copy(out, e.tracked)
	return out
}

// Flow is a registered query flow: a named component with a hard-coded
// step order and an output article type.
type Flow interface {
	Component

	// ArticleType tags the output shape, e.g. "chat" for a single
	// conversational answer or "research_report" for a sectioned article.
	ArticleType() string

	// Execute runs the flow's steps in order and builds the query result.
	Execute(ctx context.Context, exec *ExecInfo) (*core.ChatQueryResultCreate, error)
}

// Run executes a flow with top-level failure cleanup: when a step aborts
// the flow, every document source the flow created and left non-terminal
// is marked failed before the error is returned.
func Run(ctx context.Context, f Flow, exec *ExecInfo) (*core.ChatQueryResultCreate, error) {
	if err := exec.Validate(); err != nil {
		return nil, err
	}

	result, err := f.Execute(ctx, exec)
	if err == nil {
		return result, nil
	}

	for _, uuid := range exec.TrackedDocSources() {
		source, getErr := exec.DocSources.GetDocSource(ctx, uuid)
		if getErr != nil || source.Status.Terminal() {
			continue
		}
		if source.Status == core.DocSourceCreated {
			if _, uerr := exec.DocSources.UpdateDocSourceStatus(ctx, uuid, core.DocSourceProcessing); uerr != nil {
				exec.Logger.Warn("failed to transition aborted source", "source", uuid, "err", uerr)
				continue
			}
		}
		if _, ferr := exec.DocSources.MarkDocSourceFailed(ctx, uuid); ferr != nil {
			exec.Logger.Warn("failed to mark aborted source failed", "source", uuid, "err", ferr)
		}
	}
	return nil, err
}
