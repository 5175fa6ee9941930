package steps

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quarrylabs/quarry/ai/mock"
	"github.com/quarrylabs/quarry/config"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/flow"
	"github.com/quarrylabs/quarry/scheduler"
	"github.com/quarrylabs/quarry/search"
	badgerstore "github.com/quarrylabs/quarry/storage/badger"
	"github.com/quarrylabs/quarry/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPipeline is a scheduler.Processor with scriptable behavior.
type stubPipeline struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *stubPipeline) Process(ctx context.Context, source *core.DocSource) ([]*core.Document, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return []*core.Document{{UUID: "doc-1", DocSourceUUID: source.UUID}}, nil
}

func (p *stubPipeline) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type stepFixture struct {
	stores   *badgerstore.MemoryStores
	embedder *mock.MockEmbedder
	caller   *mock.MockCaller
	pipeline *stubPipeline
	exec     *flow.ExecInfo
}

// newStepFixture builds an ExecInfo over in-memory stores with options
// resolved from the given steps plus any caller overrides.
func newStepFixture(t *testing.T, overrides map[string]string, components ...flow.Component) *stepFixture {
	t.Helper()

	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	embedder := mock.NewMockEmbedder()
	caller := mock.NewMockCaller()
	provider := mock.NewMockProviderWithServices(embedder, caller)

	searcher, err := search.NewSearcher(stores.Documents, provider)
	require.NoError(t, err)

	var declared []flow.OptionItem
	for _, c := range components {
		declared = append(declared, c.Options()...)
	}
	options, err := flow.ResolveOptions(declared, overrides)
	require.NoError(t, err)

	pipeline := &stubPipeline{}

	settings := config.Default()
	settings.WaitTimeout = 5 * time.Second
	settings.SchedulerWorkers = 2

	sched, err := scheduler.NewScheduler(stores.DocSources, stores.Locks, pipeline, scheduler.Config{
		PollInterval:   20 * time.Millisecond,
		LockTTL:        5 * time.Second,
		RetryBaseDelay: 10 * time.Millisecond,
		RetryMaxDelay:  40 * time.Millisecond,
		MaxRetries:     3,
		RetryHorizon:   time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { sched.Stop(context.Background()) })

	exec := &flow.ExecInfo{
		Org:   &core.Org{ID: "org-1", Name: "org"},
		KB:    &core.KnowledgeBase{ID: "kb-1", OrgID: "org-1", Name: "kb"},
		User:  &core.User{ID: "user-1"},
		Query: &core.ChatQueryItem{ChatID: "chat-1", QueryID: "query-1", QueryContent: "what is a borrow checker"},

		Options:    options,
		Settings:   settings,
		DocSources: stores.DocSources,
		Documents:  stores.Documents,
		Caller:     caller,
		Searcher:   searcher,
		Scheduler:  sched,
		Pipeline:   pipeline,
	}
	require.NoError(t, exec.Validate())

	return &stepFixture{
		stores:   stores,
		embedder: embedder,
		caller:   caller,
		pipeline: pipeline,
		exec:     exec,
	}
}

func TestSearchToDocSource_SynchronousCompletes(t *testing.T) {
	step := &SearchToDocSource{}
	fx := newStepFixture(t, nil, step)
	fx.exec.KB.AutoSchedule = false

	source, err := step.Run(context.Background(), fx.exec, "rust borrow checker")
	require.NoError(t, err)

	assert.Equal(t, core.DocSourceCompleted, source.Status)
	assert.Equal(t, core.DocSourceSearch, source.SourceType)
	assert.Contains(t, source.URI, "search://google?")
	assert.Contains(t, source.URI, "q=rust+borrow+checker")
	assert.Equal(t, "chat-1", source.Ingest.ExtraParameters["chat_id"])
	assert.Equal(t, 1, fx.pipeline.callCount())
	assert.Equal(t, []string{source.UUID}, fx.exec.TrackedDocSources())
}

func TestSearchToDocSource_MaxResultsOverrideReachesURI(t *testing.T) {
	step := &SearchToDocSource{}
	fx := newStepFixture(t, map[string]string{OptMaxResults: "3"}, step)
	fx.exec.KB.AutoSchedule = false

	source, err := step.Run(context.Background(), fx.exec, "rust borrow checker")
	require.NoError(t, err)

	// The resolved limit travels with the source so the pipeline's search
	// fan-out honors it.
	uri, err := web.ParseSearchURI(source.URI)
	require.NoError(t, err)
	assert.Equal(t, 3, uri.MaxResults)
}

func TestSearchToDocSource_MaxResultsDefaultReachesURI(t *testing.T) {
	step := &SearchToDocSource{}
	fx := newStepFixture(t, nil, step)
	fx.exec.KB.AutoSchedule = false

	source, err := step.Run(context.Background(), fx.exec, "rust borrow checker")
	require.NoError(t, err)

	uri, err := web.ParseSearchURI(source.URI)
	require.NoError(t, err)
	assert.Equal(t, 10, uri.MaxResults)
}

func TestSearchToDocSource_SynchronousFailureMarksSourceFailed(t *testing.T) {
	step := &SearchToDocSource{}
	fx := newStepFixture(t, nil, step)
	fx.pipeline.err = errors.New("fetch exploded")

	_, err := step.Run(context.Background(), fx.exec, "rust borrow checker")
	require.Error(t, err)

	tracked := fx.exec.TrackedDocSources()
	require.Len(t, tracked, 1)
	source, err := fx.stores.DocSources.GetDocSource(context.Background(), tracked[0])
	require.NoError(t, err)
	assert.Equal(t, core.DocSourceFailed, source.Status)
}

func TestSearchToDocSource_ScheduledCompletes(t *testing.T) {
	step := &SearchToDocSource{}
	fx := newStepFixture(t, map[string]string{OptWaitTimeout: "3s"}, step)
	fx.exec.KB.AutoSchedule = true

	source, err := step.Run(context.Background(), fx.exec, "go scheduler internals")
	require.NoError(t, err)

	assert.Equal(t, core.DocSourceCompleted, source.Status)
	assert.Equal(t, 1, fx.pipeline.callCount())
}

func TestSearchToDocSource_EmptyKeywordsUsesQuery(t *testing.T) {
	step := &SearchToDocSource{}
	fx := newStepFixture(t, nil, step)

	source, err := step.Run(context.Background(), fx.exec, "")
	require.NoError(t, err)
	assert.Equal(t, "what is a borrow checker", source.DisplayName)
}

func TestSearchToDocSource_NoQueryAtAll(t *testing.T) {
	step := &SearchToDocSource{}
	fx := newStepFixture(t, nil, step)
	fx.exec.Query.QueryContent = ""

	_, err := step.Run(context.Background(), fx.exec, "")
	assert.ErrorIs(t, err, core.ErrUnexpectedCase)
}

func TestRetrieveContext_ReturnsTopHits(t *testing.T) {
	step := &RetrieveContext{}
	fx := newStepFixture(t, map[string]string{OptTopK: "2"}, step)
	ctx := context.Background()

	fx.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}
	for _, seed := range []struct {
		content string
		vector  []float32
	}{
		{"borrow checker enforces ownership", []float32{0.95, 0.05, 0}},
		{"ownership and lifetimes", []float32{0.85, 0.15, 0}},
		{"garbage collection pauses", []float32{0.80, 0.20, 0}},
	} {
		_, err := fx.stores.Documents.CreateDocument(ctx, &core.DocumentCreate{
			DocSinkUUID:   "sink-1",
			DocSourceUUID: "src-1",
			KBID:          "kb-1",
			Content:       seed.content,
			Vector:        seed.vector,
		})
		require.NoError(t, err)
	}

	results, err := step.Run(ctx, fx.exec, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "borrow checker enforces ownership", results[0].Document.Content)
}

func TestRetrieveContext_EmptyKnowledgeBaseIsNotAnError(t *testing.T) {
	step := &RetrieveContext{}
	fx := newStepFixture(t, nil, step)

	fx.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}

	results, err := step.Run(context.Background(), fx.exec, "anything")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRenderContext(t *testing.T) {
	rendered := RenderContext([]*core.SearchResult{
		{Document: &core.Document{Content: "first chunk"}},
		{Document: &core.Document{Content: "  second chunk  "}},
	})
	assert.Equal(t, "[1] first chunk\n\n[2] second chunk", rendered)

	assert.Empty(t, RenderContext(nil))
}

func TestPlanTopic_ParsesTopicList(t *testing.T) {
	step := &PlanTopic{}
	fx := newStepFixture(t, map[string]string{OptNumSections: "2"}, step)

	fx.caller.Enqueue(`{"topics": [
		{"title": "Ownership", "prompt": "Explain ownership."},
		{"title": "Lifetimes", "prompt": "Explain lifetimes."},
		{"title": "Extra", "prompt": "Should be trimmed."}
	]}`)

	topics, err := step.Run(context.Background(), fx.exec, "[1] some retrieved content")
	require.NoError(t, err)
	require.Len(t, topics.Topics, 2)
	assert.Equal(t, "Ownership", topics.Topics[0].Title)

	prompts := fx.caller.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "generate 2 most relevant topics")
	assert.Contains(t, prompts[0], "what is a borrow checker")
	assert.Contains(t, prompts[0], "[1] some retrieved content")
}

func TestPlanTopic_ModelDecidesSectionCount(t *testing.T) {
	step := &PlanTopic{}
	fx := newStepFixture(t, nil, step)

	fx.caller.Enqueue(`{"topics": [{"title": "A", "prompt": "p"}]}`)

	_, err := step.Run(context.Background(), fx.exec, "content")
	require.NoError(t, err)
	assert.Contains(t, fx.caller.Prompts()[0], "generate a list of most relevant topics")
}

func TestPlanTopic_EmptyPlanIsAnError(t *testing.T) {
	step := &PlanTopic{}
	fx := newStepFixture(t, nil, step)

	fx.caller.Enqueue(`{"topics": []}`)

	_, err := step.Run(context.Background(), fx.exec, "content")
	assert.ErrorIs(t, err, core.ErrUnexpectedCase)
}

func TestGenerateAnswer_GroundsPromptInContext(t *testing.T) {
	step := &GenerateAnswer{}
	fx := newStepFixture(t, nil, step)

	fx.caller.Enqueue("The borrow checker enforces ownership at compile time.")

	answer, err := step.Run(context.Background(), fx.exec, "", []*core.SearchResult{
		{Document: &core.Document{Content: "ownership rules"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "The borrow checker enforces ownership at compile time.", answer)

	prompt := fx.caller.Prompts()[0]
	assert.Contains(t, prompt, "what is a borrow checker")
	assert.Contains(t, prompt, "[1] ownership rules")
}

func TestGenerateAnswer_ToleratesEmptyContext(t *testing.T) {
	step := &GenerateAnswer{}
	fx := newStepFixture(t, map[string]string{OptWordCount: "50"}, step)

	fx.caller.Enqueue("I could not find anything about that.")

	_, err := step.Run(context.Background(), fx.exec, "obscure topic", nil)
	require.NoError(t, err)

	prompt := fx.caller.Prompts()[0]
	assert.Contains(t, prompt, "No relevant reference content")
	assert.Contains(t, prompt, "roughly 50 words")
}

func TestStepsDeclareDistinctOptionNames(t *testing.T) {
	seen := map[string]string{}
	for _, c := range []flow.Component{
		&SearchToDocSource{}, &RetrieveContext{}, &PlanTopic{}, &GenerateAnswer{},
	} {
		for _, item := range c.Options() {
			if owner, dup := seen[item.Name]; dup {
				t.Fatalf("option %q declared by both %s and %s", item.Name, owner, c.Name())
			}
			seen[item.Name] = c.Name()
		}
	}
}
