package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quarrylabs/quarry/ai/mock"
	"github.com/quarrylabs/quarry/core"
	badgerstore "github.com/quarrylabs/quarry/storage/badger"
	"github.com/quarrylabs/quarry/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = `<!doctype html>
<html><body>
<p>Geothermal energy taps heat stored beneath the surface of the earth.</p>
<p>Plants convert that heat into electricity with very low emissions.</p>
</body></html>`

type driverFixture struct {
	stores    *badgerstore.MemoryStores
	embedder  *mock.MockEmbedder
	registry  *web.Registry
	retriever *web.StaticRetriever
	driver    *Driver
}

func newDriverFixture(t *testing.T, opts ...Option) *driverFixture {
	t.Helper()
	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	embedder := mock.NewMockEmbedder()
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockCaller())

	retriever := web.NewStaticRetriever()
	registry := web.NewRegistry()
	registry.Register("google", retriever)

	driver, err := NewDriver(stores.DocSinks, stores.Documents, provider, registry, opts...)
	require.NoError(t, err)

	return &driverFixture{
		stores:    stores,
		embedder:  embedder,
		registry:  registry,
		retriever: retriever,
		driver:    driver,
	}
}

func urlSource(uri string) *core.DocSource {
	return &core.DocSource{
		UUID:       core.NewUUID(),
		KBID:       "kb-1",
		SourceType: core.DocSourceURL,
		URI:        uri,
		Status:     core.DocSourceProcessing,
	}
}

func TestDriver_ProcessURLSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPage))
	}))
	defer server.Close()

	fixture := newDriverFixture(t)
	source := urlSource(server.URL)

	documents, err := fixture.driver.Process(context.Background(), source)
	require.NoError(t, err)
	require.NotEmpty(t, documents)

	// Raw content lands in a sink tied to the source.
	sinks, err := fixture.stores.DocSinks.ListDocSinksForSource(context.Background(), source.UUID)
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	assert.Contains(t, sinks[0].Content, "Geothermal")

	// Chunks are persisted with normalized vectors.
	for _, doc := range documents {
		assert.Equal(t, "kb-1", doc.KBID)
		assert.NotEmpty(t, doc.Content)
		assert.NotEmpty(t, doc.Vector)
	}
}

func TestDriver_ProcessFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	fixture := newDriverFixture(t)

	_, err := fixture.driver.Process(context.Background(), urlSource(server.URL))
	require.Error(t, err)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StageFetch, f.Stage)
}

func TestDriver_ProcessEmbedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPage))
	}))
	defer server.Close()

	fixture := newDriverFixture(t)
	fixture.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedding backend down")
	}

	_, err := fixture.driver.Process(context.Background(), urlSource(server.URL))
	require.Error(t, err)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StageEmbed, f.Stage)
}

func TestDriver_ProcessSearchSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(testPage))
	}))
	defer server.Close()

	fixture := newDriverFixture(t)
	fixture.retriever.SetResults("geothermal energy",
		web.Result{URL: server.URL + "/a"},
		web.Result{URL: server.URL + "/broken"},
		web.Result{URL: server.URL + "/b"},
	)

	source := &core.DocSource{
		UUID:       core.NewUUID(),
		KBID:       "kb-1",
		SourceType: core.DocSourceSearch,
		URI:        web.BuildSearchURI("google", "geothermal energy", time.Now()),
		Status:     core.DocSourceProcessing,
	}

	documents, err := fixture.driver.Process(context.Background(), source)
	require.NoError(t, err)
	assert.NotEmpty(t, documents)

	// The healthy pages produce sinks; the broken page is skipped.
	sinks, err := fixture.stores.DocSinks.ListDocSinksForSource(context.Background(), source.UUID)
	require.NoError(t, err)
	assert.Len(t, sinks, 2)
}

func TestDriver_SearchFanOutHonorsURIMaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPage))
	}))
	defer server.Close()

	fixture := newDriverFixture(t)
	fixture.retriever.SetResults("geothermal energy",
		web.Result{URL: server.URL + "/a"},
		web.Result{URL: server.URL + "/b"},
		web.Result{URL: server.URL + "/c"},
	)

	searchURI := web.SearchURI{
		Retriever:  "google",
		Query:      "geothermal energy",
		MaxResults: 2,
		Timestamp:  time.Now(),
	}
	source := &core.DocSource{
		UUID:       core.NewUUID(),
		KBID:       "kb-1",
		SourceType: core.DocSourceSearch,
		URI:        searchURI.String(),
		Status:     core.DocSourceProcessing,
	}

	_, err := fixture.driver.Process(context.Background(), source)
	require.NoError(t, err)

	// Only the first two result pages are ingested.
	sinks, err := fixture.stores.DocSinks.ListDocSinksForSource(context.Background(), source.UUID)
	require.NoError(t, err)
	assert.Len(t, sinks, 2)
}

func TestDriver_SearchFanOutDefaultBound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPage))
	}))
	defer server.Close()

	fixture := newDriverFixture(t, WithMaxSearchResults(1))
	fixture.retriever.SetResults("geothermal energy",
		web.Result{URL: server.URL + "/a"},
		web.Result{URL: server.URL + "/b"},
	)

	// No bound in the URI falls back to the driver's configured limit.
	source := &core.DocSource{
		UUID:       core.NewUUID(),
		KBID:       "kb-1",
		SourceType: core.DocSourceSearch,
		URI:        web.BuildSearchURI("google", "geothermal energy", time.Now()),
		Status:     core.DocSourceProcessing,
	}

	_, err := fixture.driver.Process(context.Background(), source)
	require.NoError(t, err)

	sinks, err := fixture.stores.DocSinks.ListDocSinksForSource(context.Background(), source.UUID)
	require.NoError(t, err)
	assert.Len(t, sinks, 1)
}

func TestDriver_ProcessSearchAllPagesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fixture := newDriverFixture(t)
	fixture.retriever.SetResults("doomed", web.Result{URL: server.URL + "/x"})

	source := &core.DocSource{
		UUID:       core.NewUUID(),
		KBID:       "kb-1",
		SourceType: core.DocSourceSearch,
		URI:        web.BuildSearchURI("google", "doomed", time.Now()),
	}

	_, err := fixture.driver.Process(context.Background(), source)
	require.Error(t, err)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StageSearch, f.Stage)
}

func TestDriver_ChunkSizeOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPage))
	}))
	defer server.Close()

	fixture := newDriverFixture(t, WithChunking(2000, 0))
	source := urlSource(server.URL)
	source.Ingest.ExtraParameters = map[string]string{"chunk_size": "40"}

	documents, err := fixture.driver.Process(context.Background(), source)
	require.NoError(t, err)
	// A 40-char chunk budget forces the two paragraphs into several chunks.
	assert.Greater(t, len(documents), 1)
}
