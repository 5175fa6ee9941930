package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocSinkStore_CreateAndList(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	sink, err := stores.DocSinks.CreateDocSink(ctx, &core.DocSinkCreate{
		DocSourceUUID: "src-1",
		KBID:          "kb-1",
		RawURI:        "https://example.com/a",
		Content:       "raw page content",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sink.UUID)
	assert.NotZero(t, sink.Fingerprint)

	_, err = stores.DocSinks.CreateDocSink(ctx, &core.DocSinkCreate{
		DocSourceUUID: "src-1",
		KBID:          "kb-1",
		RawURI:        "https://example.com/b",
		Content:       "other raw content",
	})
	require.NoError(t, err)

	sinks, err := stores.DocSinks.ListDocSinksForSource(ctx, "src-1")
	require.NoError(t, err)
	assert.Len(t, sinks, 2)
}

func TestDocumentStore_FingerprintDedup(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	create := &core.DocumentCreate{
		DocSinkUUID:   "sink-1",
		DocSourceUUID: "src-1",
		KBID:          "kb-1",
		Content:       "chunk content",
		Vector:        []float32{0.1, 0.2, 0.3},
	}

	first, err := stores.Documents.CreateDocument(ctx, create)
	require.NoError(t, err)

	// Same content in the same KB resolves to the existing record.
	second, err := stores.Documents.CreateDocument(ctx, create)
	require.NoError(t, err)
	assert.Equal(t, first.UUID, second.UUID)

	// Same content in another KB is a distinct record.
	other := *create
	other.KBID = "kb-2"
	third, err := stores.Documents.CreateDocument(ctx, &other)
	require.NoError(t, err)
	assert.NotEqual(t, first.UUID, third.UUID)
}

func TestDocumentStore_FindSimilar(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	vectors := map[string][]float32{
		"close":    {1, 0, 0},
		"closer":   {0.9, 0.1, 0},
		"far":      {0, 0, 1},
		"other-kb": {1, 0, 0},
	}
	for name, vec := range vectors {
		kbID := "kb-1"
		if name == "other-kb" {
			kbID = "kb-2"
		}
		_, err := stores.Documents.CreateDocument(ctx, &core.DocumentCreate{
			DocSinkUUID:   "sink-1",
			DocSourceUUID: "src-1",
			KBID:          kbID,
			Content:       name,
			Vector:        vec,
		})
		require.NoError(t, err)
	}

	results, err := stores.Documents.FindSimilar(ctx, "kb-1", []float32{1, 0, 0}, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "close", results[0].Document.Content)
	assert.Equal(t, "closer", results[1].Document.Content)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	// Limit caps the result set at the top matches.
	results, err = stores.Documents.FindSimilar(ctx, "kb-1", []float32{1, 0, 0}, 0.5, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "close", results[0].Document.Content)
}

func TestDocumentStore_ListByKB(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	for i, kb := range []string{"kb-1", "kb-1", "kb-2"} {
		_, err := stores.Documents.CreateDocument(ctx, &core.DocumentCreate{
			DocSinkUUID:   "sink-1",
			DocSourceUUID: "src-1",
			KBID:          kb,
			Content:       fmt.Sprintf("chunk %d", i),
			Vector:        []float32{1, 0, 0},
		})
		require.NoError(t, err)
	}

	docs, err := stores.Documents.ListDocumentsByKB(ctx, "kb-1")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = stores.Documents.ListDocumentsByKB(ctx, "kb-3")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDocumentStore_UpdateVector(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	doc, err := stores.Documents.CreateDocument(ctx, &core.DocumentCreate{
		DocSinkUUID:   "sink-1",
		DocSourceUUID: "src-1",
		KBID:          "kb-1",
		Content:       "chunk to reembed",
		Vector:        []float32{1, 0, 0},
	})
	require.NoError(t, err)

	updated, err := stores.Documents.UpdateDocumentVector(ctx, doc.UUID, []float32{0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, updated.Vector)

	reread, err := stores.Documents.GetDocument(ctx, doc.UUID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, reread.Vector)

	_, err = stores.Documents.UpdateDocumentVector(ctx, "no-such-doc", []float32{1})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
