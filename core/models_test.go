package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent_Deterministic(t *testing.T) {
	id1 := IDFromContent("the same content")
	id2 := IDFromContent("the same content")
	id3 := IDFromContent("different content")

	assert.Equal(t, id1, id2, "identical content must produce identical IDs")
	assert.NotEqual(t, id1, id3, "different content should produce different IDs")
	assert.NotZero(t, id1)
}

func TestDocSourceStatus_Terminal(t *testing.T) {
	assert.False(t, DocSourceCreated.Terminal())
	assert.False(t, DocSourceProcessing.Terminal())
	assert.True(t, DocSourceCompleted.Terminal())
	assert.True(t, DocSourceFailed.Terminal())
}

func TestLockRecord_Expired(t *testing.T) {
	now := time.Now().UTC()
	lock := &LockRecord{Name: "scheduler", Token: NewUUID(), ExpiresAt: now.Add(time.Minute)}

	assert.False(t, lock.Expired(now))
	assert.True(t, lock.Expired(now.Add(time.Minute)))
	assert.True(t, lock.Expired(now.Add(2*time.Minute)))
}

func TestDocSourceMUS_RoundTrip(t *testing.T) {
	src := DocSource{
		UUID:        NewUUID(),
		OrgID:       "org-default-id",
		KBID:        "kb-1",
		SourceType:  DocSourceSearch,
		URI:         "search://google?q=test&ts=2025-01-02-03-04-05",
		DisplayName: "test",
		Status:      DocSourceProcessing,
		Ingest: IngestConfig{
			FlowOptions:     map[string]string{"chunk_size": "512"},
			ExtraParameters: map[string]string{"chat_id": "c1"},
		},
		RetryCount: 2,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}

	buf := make([]byte, DocSourceMUS.Size(src))
	n := DocSourceMUS.Marshal(src, buf)
	require.Equal(t, len(buf), n)

	got, read, err := DocSourceMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, n, read)
	assert.Equal(t, src.UUID, got.UUID)
	assert.Equal(t, src.Status, got.Status)
	assert.Equal(t, src.Ingest.FlowOptions, got.Ingest.FlowOptions)
	assert.Equal(t, src.RetryCount, got.RetryCount)
	assert.True(t, src.CreatedAt.Equal(got.CreatedAt))
}

func TestDocumentMUS_RoundTrip(t *testing.T) {
	doc := Document{
		UUID:          NewUUID(),
		DocSinkUUID:   NewUUID(),
		DocSourceUUID: NewUUID(),
		KBID:          "kb-1",
		Content:       "a chunk of converted text",
		Vector:        []float32{0.1, 0.2, 0.3},
		Fingerprint:   IDFromContent("a chunk of converted text"),
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}

	buf := make([]byte, DocumentMUS.Size(doc))
	DocumentMUS.Marshal(doc, buf)

	got, _, err := DocumentMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, doc.Vector, got.Vector)
	assert.Equal(t, doc.Fingerprint, got.Fingerprint)
}
