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


package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/quarrylabs/quarry/ai"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/pipeline"
	"github.com/quarrylabs/quarry/storage"
)

// Config holds the knobs for one reembedding run.
type Config struct {
	// BatchSize is the number of documents embedded per API call.
	BatchSize int

	// ReportInterval is how often progress is reported, in documents.
	ReportInterval int

	// MaxRetries bounds retry attempts around each embedding call.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration
}

// DefaultConfig returns the reembedding defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     time.Second,
	}
}

// Reembedder regenerates the vectors of every document in one knowledge base.
type Reembedder struct {
	documents storage.DocumentStore
	embedder  ai.Embedder
	config    *Config
	progress  io.Writer
}

// NewReembedder creates a reembedder. Progress output goes to progress,
// typically os.Stderr.
func NewReembedder(documents storage.DocumentStore, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	return &Reembedder{
		documents: documents,
		embedder:  embedder,
		config:    config,
		progress:  progress,
	}
}

// Run reembeds every document in the knowledge base.
func (r *Reembedder) Run(ctx context.Context, kbID string) error {
	docs, err := r.documents.ListDocumentsByKB(ctx, kbID)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Fprintf(r.progress, "Knowledge base %s has no documents\n", kbID)
		return nil
	}

	fmt.Fprintf(r.progress, "Reembedding %d documents in %s (batch size %d)\n",
		len(docs), kbID, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, len(docs), r.config.ReportInterval)

	for start := 0; start < len(docs); start += r.config.BatchSize {
		end := min(start+r.config.BatchSize, len(docs))
		if err := r.processBatch(ctx, docs[start:end]); err != nil {
			return err
		}
		tracker.Advance(end - start)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	tracker.Finish()
	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete: %d documents in %v (%.1f docs/sec)\n",
		len(docs), elapsed.Round(time.Second), float64(len(docs))/elapsed.Seconds())
	return nil
}

// processBatch embeds one batch of documents and persists the new vectors.
func (r *Reembedder) processBatch(ctx context.Context, docs []*core.Document) error {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	var vectors [][]float32
	err := pipeline.RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = r.embedder.EmbedTexts(ctx, texts)
		return err
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return fmt.Errorf("failed to embed batch after %d attempts: %w", r.config.MaxRetries, err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(docs), len(vectors))
	}

	for i, doc := range docs {
		vector := pipeline.NormalizeVector(vectors[i])
		if _, err := r.documents.UpdateDocumentVector(ctx, doc.UUID, vector); err != nil {
			return fmt.Errorf("failed to update document %s: %w", doc.UUID, err)
		}
	}
	return nil
}
