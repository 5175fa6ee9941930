// Package reembed regenerates the embedding vectors of the documents in
// a knowledge base. It is the recovery path after switching embedding
// models: similarity search scores vectors from different models as
// unrelated, so every stored document must be re-embedded before search
// works again.
//
// Documents are processed in batches with progress reporting and
// retry with exponential backoff around the embedding calls.
package reembed
