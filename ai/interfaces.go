package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity
// search. Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a
	// batch. The returned slice contains embeddings in the same order as the
	// input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// InferenceCaller runs chat completions against an LLM.
// Implementations must be thread-safe for concurrent use.
type InferenceCaller interface {
	// Call sends a system and user prompt to the model and returns the raw
	// text of the first completion choice.
	Call(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// CallJSON sends the prompts in JSON mode and unmarshals the response
	// into out. Malformed responses are retried a bounded number of times
	// before the parse error is returned.
	CallJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error
}

// AIProvider aggregates AI services for convenient initialization and
// lifecycle management. A provider creates and manages Embedder and
// InferenceCaller instances, ensuring they share configuration.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Caller returns the LLM inference service.
	Caller() InferenceCaller

	// Close releases resources held by the provider and its services.
	Close() error
}
