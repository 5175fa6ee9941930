// Package mock provides test double implementations of the AI service
// interfaces.
//
// The mocks allow tests to run without external AI services and enable
// controlled, deterministic behavior:
//
//   - MockEmbedder: returns deterministic vectors based on text hash
//   - MockCaller: returns canned responses, in order, with behavior injection
//   - MockProvider: aggregates mock embedder and caller
//
//	mockProvider := mock.NewMockProvider()
//	vector, err := mockProvider.Embedder().EmbedText(ctx, "test")
package mock
