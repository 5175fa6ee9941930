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


package mock

import "github.com/quarrylabs/quarry/ai"

// MockProvider is a test double for ai.AIProvider.
type MockProvider struct {
	embedder *MockEmbedder
	caller   *MockCaller
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.AIProvider for consistency with production constructors.
// Use GetMockEmbedder()/GetMockCaller() to access concrete types for test
// assertions.
func NewMockProvider() ai.AIProvider {
	return &MockProvider{
		embedder: NewMockEmbedder(),
		caller:   NewMockCaller(),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock
// services, for full control over each service's behavior.
func NewMockProviderWithServices(embedder *MockEmbedder, caller *MockCaller) ai.AIProvider {
	return &MockProvider{
		embedder: embedder,
		caller:   caller,
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Caller returns the mock caller.
func (p *MockProvider) Caller() ai.InferenceCaller {
	return p.caller
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockCaller returns the underlying mock caller for test assertions.
func (p *MockProvider) GetMockCaller() *MockCaller {
	return p.caller
}
