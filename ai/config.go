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


package ai

import (
	"errors"
	"strings"
)

// Config holds configuration for AI service providers.
type Config struct {
	// Host is the base URL for the OpenAI-compatible API.
	// Example: "https://api.openai.com/v1" or "http://localhost:11434/v1"
	Host string

	// APIKey authenticates against the API. Local OpenAI-compatible
	// services that skip authentication may leave this empty.
	APIKey string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "text-embedding-3-small"
	EmbeddingModel string

	// InferenceModel is the model identifier to use for chat completions.
	// Example: "gpt-4o-mini", "qwen2.5:3b"
	InferenceModel string

	// MaxParseRetries bounds how often CallJSON re-asks the model after a
	// malformed JSON response. Default: 3
	MaxParseRetries int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the API base URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithInferenceModel sets the inference model identifier.
func WithInferenceModel(model string) ConfigOption {
	return func(c *Config) {
		c.InferenceModel = model
	}
}

// WithMaxParseRetries sets the JSON parse retry budget.
func WithMaxParseRetries(n int) ConfigOption {
	return func(c *Config) {
		c.MaxParseRetries = n
	}
}

// DefaultConfig returns a Config with defaults for the hosted OpenAI API.
func DefaultConfig() *Config {
	return &Config{
		Host:            "https://api.openai.com/v1",
		EmbeddingModel:  "text-embedding-3-small",
		InferenceModel:  "gpt-4o-mini",
		MaxParseRetries: 3,
	}
}

// NewConfig creates a Config with the default values and applies the
// provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form. It adds the
// /v1 suffix to the host if missing, which most OpenAI-compatible APIs
// (Ollama, LocalAI, vLLM) require.
func (c *Config) Normalize() {
	if c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		c.Host = strings.TrimSuffix(c.Host, "/") + "/v1"
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Host == "" {
		return errors.New("ai config: Host is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.InferenceModel == "" {
		return errors.New("ai config: InferenceModel is required")
	}
	if c.MaxParseRetries < 1 {
		return errors.New("ai config: MaxParseRetries must be at least 1")
	}
	return nil
}
