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


package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quarrylabs/quarry/ai"
	"github.com/quarrylabs/quarry/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Caller implements ai.InferenceCaller using OpenAI-compatible chat APIs.
type Caller struct {
	client          llms.Model
	maxParseRetries int
	logger          *slog.Logger
}

// newCaller is an internal constructor that returns the concrete type.
func newCaller(config *ai.Config) (*Caller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.Host),
		openai.WithToken(apiToken(config)),
		openai.WithModel(config.InferenceModel),
	)
	if err != nil {
		return nil, err
	}

	return &Caller{
		client:          client,
		maxParseRetries: config.MaxParseRetries,
		logger:          slog.Default().With("component", "openai-caller"),
	}, nil
}

// NewCaller creates a new inference caller using the provided configuration.
func NewCaller(config *ai.Config) (ai.InferenceCaller, error) {
	return newCaller(config)
}

// Call sends a system and user prompt to the model and returns the raw text
// of the first completion choice.
func (c *Caller) Call(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	response, err := c.generate(ctx, systemPrompt, userPrompt, llms.WithTemperature(0.0))
	if err != nil {
		return "", err
	}
	if len(response.Choices) < 1 {
		c.logger.Debug("no choices returned from model")
		return "", fmt.Errorf("%w: model returned no choices", core.ErrCallFailure)
	}
	return response.Choices[0].Content, nil
}

// CallJSON sends the prompts in JSON mode and unmarshals the response into
// out. Malformed JSON is re-asked up to the configured retry budget.
func (c *Caller) CallJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error {
	var lastErr error
	for attempt := 0; attempt < c.maxParseRetries; attempt++ {
		response, err := c.generate(ctx, systemPrompt, userPrompt,
			llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			c.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return err
		}

		if len(response.Choices) < 1 {
			c.logger.Debug("no choices returned from model")
			return fmt.Errorf("%w: model returned no choices", core.ErrCallFailure)
		}

		responseText := stripCodeFences(response.Choices[0].Content)
		responseText = repairJSON(responseText)

		if err := json.Unmarshal([]byte(responseText), out); err != nil {
			lastErr = err
			c.logger.Warn("error parsing model response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}
		return nil
	}

	c.logger.Error("failed to parse model response after retries", "err", lastErr)
	return fmt.Errorf("%w: %v", core.ErrCallFailure, lastErr)
}

func (c *Caller) generate(ctx context.Context, systemPrompt, userPrompt string, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(userPrompt)},
		},
	}
	return c.client.GenerateContent(ctx, content, opts...)
}

// stripCodeFences removes markdown code fences that some models wrap around
// JSON output despite JSON mode.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
