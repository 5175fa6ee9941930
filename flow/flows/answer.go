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


package flows

import (
	"context"
	"time"

	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/flow"
	"github.com/quarrylabs/quarry/flow/steps"
)

// AnswerFlow searches the web for the query, ingests the results into
// the knowledge base, and generates one grounded conversational answer.
type AnswerFlow struct {
	search   *steps.SearchToDocSource
	retrieve *steps.RetrieveContext
	answer   *steps.GenerateAnswer
}

// NewAnswerFlow returns the answer flow.
func NewAnswerFlow() *AnswerFlow {
	return &AnswerFlow{
		search:   &steps.SearchToDocSource{},
		retrieve: &steps.RetrieveContext{},
		answer:   &steps.GenerateAnswer{},
	}
}

func (f *AnswerFlow) Name() string { return "answer" }

func (f *AnswerFlow) Description() string {
	return "Search the web, ingest the results, and answer the query from them."
}

func (f *AnswerFlow) Options() []flow.OptionItem { return nil }

func (f *AnswerFlow) DependsOn() []string {
	return []string{f.search.Name(), f.retrieve.Name(), f.answer.Name()}
}

func (f *AnswerFlow) ArticleType() string { return "chat" }

func (f *AnswerFlow) Execute(ctx context.Context, exec *flow.ExecInfo) (*core.ChatQueryResultCreate, error) {
	if _, err := f.search.Run(ctx, exec, ""); err != nil {
		return nil, err
	}

	results, err := f.retrieve.Run(ctx, exec, "")
	if err != nil {
		return nil, err
	}

	answer, err := f.answer.Run(ctx, exec, "", results)
	if err != nil {
		return nil, err
	}

	return &core.ChatQueryResultCreate{
		ChatID:      exec.Query.ChatID,
		QueryID:     exec.Query.QueryID,
		FlowType:    f.Name(),
		ArticleType: f.ArticleType(),
		Content:     answer,
		CreatedAt:   time.Now(),
	}, nil
}
