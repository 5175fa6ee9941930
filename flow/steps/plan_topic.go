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


package steps

import (
	"context"
	"fmt"

	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/flow"
)

// Option names exposed by PlanTopic.
const (
	OptNumSections        = "num_of_sections"
	OptArticleStyle       = "article_style"
	OptContentInstruction = "content_instruction"
)

const defaultContentInstruction = "Please only include the topics related to the above subject most."

const topicPlanTemplate = `Given the related content below, {{.num_of_section_instruction}}
from the content as the outline for {{.article_style}} for this subject:

{{.query}}

{{.content_instruction}}

For each topic, also generate a prompt that can guide the model to find the most
relevant information and write a detailed section about it.

Return the result as a JSON object in the following format:

{
    "topics": [
        { "title": "Topic 1", "prompt": "Prompt for topic 1" },
        { "title": "Topic 2", "prompt": "Prompt for topic 2" }
    ]
}

Here is the related content:
{{.content}}
`

// PlanTopic reads retrieved content and asks the model for a list of
// topics worth a dedicated section, each with the prompt used to write it.
type PlanTopic struct{}

func (s *PlanTopic) Name() string { return "plan_topic" }

func (s *PlanTopic) Description() string {
	return "Generate a topic plan for the article from the retrieved content."
}

func (s *PlanTopic) Options() []flow.OptionItem {
	return []flow.OptionItem{
		{
			Name:        OptNumSections,
			Type:        flow.OptionInt,
			Default:     "0",
			Description: "Number of sections to plan; 0 lets the model decide.",
			Explicit:    true,
		},
		{
			Name:        OptArticleStyle,
			Type:        flow.OptionString,
			Default:     "analytical research report",
			Description: "Style of the article the topics are planned for.",
			Explicit:    true,
		},
		{
			Name:        OptContentInstruction,
			Type:        flow.OptionString,
			Default:     defaultContentInstruction,
			Description: "Extra instruction constraining which topics to include.",
		},
	}
}

func (s *PlanTopic) DependsOn() []string { return nil }

// Run plans the topics for the query from content, usually the rendered
// retrieval context.
func (s *PlanTopic) Run(ctx context.Context, exec *flow.ExecInfo, content string) (*core.TopicList, error) {
	if exec.Caller == nil {
		return nil, fmt.Errorf("%w: no inference caller configured", core.ErrUnexpectedCase)
	}

	numSections := exec.Options.Int(OptNumSections)
	var sectionInstruction string
	switch {
	case numSections <= 0:
		sectionInstruction = "generate a list of most relevant topics"
	case numSections == 1:
		sectionInstruction = "generate a topic"
	default:
		sectionInstruction = fmt.Sprintf("generate %d most relevant topics", numSections)
	}

	articleStyle := exec.Options.String(OptArticleStyle)
	contentInstruction := exec.Options.String(OptContentInstruction)

	userPrompt, err := flow.RenderPrompt("topic_plan", topicPlanTemplate, map[string]any{
		"num_of_section_instruction": sectionInstruction,
		"article_style":              articleStyle,
		"query":                      exec.Query.QueryContent,
		"content_instruction":        contentInstruction,
		"content":                    content,
	})
	if err != nil {
		return nil, err
	}

	systemPrompt := fmt.Sprintf("You are an expert of writing %s for the specified query.", articleStyle)

	exec.Logger.Info("planning topics for the article", "style", articleStyle, "sections", numSections)

	var topics core.TopicList
	if err := exec.Caller.CallJSON(ctx, systemPrompt, userPrompt, &topics); err != nil {
		return nil, err
	}
	if len(topics.Topics) == 0 {
		return nil, fmt.Errorf("%w: topic planning returned no topics", core.ErrUnexpectedCase)
	}
	if numSections > 0 && len(topics.Topics) > numSections {
		topics.Topics = topics.Topics[:numSections]
	}

	exec.Logger.Info("planned article topics", "topics", len(topics.Topics))
	return &topics, nil
}
