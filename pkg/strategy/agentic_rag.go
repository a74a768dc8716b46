// Copyright 2025 Kadir Pekel
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

package strategy

import (
	"github.com/fenwick-ai/agentrt/pkg/llm"
	"github.com/fenwick-ai/agentrt/pkg/runctx"
)

// retrievalDirective is the one-off instruction prepended to the
// retrieval phase's LLM call; it is never persisted into the run's
// message history, only used for this single turn (§4.5.2).
const retrievalDirective = "Decide whether retrieving from the available knowledge corpus would help answer the user's request. If so, call the retrieval tool with an appropriate query. If not, respond with no tool call."

// AgenticRAG is the two-phase retrieval-then-reason strategy of §4.5.2.
type AgenticRAG struct {
	RetrievalTools []llm.ToolDefinition // synthetic search_<corpus_id> tools (pkg/retriever.ToolFor)
	OtherTools     []llm.ToolDefinition
	Params         llm.Params
	MaxIterations  int
}

func (a *AgenticRAG) Prepare(rc *runctx.RunContext) error { return nil }

func (a *AgenticRAG) Step(rc *runctx.RunContext) Sequence {
	return func(yield func(Action, error) bool) {
		if !a.retrieve(rc, yield) {
			return
		}
		if rc.Cancelled() {
			return
		}
		react := &React{
			Tools:         append(append([]llm.ToolDefinition{}, a.RetrievalTools...), a.OtherTools...),
			Params:        a.Params,
			MaxIterations: a.MaxIterations,
		}
		react.run(rc, yield)
	}
}

func (a *AgenticRAG) retrieve(rc *runctx.RunContext, yield func(Action, error) bool) bool {
	const step = "retrieval"
	if !yield(stepStart(step), nil) {
		return false
	}

	turnMessages := append(rc.Messages(), llm.Message{Role: "user", Content: retrievalDirective})
	turn, ok := streamTurn(rc, step, turnMessages, a.RetrievalTools, a.Params, yield)
	if !ok {
		return false
	}
	rc.AddUsage(turn.usage)

	if !yield(stepEnd(step), nil) {
		return false
	}

	for _, tc := range turn.toolCalls {
		if !dispatchToolCall(rc, tc, "", yield) {
			return false
		}
		if rc.Cancelled() {
			return false
		}
	}
	return true
}
