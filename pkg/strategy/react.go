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
	"github.com/google/uuid"

	"github.com/fenwick-ai/agentrt/pkg/llm"
	"github.com/fenwick-ai/agentrt/pkg/runctx"
)

// DefaultMaxIterations caps a React loop's think/act cycles (§4.5.1 "a
// configurable hard cap on loop iterations prevents infinite loops").
const DefaultMaxIterations = 12

// React is the think/act/observe loop of §4.5.1. It is also the base
// strategy AgenticRAG transitions into and PlanAndExecute runs per-task,
// and the strategy Reflexion wraps.
type React struct {
	Tools         []llm.ToolDefinition
	Params        llm.Params
	MaxIterations int

	// ThinkingStep names the step opened each iteration (default
	// "thinking"). PlanAndExecute's per-task sub-loop does not go through
	// React: it calls executeLoop directly with "executing:<id>" as the
	// step name, so its step log reads as one step per task.
	ThinkingStep string
}

func (r *React) Prepare(rc *runctx.RunContext) error { return nil }

func (r *React) stepName() string {
	if r.ThinkingStep != "" {
		return r.ThinkingStep
	}
	return "thinking"
}

func (r *React) maxIterations() int {
	if r.MaxIterations > 0 {
		return r.MaxIterations
	}
	return DefaultMaxIterations
}

func (r *React) Step(rc *runctx.RunContext) Sequence {
	return func(yield func(Action, error) bool) {
		r.run(rc, yield)
	}
}

// run drives the loop directly (rather than through Step) so AgenticRAG
// can transition into it without going through the Sequence wrapper twice.
func (r *React) run(rc *runctx.RunContext, yield func(Action, error) bool) {
	text, truncated, ok := executeLoop(rc, r.stepName(), r.Tools, r.Params, r.maxIterations(), yield)
	if !ok {
		return
	}
	if truncated {
		r.truncate(rc, yield)
		return
	}
	r.finish(rc, text, yield)
}

// executeLoop is the think/act/observe core shared by React and
// PlanAndExecute's per-task sub-loop (§4.5.1, §4.5.3): open a step, stream
// a turn, dispatch any requested tool calls, repeat until a turn requests
// none or the iteration cap is hit. It stops short of emitting a final
// assistant message — callers decide whether the loop's output is the
// run's actual final answer (React) or one task's output feeding a later
// synthesis step (PlanAndExecute).
func executeLoop(rc *runctx.RunContext, step string, tools []llm.ToolDefinition, params llm.Params, maxIterations int, yield func(Action, error) bool) (text string, truncated bool, ok bool) {
	for iteration := 0; iteration < maxIterations; iteration++ {
		if rc.Cancelled() {
			return "", false, false
		}
		if !yield(stepStart(step), nil) {
			return "", false, false
		}

		turn, streamOK := streamTurn(rc, step, rc.Messages(), tools, params, yield)
		if !streamOK {
			return "", false, false
		}
		rc.AddUsage(turn.usage)

		if !yield(stepEnd(step), nil) {
			return "", false, false
		}

		if len(turn.toolCalls) == 0 {
			return turn.text, false, true
		}

		rc.AppendMessage(llm.Message{Role: "assistant", Content: turn.text, ToolCalls: turn.toolCalls})
		for _, tc := range turn.toolCalls {
			if !dispatchToolCall(rc, tc, "", yield) {
				return "", false, false
			}
			if rc.Cancelled() {
				return "", false, false
			}
		}
	}
	return "", true, true
}

// truncate emits the iteration-cap-exhausted notice (§4.5.1: "on
// exhaustion the strategy emits a truncation notice and finishes with
// stop_reason=length").
func (r *React) truncate(rc *runctx.RunContext, yield func(Action, error) bool) {
	messageID := uuid.NewString()
	if !yield(finalStart(messageID), nil) {
		return
	}
	const truncationNotice = "I've reached my reasoning step limit before finishing this request."
	if !yield(finalChunk(messageID, truncationNotice), nil) {
		return
	}
	if !yield(finalEnd(messageID), nil) {
		return
	}
	yield(done(rc.Usage(), true), nil)
}

// finish emits the run's final assistant message once a turn ends with no
// further tool calls requested. text is that turn's buffered content.
//
// Open question resolved (§9): the buffered "thinking" text is re-streamed
// as the final answer rather than spending a second LLM turn to restate
// it — a plain React loop's last assistant turn already contains the
// answer, and a fresh final turn would double the token cost for the same
// content without the model having anything new to add. PlanAndExecute
// issues a dedicated synthesis turn for its final answer instead of going
// through this path. Reflexion captures the text emitted here as its
// candidate and re-emits it under its own message id once it is accepted
// or the retry cap is reached, without a further LLM turn.
func (r *React) finish(rc *runctx.RunContext, text string, yield func(Action, error) bool) {
	rc.AppendMessage(llm.Message{Role: "assistant", Content: text})

	messageID := uuid.NewString()
	if !yield(finalStart(messageID), nil) {
		return
	}
	if !yield(finalChunk(messageID, text), nil) {
		return
	}
	if !yield(finalEnd(messageID), nil) {
		return
	}
	yield(done(rc.Usage(), false), nil)
}
