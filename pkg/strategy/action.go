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

// Package strategy holds the four reasoning architectures (§4.5): React,
// AgenticRAG, PlanAndExecute, and Reflexion. Each implements the Strategy
// contract by producing a lazy sequence of Actions; it never touches the
// wire directly. The Runtime (pkg/agentrt) is the only component that
// turns an Action into an event and that is the one place ordering and
// the tool-call table are enforced, so a strategy cannot violate §3's
// invariants even if it tries.
package strategy

import (
	"github.com/fenwick-ai/agentrt/pkg/llm"
	"github.com/fenwick-ai/agentrt/pkg/runctx"
	"github.com/fenwick-ai/agentrt/pkg/tool"
)

// Kind tags which Action variant is carried.
type Kind string

const (
	KindStepStart           Kind = "step_start"
	KindStepContent         Kind = "step_content"
	KindStepEnd             Kind = "step_end"
	KindAssistantTextChunk  Kind = "assistant_text_chunk"
	KindRequestToolCall     Kind = "request_tool_call"
	KindRecordToolResult    Kind = "record_tool_result"
	KindFinalAssistantStart Kind = "final_assistant_start"
	KindFinalAssistantChunk Kind = "final_assistant_chunk"
	KindFinalAssistantEnd   Kind = "final_assistant_end"
	KindDone                Kind = "done"
)

// Action is the semantic-action vocabulary of §4.5/§9: the Runtime
// translates each into the matching wire event(s), so a strategy speaks
// in terms of "open a step" rather than "write a STEP_STARTED frame".
type Action struct {
	Kind Kind

	StepName string // StepStart, StepContent, StepEnd
	Delta    string // StepContent, AssistantTextChunk, FinalAssistantChunk

	ToolCall        llm.ToolCall // RequestToolCall
	ParentMessageID string       // RequestToolCall, optional (§6.3 parent_message_id?)

	ToolCallID string      // RecordToolResult
	Result     tool.Result // RecordToolResult, on success
	ToolErr    *tool.Error // RecordToolResult, on failure

	MessageID string // FinalAssistantStart/Chunk/End

	Usage     llm.Usage // Done
	Truncated bool      // Done: hit the iteration cap (§4.5.1)
}

func stepStart(name string) Action  { return Action{Kind: KindStepStart, StepName: name} }
func stepContent(name, d string) Action {
	return Action{Kind: KindStepContent, StepName: name, Delta: d}
}
func stepEnd(name string) Action { return Action{Kind: KindStepEnd, StepName: name} }

func requestToolCall(tc llm.ToolCall, parentMessageID string) Action {
	return Action{Kind: KindRequestToolCall, ToolCall: tc, ParentMessageID: parentMessageID}
}

func recordToolResult(id string, result tool.Result, toolErr *tool.Error) Action {
	return Action{Kind: KindRecordToolResult, ToolCallID: id, Result: result, ToolErr: toolErr}
}

func finalStart(messageID string) Action { return Action{Kind: KindFinalAssistantStart, MessageID: messageID} }
func finalChunk(messageID, delta string) Action {
	return Action{Kind: KindFinalAssistantChunk, MessageID: messageID, Delta: delta}
}
func finalEnd(messageID string) Action { return Action{Kind: KindFinalAssistantEnd, MessageID: messageID} }

func done(usage llm.Usage, truncated bool) Action {
	return Action{Kind: KindDone, Usage: usage, Truncated: truncated}
}

// Sequence is the lazy stream a Strategy produces, matching the same
// yield-bool-to-continue shape as llm.Client.ChatStream so the Runtime
// drives both with the same kind of loop.
type Sequence func(yield func(Action, error) bool)

// Strategy is the capability every reasoning architecture implements
// (§9 "Strategy polymorphism"). Prepare does any one-time setup (e.g.
// AgenticRAG resolving its corpus list); Step runs the whole reasoning
// loop for the run, synchronously driving the LLM Client and Tool
// Registry between yields.
type Strategy interface {
	Prepare(rc *runctx.RunContext) error
	Step(rc *runctx.RunContext) Sequence
}
