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

// Package llm is the provider-agnostic LLM Client capability (§4.1): chat,
// chat_stream, and the shared Message/ToolCall/Chunk vocabulary every
// provider and every strategy speaks. Providers live in sibling files
// (anthropic.go, openai.go); none of their SDK types leak past this
// package's boundary.
package llm

import "context"

// Message is one entry in the conversation handed to a provider. It is the
// universal shape strategies build and providers translate to their own
// wire format.
type Message struct {
	Role       string     `json:"role"` // "user", "assistant", "system", "tool"
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set when Role == "tool"
	Name       string     `json:"name,omitempty"`
}

// ToolDefinition is a tool advertised to the model, converted from the Tool
// Registry's Definition (pkg/tool).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a call the model requested, with arguments already parsed.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	RawArgs   string         `json:"raw_args"`
}

// FinishReason is provider-independent (§4.1).
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	FinishError     FinishReason = "error"
)

// Params controls a single chat/chat_stream call. Model/APIKey/BaseURL are
// frozen at client construction (§4.1); Params covers the remaining
// per-call knobs.
type Params struct {
	Temperature   float64
	TopP          float64
	MaxTokens     int
	SystemPrompt  string
	StructuredOut *StructuredOutput
}

// StructuredOutput asks the provider to constrain its reply to a JSON
// schema. Used by the PlanAndExecute strategy's plan-parsing call (see
// SPEC_FULL §4, "structured-output LLM calls").
type StructuredOutput struct {
	Name   string
	Schema map[string]any
}

// Usage is token accounting surfaced on a finished chat call or stream.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletedReply is the result of a non-streaming chat call.
type CompletedReply struct {
	Text      string
	ToolCalls []ToolCall
	Finish    FinishReason
	Usage     Usage
}

// ChunkKind tags the variant carried by a Chunk.
type ChunkKind string

const (
	ChunkText     ChunkKind = "text"
	ChunkToolArgs ChunkKind = "tool_args"
	ChunkFinish   ChunkKind = "finish"
)

// ToolCallDelta is one fragment of a tool call accumulating across chunks
// of the same stream. Index is stable across chunks of the same call (the
// core's requirement, §4.1) even when providers key tool calls differently
// on the wire (OpenAI: array index; Anthropic: content-block index).
type ToolCallDelta struct {
	Index     int
	ID        string // set on the chunk that opens the call
	Name      string // set on the chunk that opens the call
	ArgsDelta string // incremental JSON text for this call's arguments
}

// Chunk is one element of a chat_stream sequence (§4.1).
type Chunk struct {
	Kind     ChunkKind
	Text     string
	ToolCall *ToolCallDelta
	Finish   FinishReason
	Usage    Usage
	Err      error
}

// Client is the provider-agnostic capability every strategy depends on.
// Implementations never retry internally (§9 "Retry policy" design note —
// retries are strategy-local so failure semantics stay explicit).
type Client interface {
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition, params Params) (CompletedReply, error)

	// ChatStream returns a lazy sequence of Chunks. The sequence ends
	// after yielding exactly one ChunkFinish chunk. When the call fails,
	// that chunk carries FinishError and the same error is also passed as
	// the yield's error argument.
	ChatStream(ctx context.Context, messages []Message, tools []ToolDefinition, params Params) func(yield func(Chunk, error) bool)

	ModelName() string
	Close() error
}
