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
	"context"

	"github.com/fenwick-ai/agentrt/pkg/llm"
	"github.com/fenwick-ai/agentrt/pkg/tool"
)

// fakeClient replays one Chunk sequence per Chat/ChatStream call, in
// order, so a test can script a multi-turn conversation (e.g. a turn that
// requests a tool call, followed by a turn that answers).
type fakeClient struct {
	turns []fakeTurn
	calls int
}

type fakeTurn struct {
	chunks []llm.Chunk
}

func textTurn(text string, usage llm.Usage) fakeTurn {
	return fakeTurn{chunks: []llm.Chunk{
		{Kind: llm.ChunkText, Text: text},
		{Kind: llm.ChunkFinish, Finish: llm.FinishStop, Usage: usage},
	}}
}

func toolCallTurn(id, name, rawArgs string, usage llm.Usage) fakeTurn {
	return fakeTurn{chunks: []llm.Chunk{
		{Kind: llm.ChunkToolArgs, ToolCall: &llm.ToolCallDelta{Index: 0, ID: id, Name: name}},
		{Kind: llm.ChunkToolArgs, ToolCall: &llm.ToolCallDelta{Index: 0, ArgsDelta: rawArgs}},
		{Kind: llm.ChunkFinish, Finish: llm.FinishToolCalls, Usage: usage},
	}}
}

func (f *fakeClient) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, params llm.Params) (llm.CompletedReply, error) {
	return llm.CompletedReply{}, nil
}

func (f *fakeClient) ChatStream(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, params llm.Params) func(yield func(llm.Chunk, error) bool) {
	turn := f.turns[f.calls]
	f.calls++
	return func(yield func(llm.Chunk, error) bool) {
		for _, c := range turn.chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}

func (f *fakeClient) ModelName() string { return "fake-model" }
func (f *fakeClient) Close() error      { return nil }

// fakeTool is a minimal tool.Invoker for exercising dispatchToolCall.
type fakeTool struct {
	name    string
	content string
	err     error
}

func (f *fakeTool) Definition() tool.Definition {
	return tool.Definition{Name: f.name, Description: "fake tool"}
}

func (f *fakeTool) Invoke(ctx context.Context, arguments map[string]any) (tool.Result, error) {
	if f.err != nil {
		return tool.Result{}, f.err
	}
	return tool.Result{Content: f.content}, nil
}
