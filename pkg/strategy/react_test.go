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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-ai/agentrt/pkg/llm"
	"github.com/fenwick-ai/agentrt/pkg/runctx"
	"github.com/fenwick-ai/agentrt/pkg/tool"
)

func collectActions(seq Sequence) ([]Action, error) {
	var actions []Action
	var yieldErr error
	seq(func(a Action, err error) bool {
		if err != nil {
			yieldErr = err
			return false
		}
		actions = append(actions, a)
		return true
	})
	return actions, yieldErr
}

func newTestRunContext(client llm.Client, invokers []tool.Invoker) *runctx.RunContext {
	reg, err := tool.NewRegistry(invokers)
	if err != nil {
		panic(err)
	}
	return runctx.New(context.Background(), "run-1", "thread-1", reg, client, nil)
}

func TestReact_NoToolCalls_FinishesImmediately(t *testing.T) {
	client := &fakeClient{turns: []fakeTurn{textTurn("the answer", llm.Usage{PromptTokens: 5, CompletionTokens: 5, TotalTokens: 10})}}
	rc := newTestRunContext(client, nil)
	r := &React{}

	actions, err := collectActions(r.Step(rc))
	require.NoError(t, err)
	require.NotEmpty(t, actions)

	assert.Equal(t, KindStepStart, actions[0].Kind)
	assert.Equal(t, KindDone, actions[len(actions)-1].Kind)
	assert.False(t, actions[len(actions)-1].Truncated)

	var sawFinalText bool
	for _, a := range actions {
		if a.Kind == KindFinalAssistantChunk && a.Delta == "the answer" {
			sawFinalText = true
		}
	}
	assert.True(t, sawFinalText)
}

func TestReact_OneToolCallThenAnswer(t *testing.T) {
	client := &fakeClient{turns: []fakeTurn{
		toolCallTurn("call-1", "search", `{"q":"go"}`, llm.Usage{}),
		textTurn("found it", llm.Usage{}),
	}}
	rc := newTestRunContext(client, []tool.Invoker{&fakeTool{name: "search", content: "result"}})
	r := &React{}

	actions, err := collectActions(r.Step(rc))
	require.NoError(t, err)

	var kinds []Kind
	for _, a := range actions {
		kinds = append(kinds, a.Kind)
	}
	assert.Contains(t, kinds, KindRequestToolCall)
	assert.Contains(t, kinds, KindRecordToolResult)
	assert.Equal(t, KindDone, kinds[len(kinds)-1])

	msgs := rc.Messages()
	var sawToolMessage bool
	for _, m := range msgs {
		if m.Role == "tool" && m.Content == "result" {
			sawToolMessage = true
		}
	}
	assert.True(t, sawToolMessage)
}

func TestReact_IterationCapEmitsTruncation(t *testing.T) {
	turns := make([]fakeTurn, 0, 3)
	for i := 0; i < 3; i++ {
		turns = append(turns, toolCallTurn("call", "search", `{}`, llm.Usage{}))
	}
	client := &fakeClient{turns: turns}
	rc := newTestRunContext(client, []tool.Invoker{&fakeTool{name: "search", content: "x"}})
	r := &React{MaxIterations: 3}

	actions, err := collectActions(r.Step(rc))
	require.NoError(t, err)

	last := actions[len(actions)-1]
	assert.Equal(t, KindDone, last.Kind)
	assert.True(t, last.Truncated)
}

func TestReact_CancelledRunContextStopsLoop(t *testing.T) {
	client := &fakeClient{turns: []fakeTurn{textTurn("unused", llm.Usage{})}}
	rc := newTestRunContext(client, nil)
	rc.Cancel()
	r := &React{}

	actions, err := collectActions(r.Step(rc))
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestReact_StreamErrorPropagates(t *testing.T) {
	rc := newTestRunContext(&erroringClient{}, nil)
	r := &React{}

	_, err := collectActions(r.Step(rc))
	assert.Error(t, err)
}

type erroringClient struct{}

func (e *erroringClient) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, params llm.Params) (llm.CompletedReply, error) {
	return llm.CompletedReply{}, assertErr
}

func (e *erroringClient) ChatStream(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, params llm.Params) func(yield func(llm.Chunk, error) bool) {
	return func(yield func(llm.Chunk, error) bool) {
		yield(llm.Chunk{}, assertErr)
	}
}

func (e *erroringClient) ModelName() string { return "erroring" }
func (e *erroringClient) Close() error      { return nil }

var assertErr = &testError{"stream transport failure"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
