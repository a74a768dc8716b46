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

package runctx

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-ai/agentrt/pkg/llm"
)

func newTestContext(seed ...llm.Message) *RunContext {
	return New(context.Background(), "run-1", "thread-1", nil, nil, seed)
}

func TestNew_CopiesSeedMessages(t *testing.T) {
	seed := []llm.Message{{Role: "user", Content: "hi"}}
	rc := newTestContext(seed...)
	seed[0].Content = "mutated"
	assert.Equal(t, "hi", rc.Messages()[0].Content)
}

func TestAppendMessage(t *testing.T) {
	rc := newTestContext()
	rc.AppendMessage(llm.Message{Role: "assistant", Content: "hello"})
	msgs := rc.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestCancel_IsIdempotentAndObservable(t *testing.T) {
	rc := newTestContext()
	assert.False(t, rc.Cancelled())
	rc.Cancel()
	rc.Cancel()
	assert.True(t, rc.Cancelled())
	assert.Error(t, rc.Context().Err())
}

func TestPushStep_PreservesOrder(t *testing.T) {
	rc := newTestContext()
	rc.PushStep("thinking")
	rc.PushStep("acting")
	assert.Equal(t, []string{"thinking", "acting"}, rc.Steps())
}

func TestBeginToolCall_RejectsDuplicateID(t *testing.T) {
	rc := newTestContext()
	assert.True(t, rc.BeginToolCall("call-1", "search"))
	assert.False(t, rc.BeginToolCall("call-1", "search"))
}

func TestEndToolCall_RequiresPriorBegin(t *testing.T) {
	rc := newTestContext()
	assert.False(t, rc.EndToolCall("call-1"))

	rc.BeginToolCall("call-1", "search")
	assert.True(t, rc.EndToolCall("call-1"))

	rec, ok := rc.ToolCall("call-1")
	require.True(t, ok)
	assert.True(t, rec.Finished)
}

func TestAddUsage_Accumulates(t *testing.T) {
	rc := newTestContext()
	rc.AddUsage(llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	rc.AddUsage(llm.Usage{PromptTokens: 2, CompletionTokens: 1, TotalTokens: 3})
	usage := rc.Usage()
	assert.Equal(t, 12, usage.PromptTokens)
	assert.Equal(t, 6, usage.CompletionTokens)
	assert.Equal(t, 18, usage.TotalTokens)
}

func TestRunContext_ConcurrentAccessIsSafe(t *testing.T) {
	rc := newTestContext()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			rc.AppendMessage(llm.Message{Role: "assistant", Content: "x"})
		}(i)
		go func(i int) {
			defer wg.Done()
			rc.AddUsage(llm.Usage{PromptTokens: 1})
		}(i)
	}
	wg.Wait()
	assert.Len(t, rc.Messages(), 50)
	assert.Equal(t, 50, rc.Usage().PromptTokens)
}
