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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-ai/agentrt/pkg/llm"
	"github.com/fenwick-ai/agentrt/pkg/tool"
)

func TestAgenticRAG_NoRetrievalCall_TransitionsToReactAndFinishes(t *testing.T) {
	client := &fakeClient{turns: []fakeTurn{
		textTurn("", llm.Usage{}),       // retrieval phase: declines to call the search tool
		textTurn("the answer", llm.Usage{}), // react phase
	}}
	rc := newTestRunContext(client, nil)
	a := &AgenticRAG{}

	actions, err := collectActions(a.Step(rc))
	require.NoError(t, err)

	var kinds []Kind
	for _, act := range actions {
		kinds = append(kinds, act.Kind)
	}
	assert.Contains(t, kinds, KindStepStart)
	assert.Equal(t, KindDone, kinds[len(kinds)-1])
}

func TestAgenticRAG_RetrievalCallFeedsIntoReactPhase(t *testing.T) {
	client := &fakeClient{turns: []fakeTurn{
		toolCallTurn("call-1", "search_docs", `{"query":"go"}`, llm.Usage{}),
		textTurn("the answer", llm.Usage{}),
	}}
	rc := newTestRunContext(client, []tool.Invoker{&fakeTool{name: "search_docs", content: "some docs"}})
	a := &AgenticRAG{RetrievalTools: []llm.ToolDefinition{{Name: "search_docs"}}}

	actions, err := collectActions(a.Step(rc))
	require.NoError(t, err)

	var kinds []Kind
	for _, act := range actions {
		kinds = append(kinds, act.Kind)
	}
	assert.Contains(t, kinds, KindRequestToolCall)
	assert.Contains(t, kinds, KindRecordToolResult)
	assert.Equal(t, KindDone, kinds[len(kinds)-1])

	var sawToolMessage bool
	for _, m := range rc.Messages() {
		if m.Role == "tool" && m.Content == "some docs" {
			sawToolMessage = true
		}
	}
	assert.True(t, sawToolMessage)
}

func TestAgenticRAG_CancelledAfterRetrievalSkipsReactPhase(t *testing.T) {
	client := &fakeClient{turns: []fakeTurn{textTurn("", llm.Usage{})}}
	rc := newTestRunContext(client, nil)
	a := &AgenticRAG{}

	// Cancel once the retrieval phase's single turn has been consumed but
	// before the react phase would start its own stream call.
	seq := a.Step(rc)
	var actions []Action
	seq(func(act Action, err error) bool {
		require.NoError(t, err)
		actions = append(actions, act)
		if act.Kind == KindStepEnd {
			rc.Cancel()
		}
		return true
	})

	for _, act := range actions {
		assert.NotEqual(t, KindDone, act.Kind)
	}
}
