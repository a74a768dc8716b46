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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-ai/agentrt/pkg/agentrt/errkind"
	"github.com/fenwick-ai/agentrt/pkg/llm"
)

func planTurn(planJSON string) fakeTurn {
	return textTurn(planJSON, llm.Usage{})
}

func TestPlanAndExecute_SingleTaskHappyPath(t *testing.T) {
	client := &fakeClient{turns: []fakeTurn{
		planTurn(`{"goal":"answer the question","tasks":[{"id":"t1","title":"research","description":"look it up","dependencies":[]}]}`),
		textTurn("task output", llm.Usage{}), // executeTask's single turn, no tool calls
		textTurn("final synthesis", llm.Usage{}),
	}}
	rc := newTestRunContext(client, nil)
	p := &PlanAndExecute{}

	actions, err := collectActions(p.Step(rc))
	require.NoError(t, err)

	var kinds []Kind
	for _, a := range actions {
		kinds = append(kinds, a.Kind)
	}
	assert.Contains(t, kinds, KindStepStart)
	assert.Contains(t, kinds, KindFinalAssistantChunk)
	assert.Equal(t, KindDone, kinds[len(kinds)-1])
}

func TestPlanAndExecute_UnparseablePlanRetriesThenFails(t *testing.T) {
	client := &fakeClient{turns: []fakeTurn{
		planTurn("not json at all"),
		planTurn("still not json"),
	}}
	rc := newTestRunContext(client, nil)
	p := &PlanAndExecute{}

	_, err := collectActions(p.Step(rc))
	require.Error(t, err)
	assert.Equal(t, errkind.PlanParseError, errkind.As(err))
}

func TestPlanAndExecute_CyclicDependencyEmitsPlanParseError(t *testing.T) {
	client := &fakeClient{turns: []fakeTurn{
		planTurn(`{"goal":"g","tasks":[{"id":"a","title":"A","dependencies":["b"]},{"id":"b","title":"B","dependencies":["a"]}]}`),
	}}
	rc := newTestRunContext(client, nil)
	p := &PlanAndExecute{}

	_, err := collectActions(p.Step(rc))
	require.Error(t, err)
	assert.Equal(t, errkind.PlanParseError, errkind.As(err))
}

func TestPlanAndExecute_DependentTaskOrderRespected(t *testing.T) {
	client := &fakeClient{turns: []fakeTurn{
		planTurn(`{"goal":"g","tasks":[{"id":"b","title":"B","dependencies":["a"]},{"id":"a","title":"A","dependencies":[]}]}`),
		textTurn("output-a", llm.Usage{}),
		textTurn("output-b", llm.Usage{}),
		textTurn("final", llm.Usage{}),
	}}
	rc := newTestRunContext(client, nil)
	p := &PlanAndExecute{}

	actions, err := collectActions(p.Step(rc))
	require.NoError(t, err)

	var executingSteps []string
	for _, a := range actions {
		if a.Kind == KindStepStart && strings.HasPrefix(a.StepName, "executing:") {
			executingSteps = append(executingSteps, a.StepName)
		}
	}
	require.Len(t, executingSteps, 2)
	assert.Equal(t, "executing:a", executingSteps[0], "task a has no dependencies and must execute before task b")
	assert.Equal(t, "executing:b", executingSteps[1])
}
