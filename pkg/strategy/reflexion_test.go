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
)

func critiqueTurn(acceptable bool, critique string) fakeTurn {
	var body string
	if acceptable {
		body = `{"acceptable":true,"critique":""}`
	} else {
		body = `{"acceptable":false,"critique":"` + critique + `"}`
	}
	return textTurn(body, llm.Usage{})
}

func TestReflexion_AcceptedOnFirstCritique(t *testing.T) {
	client := &fakeClient{turns: []fakeTurn{
		textTurn("draft answer", llm.Usage{}), // base React's only turn
		critiqueTurn(true, ""),
	}}
	rc := newTestRunContext(client, nil)
	rf := &Reflexion{Base: &React{}}

	actions, err := collectActions(rf.Step(rc))
	require.NoError(t, err)

	var finalText string
	for _, a := range actions {
		if a.Kind == KindFinalAssistantChunk {
			finalText += a.Delta
		}
	}
	assert.Equal(t, "draft answer", finalText)
	assert.Equal(t, KindDone, actions[len(actions)-1].Kind)
}

func TestReflexion_RejectedThenAcceptedOnRevision(t *testing.T) {
	client := &fakeClient{turns: []fakeTurn{
		textTurn("first draft", llm.Usage{}),
		critiqueTurn(false, "too vague"),
		textTurn("revised draft", llm.Usage{}),
		critiqueTurn(true, ""),
	}}
	rc := newTestRunContext(client, nil)
	rf := &Reflexion{Base: &React{}, MaxRetries: 2}

	actions, err := collectActions(rf.Step(rc))
	require.NoError(t, err)

	var finalText string
	for _, a := range actions {
		if a.Kind == KindFinalAssistantChunk {
			finalText += a.Delta
		}
	}
	assert.Equal(t, "revised draft", finalText)

	var sawRevisionPrompt bool
	for _, m := range rc.Messages() {
		if m.Role == "user" && m.Content == "Revise your previous answer based on this critique: too vague" {
			sawRevisionPrompt = true
		}
	}
	assert.True(t, sawRevisionPrompt)
}

func TestReflexion_ExhaustsRetriesAndEmitsLastCandidate(t *testing.T) {
	client := &fakeClient{turns: []fakeTurn{
		textTurn("draft 0", llm.Usage{}),
		critiqueTurn(false, "no"),
		textTurn("draft 1", llm.Usage{}),
		critiqueTurn(false, "still no"),
		textTurn("draft 2", llm.Usage{}), // attempt == maxRetries, emitted unconditionally
	}}
	rc := newTestRunContext(client, nil)
	rf := &Reflexion{Base: &React{}, MaxRetries: 2}

	actions, err := collectActions(rf.Step(rc))
	require.NoError(t, err)

	var finalText string
	for _, a := range actions {
		if a.Kind == KindFinalAssistantChunk {
			finalText += a.Delta
		}
	}
	assert.Equal(t, "draft 2", finalText)
}

func TestReflexion_UnparseableCritiqueTreatedAsAcceptance(t *testing.T) {
	client := &fakeClient{turns: []fakeTurn{
		textTurn("draft answer", llm.Usage{}),
		textTurn("not json", llm.Usage{}),
	}}
	rc := newTestRunContext(client, nil)
	rf := &Reflexion{Base: &React{}}

	actions, err := collectActions(rf.Step(rc))
	require.NoError(t, err)

	var finalText string
	for _, a := range actions {
		if a.Kind == KindFinalAssistantChunk {
			finalText += a.Delta
		}
	}
	assert.Equal(t, "draft answer", finalText)
}

func TestReflexion_BaseStepsAreForwardedUnderlyingStepsVisible(t *testing.T) {
	client := &fakeClient{turns: []fakeTurn{
		textTurn("draft answer", llm.Usage{}),
		critiqueTurn(true, ""),
	}}
	rc := newTestRunContext(client, nil)
	rf := &Reflexion{Base: &React{}}

	actions, err := collectActions(rf.Step(rc))
	require.NoError(t, err)

	var sawBaseStep bool
	for _, a := range actions {
		if a.Kind == KindStepStart && a.StepName == "thinking" {
			sawBaseStep = true
		}
	}
	assert.True(t, sawBaseStep, "the base strategy's own step markers must still reach the wire")
}
