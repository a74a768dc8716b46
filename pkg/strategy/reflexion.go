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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fenwick-ai/agentrt/pkg/llm"
	"github.com/fenwick-ai/agentrt/pkg/runctx"
)

// DefaultMaxRetries caps a Reflexion loop's critique/revise cycles
// (§4.5.4 "Capped by a max-retry parameter").
const DefaultMaxRetries = 2

var critiqueSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"acceptable": map[string]any{"type": "boolean"},
		"critique":   map[string]any{"type": "string"},
	},
	"required": []string{"acceptable", "critique"},
}

type critiqueReply struct {
	Acceptable bool   `json:"acceptable"`
	Critique   string `json:"critique"`
}

// Reflexion wraps a base Strategy with a critique/revise loop (§4.5.4). It
// forwards the base's step/tool-call actions transparently so the wrapped
// reasoning is still visible on the wire, but intercepts the base's
// candidate final answer: Reflexion emits its own final message and Done
// once a critique accepts the candidate or the retry cap is reached.
type Reflexion struct {
	Base       Strategy
	Params     llm.Params
	MaxRetries int
}

func (rf *Reflexion) Prepare(rc *runctx.RunContext) error { return rf.Base.Prepare(rc) }

func (rf *Reflexion) maxRetries() int {
	if rf.MaxRetries > 0 {
		return rf.MaxRetries
	}
	return DefaultMaxRetries
}

func (rf *Reflexion) Step(rc *runctx.RunContext) Sequence {
	return func(yield func(Action, error) bool) {
		for attempt := 0; ; attempt++ {
			if rc.Cancelled() {
				return
			}
			candidate, ok := rf.runBaseCapturing(rc, yield)
			if !ok {
				return
			}
			if rc.Cancelled() {
				return
			}

			if attempt >= rf.maxRetries() {
				rf.emitFinal(rc, candidate, yield)
				return
			}

			accepted, critique, ok := rf.critique(rc, candidate, yield)
			if !ok {
				return
			}
			if accepted {
				rf.emitFinal(rc, candidate, yield)
				return
			}
			rc.AppendMessage(llm.Message{Role: "user", Content: "Revise your previous answer based on this critique: " + critique})
		}
	}
}

// runBaseCapturing drives the base strategy's sequence, forwarding every
// action except the final-message triplet and Done, which it swallows and
// accumulates into the returned candidate text instead.
func (rf *Reflexion) runBaseCapturing(rc *runctx.RunContext, yield func(Action, error) bool) (string, bool) {
	var buf strings.Builder
	ok := true

	seq := rf.Base.Step(rc)
	seq(func(a Action, err error) bool {
		if err != nil {
			ok = yield(Action{}, err)
			return false
		}
		switch a.Kind {
		case KindFinalAssistantChunk:
			buf.WriteString(a.Delta)
			return true
		case KindFinalAssistantStart, KindFinalAssistantEnd:
			return true
		case KindDone:
			return false
		default:
			if !yield(a, nil) {
				ok = false
				return false
			}
			return true
		}
	})
	return buf.String(), ok
}

func (rf *Reflexion) critique(rc *runctx.RunContext, candidate string, yield func(Action, error) bool) (accepted bool, critique string, ok bool) {
	const step = "reflection"
	if !yield(stepStart(step), nil) {
		return false, "", false
	}

	prompt := fmt.Sprintf("Critique this candidate answer against the user's request. Candidate answer:\n%s\n\nDecide whether it is acceptable as-is.", candidate)
	messages := append(rc.Messages(), llm.Message{Role: "user", Content: prompt})
	params := rf.Params
	params.StructuredOut = &llm.StructuredOutput{Name: "critique", Schema: critiqueSchema}

	turn, streamOK := streamTurn(rc, step, messages, nil, params, yield)
	if !streamOK {
		return false, "", false
	}
	rc.AddUsage(turn.usage)

	if !yield(stepEnd(step), nil) {
		return false, "", false
	}

	var reply critiqueReply
	if err := json.Unmarshal([]byte(turn.text), &reply); err != nil {
		// An unparseable critique is treated as acceptance: the base
		// answer stands rather than looping forever on a malformed
		// critique reply.
		return true, "", true
	}
	return reply.Acceptable, reply.Critique, true
}

func (rf *Reflexion) emitFinal(rc *runctx.RunContext, text string, yield func(Action, error) bool) {
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
