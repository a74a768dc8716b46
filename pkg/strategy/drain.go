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
	"sort"
	"strings"

	"github.com/fenwick-ai/agentrt/pkg/llm"
	"github.com/fenwick-ai/agentrt/pkg/runctx"
)

// turnResult is what draining one LLM stream into a step produces.
type turnResult struct {
	text      string
	toolCalls []llm.ToolCall
	finish    llm.FinishReason
	usage     llm.Usage
}

type toolCallBuilder struct {
	id   string
	name string
	args strings.Builder
}

// streamTurn calls rc.Client.ChatStream, forwarding text deltas as
// StepContent actions under stepName and accumulating tool-call deltas by
// their stable index (§4.1: "stable tool-call indices across chunks of
// the same call") until the stream's finish chunk. It returns false if
// the consumer asked to stop (yield returned false) or the stream failed.
func streamTurn(rc *runctx.RunContext, stepName string, messages []llm.Message, tools []llm.ToolDefinition, params llm.Params, yield func(Action, error) bool) (turnResult, bool) {
	builders := make(map[int]*toolCallBuilder)
	var order []int
	var text strings.Builder
	var result turnResult

	seq := rc.Client.ChatStream(rc.Context(), messages, tools, params)
	cont := true
	seq(func(chunk llm.Chunk, err error) bool {
		if err != nil {
			yield(Action{}, err)
			cont = false
			return false
		}
		switch chunk.Kind {
		case llm.ChunkText:
			text.WriteString(chunk.Text)
			if stepName != "" {
				if !yield(stepContent(stepName, chunk.Text), nil) {
					cont = false
					return false
				}
			}
		case llm.ChunkToolArgs:
			d := chunk.ToolCall
			b, ok := builders[d.Index]
			if !ok {
				b = &toolCallBuilder{}
				builders[d.Index] = b
				order = append(order, d.Index)
			}
			if d.ID != "" {
				b.id = d.ID
			}
			if d.Name != "" {
				b.name = d.Name
			}
			b.args.WriteString(d.ArgsDelta)
		case llm.ChunkFinish:
			result.finish = chunk.Finish
			result.usage = chunk.Usage
		}
		return true
	})
	if !cont {
		return turnResult{}, false
	}

	sort.Ints(order)
	for _, idx := range order {
		b := builders[idx]
		result.toolCalls = append(result.toolCalls, llm.ToolCall{
			ID:        b.id,
			Name:      b.name,
			Arguments: decodeArguments(b.args.String()),
			RawArgs:   b.args.String(),
		})
	}
	result.text = text.String()
	return result, true
}

// decodeArguments is intentionally permissive: malformed argument JSON is
// surfaced later as a ToolBadArguments schema-validation failure in the
// Tool Registry (§4.2), not as a parse panic here.
func decodeArguments(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{}
	}
	return out
}
