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
	"fmt"

	"github.com/fenwick-ai/agentrt/pkg/llm"
	"github.com/fenwick-ai/agentrt/pkg/runctx"
	"github.com/fenwick-ai/agentrt/pkg/tool"
)

// dispatchToolCall requests, invokes, and records the result of one tool
// call, then appends the tool-result message to rc's history so the next
// LLM turn sees it (§4.5.1 step 3). It reports false if the consumer
// asked to stop mid-dispatch.
//
// A ToolError is never propagated as a Go error here — per §7
// "per-call failures are reified into tool-result messages", a failed
// tool call becomes a tool-role message describing the failure so the
// model can self-correct, not a run-ending error.
func dispatchToolCall(rc *runctx.RunContext, tc llm.ToolCall, parentMessageID string, yield func(Action, error) bool) bool {
	if !yield(requestToolCall(tc, parentMessageID), nil) {
		return false
	}

	result, err := rc.Tools.Invoke(rc.Context(), tc.Name, tc.Arguments)

	var toolErr *tool.Error
	var content string
	if err != nil {
		if te, ok := err.(*tool.Error); ok {
			toolErr = te
		} else {
			toolErr = &tool.Error{Class: tool.ClassRemote, Tool: tc.Name, Err: err}
		}
		content = fmt.Sprintf("tool %q failed (%s): %v", tc.Name, toolErr.Class, toolErr.Err)
	} else {
		content = result.Content
	}

	if !yield(recordToolResult(tc.ID, result, toolErr), nil) {
		return false
	}

	rc.AppendMessage(llm.Message{Role: "tool", ToolCallID: tc.ID, Name: tc.Name, Content: content})
	return true
}
