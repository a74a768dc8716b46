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

// Package event defines the wire-level event union emitted by a run and the
// encoders that serialize it. The set of concrete types below is closed: a
// run emits only these fifteen shapes, in the order described by the
// Runtime (see pkg/agentrt).
package event

// Type identifies one of the fifteen wire event shapes.
type Type string

const (
	TypeRunStarted         Type = "RUN_STARTED"
	TypeRunFinished        Type = "RUN_FINISHED"
	TypeRunError           Type = "RUN_ERROR"
	TypeStepStarted        Type = "STEP_STARTED"
	TypeStepContent        Type = "STEP_CONTENT"
	TypeStepFinished       Type = "STEP_FINISHED"
	TypeTextMessageStart   Type = "TEXT_MESSAGE_START"
	TypeTextMessageContent Type = "TEXT_MESSAGE_CONTENT"
	TypeTextMessageEnd     Type = "TEXT_MESSAGE_END"
	TypeToolCallStart      Type = "TOOL_CALL_START"
	TypeToolCallArgs       Type = "TOOL_CALL_ARGS"
	TypeToolCallEnd        Type = "TOOL_CALL_END"
	TypeToolCallResult     Type = "TOOL_CALL_RESULT"
	TypeStateSnapshot      Type = "STATE_SNAPSHOT"
	TypeStateDelta         Type = "STATE_DELTA"
)

// ErrorCode is the closed set of RUN_ERROR codes (§6.3, §7).
type ErrorCode string

const (
	ErrConfiguration ErrorCode = "CONFIGURATION"
	ErrLLM           ErrorCode = "LLM_ERROR"
	ErrTool          ErrorCode = "TOOL_ERROR"
	ErrCancelled     ErrorCode = "CANCELLED"
	ErrTimeout       ErrorCode = "TIMEOUT"
	ErrPlanParse     ErrorCode = "PLAN_PARSE_ERROR"
	ErrInternal      ErrorCode = "INTERNAL"
)

// Usage carries accumulated LLM token counts for a finished run.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StateOp is one JSON-patch-shaped mutation carried by a StateDelta event.
// §9 treats STATE_DELTA/STATE_SNAPSHOT as an optional extension none of
// the four reasoning strategies need emit; the shape is specified here so
// a future strategy or external collaborator can use it without inventing
// a new wire contract.
type StateOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value,omitempty"`
}

// Event is implemented by every concrete wire event. Seq is a logical,
// monotonically non-decreasing counter assigned by the Runtime when the
// event is produced (property 5, §8); it is not wall-clock time, though the
// JSON payload also carries a wall-clock Timestamp for the wire.
type Event interface {
	EventType() Type
	Seq() int64
}

type base struct {
	Sequence  int64 `json:"-"`
	Timestamp int64 `json:"timestamp"`
}

func (b base) Seq() int64 { return b.Sequence }

func newBase(seq, timestamp int64) base {
	return base{Sequence: seq, Timestamp: timestamp}
}

// RunStarted is always the first event of a run (invariant §3, property 1).
type RunStarted struct {
	base
	ThreadID string `json:"thread_id"`
	RunID    string `json:"run_id"`
}

func (RunStarted) EventType() Type { return TypeRunStarted }

// NewRunStarted constructs a RunStarted event. seq/timestamp are assigned
// by the caller (the Runtime's sequencer); see newBase.
func NewRunStarted(seq, timestamp int64, threadID, runID string) RunStarted {
	return RunStarted{base: newBase(seq, timestamp), ThreadID: threadID, RunID: runID}
}

// RunFinished is a terminal event: at most one of RunFinished/RunError is
// emitted per run, and nothing follows it.
type RunFinished struct {
	base
	ThreadID string `json:"thread_id"`
	RunID    string `json:"run_id"`
	Usage    *Usage `json:"usage,omitempty"`
}

func (RunFinished) EventType() Type { return TypeRunFinished }

// NewRunFinished constructs a RunFinished event.
func NewRunFinished(seq, timestamp int64, threadID, runID string, usage *Usage) RunFinished {
	return RunFinished{base: newBase(seq, timestamp), ThreadID: threadID, RunID: runID, Usage: usage}
}

// RunError is the other possible terminal event.
type RunError struct {
	base
	Message string    `json:"message"`
	Code    ErrorCode `json:"code"`
}

func (RunError) EventType() Type { return TypeRunError }

// NewRunError constructs a RunError event.
func NewRunError(seq, timestamp int64, message string, code ErrorCode) RunError {
	return RunError{base: newBase(seq, timestamp), Message: message, Code: code}
}

// StepStarted opens a named reasoning phase. Matched by exactly one
// StepFinished with the same StepName before the run ends; steps do not
// nest (invariant §3).
type StepStarted struct {
	base
	StepName string `json:"step_name"`
}

func (StepStarted) EventType() Type { return TypeStepStarted }

// NewStepStarted constructs a StepStarted event.
func NewStepStarted(seq, timestamp int64, stepName string) StepStarted {
	return StepStarted{base: newBase(seq, timestamp), StepName: stepName}
}

// StepContent streams visible reasoning text for the currently open step.
type StepContent struct {
	base
	StepName string `json:"step_name"`
	Delta    string `json:"delta"`
}

func (StepContent) EventType() Type { return TypeStepContent }

// NewStepContent constructs a StepContent event.
func NewStepContent(seq, timestamp int64, stepName, delta string) StepContent {
	return StepContent{base: newBase(seq, timestamp), StepName: stepName, Delta: delta}
}

// StepFinished closes the step opened by the matching StepStarted.
type StepFinished struct {
	base
	StepName string `json:"step_name"`
}

func (StepFinished) EventType() Type { return TypeStepFinished }

// NewStepFinished constructs a StepFinished event.
func NewStepFinished(seq, timestamp int64, stepName string) StepFinished {
	return StepFinished{base: newBase(seq, timestamp), StepName: stepName}
}

// TextMessageStart opens an assistant (or other role) message. Every
// TextMessageContent/TextMessageEnd for MessageID must be preceded by this.
type TextMessageStart struct {
	base
	MessageID string `json:"message_id"`
	Role      string `json:"role"`
}

func (TextMessageStart) EventType() Type { return TypeTextMessageStart }

// NewTextMessageStart constructs a TextMessageStart event.
func NewTextMessageStart(seq, timestamp int64, messageID, role string) TextMessageStart {
	return TextMessageStart{base: newBase(seq, timestamp), MessageID: messageID, Role: role}
}

// TextMessageContent streams a text delta for an open message.
type TextMessageContent struct {
	base
	MessageID string `json:"message_id"`
	Delta     string `json:"delta"`
}

func (TextMessageContent) EventType() Type { return TypeTextMessageContent }

// NewTextMessageContent constructs a TextMessageContent event.
func NewTextMessageContent(seq, timestamp int64, messageID, delta string) TextMessageContent {
	return TextMessageContent{base: newBase(seq, timestamp), MessageID: messageID, Delta: delta}
}

// TextMessageEnd closes a message exactly once.
type TextMessageEnd struct {
	base
	MessageID string `json:"message_id"`
}

func (TextMessageEnd) EventType() Type { return TypeTextMessageEnd }

// NewTextMessageEnd constructs a TextMessageEnd event.
func NewTextMessageEnd(seq, timestamp int64, messageID string) TextMessageEnd {
	return TextMessageEnd{base: newBase(seq, timestamp), MessageID: messageID}
}

// ToolCallStart announces a tool invocation the model requested.
// ParentMessageID is the reasoning message that emitted the call, if any.
type ToolCallStart struct {
	base
	ToolCallID      string `json:"tool_call_id"`
	ToolCallName    string `json:"tool_call_name"`
	ParentMessageID string `json:"parent_message_id,omitempty"`
}

func (ToolCallStart) EventType() Type { return TypeToolCallStart }

// NewToolCallStart constructs a ToolCallStart event.
func NewToolCallStart(seq, timestamp int64, toolCallID, toolCallName, parentMessageID string) ToolCallStart {
	return ToolCallStart{base: newBase(seq, timestamp), ToolCallID: toolCallID, ToolCallName: toolCallName, ParentMessageID: parentMessageID}
}

// ToolCallArgs streams a chunk of the tool call's argument text.
type ToolCallArgs struct {
	base
	ToolCallID string `json:"tool_call_id"`
	Delta      string `json:"delta"`
}

func (ToolCallArgs) EventType() Type { return TypeToolCallArgs }

// NewToolCallArgs constructs a ToolCallArgs event.
func NewToolCallArgs(seq, timestamp int64, toolCallID, delta string) ToolCallArgs {
	return ToolCallArgs{base: newBase(seq, timestamp), ToolCallID: toolCallID, Delta: delta}
}

// ToolCallEnd closes the argument stream for a tool call.
type ToolCallEnd struct {
	base
	ToolCallID string `json:"tool_call_id"`
}

func (ToolCallEnd) EventType() Type { return TypeToolCallEnd }

// NewToolCallEnd constructs a ToolCallEnd event.
func NewToolCallEnd(seq, timestamp int64, toolCallID string) ToolCallEnd {
	return ToolCallEnd{base: newBase(seq, timestamp), ToolCallID: toolCallID}
}

// ToolCallResult carries the outcome. At most one per ToolCallID (property 3).
type ToolCallResult struct {
	base
	MessageID  string `json:"message_id"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	Role       string `json:"role"`
}

func (ToolCallResult) EventType() Type { return TypeToolCallResult }

// NewToolCallResult constructs a ToolCallResult event.
func NewToolCallResult(seq, timestamp int64, messageID, toolCallID, content, role string) ToolCallResult {
	return ToolCallResult{base: newBase(seq, timestamp), MessageID: messageID, ToolCallID: toolCallID, Content: content, Role: role}
}

// StateSnapshot carries an opaque full-state snapshot. Optional extension
// (§9 Open Question); no strategy in this runtime emits it today.
type StateSnapshot struct {
	base
	Snapshot interface{} `json:"snapshot"`
}

func (StateSnapshot) EventType() Type { return TypeStateSnapshot }

// NewStateSnapshot constructs a StateSnapshot event.
func NewStateSnapshot(seq, timestamp int64, snapshot interface{}) StateSnapshot {
	return StateSnapshot{base: newBase(seq, timestamp), Snapshot: snapshot}
}

// StateDelta carries a list of state patch operations. Optional extension.
type StateDelta struct {
	base
	Delta []StateOp `json:"delta"`
}

func (StateDelta) EventType() Type { return TypeStateDelta }

// NewStateDelta constructs a StateDelta event.
func NewStateDelta(seq, timestamp int64, delta []StateOp) StateDelta {
	return StateDelta{base: newBase(seq, timestamp), Delta: delta}
}
