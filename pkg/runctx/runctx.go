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

// Package runctx is the sole owner of a single run's mutable state (§4.6,
// C6): the frozen tool set and model client a run was started with, its
// growing message history, step log, and tool-call table, its cancel
// signal, and its usage counters. Strategies and the runtime driver reach
// it only through RunContext's methods — never through its fields — so
// every mutation is serialized through one mutex regardless of how many
// goroutines a strategy happens to use internally.
package runctx

import (
	"context"
	"sync"

	"github.com/fenwick-ai/agentrt/pkg/llm"
	"github.com/fenwick-ai/agentrt/pkg/tool"
)

// ToolCallRecord tracks one in-flight or completed tool call for ordering
// validation (§8 property: a ToolCallResult's tool_call_id must match a
// previously emitted ToolCallStart's id, in order).
type ToolCallRecord struct {
	ID       string
	Name     string
	Started  bool
	Finished bool
}

// RunContext is the single mutable home for one run's state. It is built
// once at run start with a fixed tool set and model client (§4.6: "the
// tool set available to a run is fixed at run start") and is never shared
// across runs.
type RunContext struct {
	RunID    string
	ThreadID string

	Tools  *tool.Registry
	Client llm.Client

	mu        sync.Mutex
	messages  []llm.Message
	steps     []string
	toolCalls map[string]*ToolCallRecord
	usage     llm.Usage

	cancel context.CancelFunc
	ctx    context.Context
}

// New builds a RunContext bound to parent; cancelling the returned
// RunContext also cancels every operation (LLM calls, tool invokes)
// started through its Context().
func New(parent context.Context, runID, threadID string, tools *tool.Registry, client llm.Client, seed []llm.Message) *RunContext {
	ctx, cancel := context.WithCancel(parent)
	messages := make([]llm.Message, len(seed))
	copy(messages, seed)
	return &RunContext{
		RunID:     runID,
		ThreadID:  threadID,
		Tools:     tools,
		Client:    client,
		messages:  messages,
		toolCalls: make(map[string]*ToolCallRecord),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Context returns the run's cancellable context. Passed to every LLM call
// and tool invoke a strategy makes on this run's behalf.
func (r *RunContext) Context() context.Context { return r.ctx }

// Cancel signals the run to stop. It is safe to call from any goroutine,
// any number of times (§4.6/§5: stop() is non-blocking and idempotent).
func (r *RunContext) Cancel() { r.cancel() }

// Cancelled reports whether Cancel has been called (or the parent
// context ended).
func (r *RunContext) Cancelled() bool {
	select {
	case <-r.ctx.Done():
		return true
	default:
		return false
	}
}

// Messages returns a snapshot copy of the run's conversation so far.
func (r *RunContext) Messages() []llm.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]llm.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// AppendMessage adds one message (assistant text, tool result, etc.) to
// the run's history.
func (r *RunContext) AppendMessage(m llm.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

// PushStep records a named step entering the step log (§4.5 StepStarted).
func (r *RunContext) PushStep(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, name)
}

// Steps returns the ordered step-name log so far.
func (r *RunContext) Steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.steps))
	copy(out, r.steps)
	return out
}

// BeginToolCall registers a new in-flight tool call, returning false if id
// is already known — a strategy bug, since ids must be unique per run.
func (r *RunContext) BeginToolCall(id, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.toolCalls[id]; exists {
		return false
	}
	r.toolCalls[id] = &ToolCallRecord{ID: id, Name: name, Started: true}
	return true
}

// EndToolCall marks a previously begun tool call finished. It reports
// false if id was never begun — the ordering invariant a ToolCallResult
// must satisfy (§8): results only ever reference a call that started.
func (r *RunContext) EndToolCall(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.toolCalls[id]
	if !ok || !rec.Started {
		return false
	}
	rec.Finished = true
	return true
}

// ToolCall returns the record for id, if any.
func (r *RunContext) ToolCall(id string) (ToolCallRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.toolCalls[id]
	if !ok {
		return ToolCallRecord{}, false
	}
	return *rec, true
}

// AddUsage accumulates token usage across every LLM call made in this run
// (§4.6, RunFinished.result.usage).
func (r *RunContext) AddUsage(u llm.Usage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage.PromptTokens += u.PromptTokens
	r.usage.CompletionTokens += u.CompletionTokens
	r.usage.TotalTokens += u.TotalTokens
}

// Usage returns the run's accumulated token usage.
func (r *RunContext) Usage() llm.Usage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage
}
