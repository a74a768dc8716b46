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

package agentrt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fenwick-ai/agentrt/pkg/agentrt/errkind"
	"github.com/fenwick-ai/agentrt/pkg/event"
	"github.com/fenwick-ai/agentrt/pkg/llm"
	"github.com/fenwick-ai/agentrt/pkg/observability"
	"github.com/fenwick-ai/agentrt/pkg/runctx"
	"github.com/fenwick-ai/agentrt/pkg/strategy"
)

// Runtime is the Agent Runtime / Scheduler (C8): it resolves a run's model
// and tool set, builds a RunContext, drives the selected Strategy, and
// translates its Actions into the wire Event sequence, enforcing the
// ordering invariants of §3 along the way.
type Runtime struct {
	Models     ModelResolver
	Tools      ToolResolver
	Strategies StrategyResolver
	Directory  *Directory
	// Metrics is optional; when nil, no prometheus collectors are touched.
	Metrics *observability.Metrics
}

// Run is the entry point of §4.6: `run(request) → lazy sequence of
// Events`. Cancelling ctx has the same effect as calling Stop(run_id).
func (rt *Runtime) Run(ctx context.Context, req RunRequest) func(yield func(event.Event, error) bool) {
	return func(yield func(event.Event, error) bool) {
		runID := req.RunID
		if runID == "" {
			runID = uuid.NewString()
		}

		seq := &sequencer{}
		emit := func(e event.Event) bool { return yield(e, nil) }

		if rt.Metrics != nil {
			rt.Metrics.RunsStarted.Inc()
		}
		started := time.Now()
		ctx, span := observability.StartRun(ctx, runID, req.Properties.AgentType)
		outcome := "error"
		defer func() {
			observability.EndSpan(span, nil)
			if rt.Metrics != nil {
				rt.Metrics.RunsFinished.WithLabelValues(outcome).Inc()
				rt.Metrics.RunDuration.Observe(time.Since(started).Seconds())
			}
		}()

		if !emit(seq.runStarted(req.ThreadID, runID)) {
			return
		}

		client, err := rt.Models.Resolve(req.Properties.ModelRef)
		if err != nil {
			emit(seq.runError(errkind.Configuration, fmt.Sprintf("resolving model %q: %v", req.Properties.ModelRef, err)))
			return
		}

		tools, toolDefs, err := rt.Tools.Resolve(req.Properties)
		if err != nil {
			emit(seq.runError(errkind.Configuration, fmt.Sprintf("resolving tools: %v", err)))
			return
		}

		params := llm.Params{
			Temperature:  req.Properties.Temperature,
			MaxTokens:    req.Properties.MaxTokens,
			SystemPrompt: req.Properties.SystemPrompt,
		}

		strat, err := rt.Strategies.Resolve(req.Properties.AgentType, toolDefs, params)
		if err != nil {
			emit(seq.runError(errkind.Configuration, fmt.Sprintf("resolving strategy %q: %v", req.Properties.AgentType, err)))
			return
		}

		rc := runctx.New(ctx, runID, req.ThreadID, tools, client, req.Messages)
		rt.Directory.register(rc)
		defer rt.Directory.deregister(runID)

		if err := strat.Prepare(rc); err != nil {
			emit(seq.runError(errkind.As(err), sanitize(err)))
			return
		}

		outcome = rt.drive(rc, strat, seq, yield)
	}
}

// drive runs the strategy's Action sequence, translating each Action into
// the matching Event(s) and recovering from a strategy panic as an
// Internal error (§4.6 step 7) rather than propagating it. It returns an
// outcome label ("finished", "error", "cancelled") for the caller's metrics.
func (rt *Runtime) drive(rc *runctx.RunContext, strat strategy.Strategy, seq *sequencer, yield func(event.Event, error) bool) (outcome string) {
	outcome = "error"
	var openStep string
	closeOpenStep := func() {
		if openStep != "" {
			yield(seq.stepFinished(openStep), nil)
			openStep = ""
		}
	}
	defer func() {
		if r := recover(); r != nil {
			closeOpenStep()
			yield(seq.runError(errkind.Internal, fmt.Sprintf("internal error: %v", r)), nil)
			outcome = "error"
		}
	}()

	var finished bool
	var finalUsage llm.Usage
	stopped := false
	erroredOut := false

	actionYield := func(a strategy.Action, err error) bool {
		if stopped {
			return false
		}
		if rc.Cancelled() {
			stopped = true
			return false
		}
		if err != nil {
			code := errkind.As(err)
			closeOpenStep()
			yield(seq.runError(code, sanitize(err)), nil)
			stopped = true
			erroredOut = true
			return false
		}
		if !rt.applyAction(rc, a, seq, yield, &finished, &finalUsage, &openStep) {
			stopped = true
			return false
		}
		return true
	}

	strat.Step(rc)(actionYield)

	if erroredOut {
		return "error"
	}
	// A strategy can also observe cancellation internally (between two
	// accepted yields, e.g. react.go's top-of-loop check) and simply return
	// without yielding anything further; that must be reported the same way
	// as a cancellation caught by actionYield above, not as an Internal
	// error (§4.6 step 6, §8 property 6).
	if rc.Cancelled() && !finished {
		closeOpenStep()
		yield(seq.runError(errkind.Cancelled, "run was cancelled"), nil)
		return "cancelled"
	}
	if stopped {
		return "error"
	}
	if !finished {
		closeOpenStep()
		yield(seq.runError(errkind.Internal, "strategy ended without finishing the run"), nil)
		return "error"
	}
	yield(seq.runFinished(rc.ThreadID, rc.RunID, finalUsage), nil)
	return "finished"
}

// applyAction turns one Action into wire event(s), maintaining the
// tool-call table (§4.6 step 5). It returns false if the consumer asked
// to stop.
func (rt *Runtime) applyAction(rc *runctx.RunContext, a strategy.Action, seq *sequencer, yield func(event.Event, error) bool, finished *bool, finalUsage *llm.Usage, openStep *string) bool {
	switch a.Kind {
	case strategy.KindStepStart:
		rc.PushStep(a.StepName)
		*openStep = a.StepName
		return yield(seq.stepStarted(a.StepName), nil)

	case strategy.KindStepContent:
		return yield(seq.stepContent(a.StepName, a.Delta), nil)

	case strategy.KindStepEnd:
		*openStep = ""
		return yield(seq.stepFinished(a.StepName), nil)

	case strategy.KindRequestToolCall:
		rc.BeginToolCall(a.ToolCall.ID, a.ToolCall.Name)
		if !yield(seq.toolCallStart(a.ToolCall.ID, a.ToolCall.Name, a.ParentMessageID), nil) {
			return false
		}
		if !yield(seq.toolCallArgs(a.ToolCall.ID, a.ToolCall.RawArgs), nil) {
			return false
		}
		return yield(seq.toolCallEnd(a.ToolCall.ID), nil)

	case strategy.KindRecordToolResult:
		rc.EndToolCall(a.ToolCallID)
		content := a.Result.Content
		if a.ToolErr != nil {
			content = fmt.Sprintf("%s: %v", a.ToolErr.Class, a.ToolErr.Err)
		}
		return yield(seq.toolCallResult(uuid.NewString(), a.ToolCallID, content), nil)

	case strategy.KindAssistantTextChunk:
		// Unused by the four reasoning strategies today (§4.5); kept in
		// the Action vocabulary for a future strategy that needs a
		// non-final assistant message.
		return true

	case strategy.KindFinalAssistantStart:
		return yield(seq.textMessageStart(a.MessageID, "assistant"), nil)

	case strategy.KindFinalAssistantChunk:
		return yield(seq.textMessageContent(a.MessageID, a.Delta), nil)

	case strategy.KindFinalAssistantEnd:
		return yield(seq.textMessageEnd(a.MessageID), nil)

	case strategy.KindDone:
		*finished = true
		*finalUsage = a.Usage
		return true

	default:
		return true
	}
}

// sanitize strips internal detail from an error before it reaches the
// wire (§7 "the strategy must never let a raw stack trace reach the
// wire"); errkind already carries a human-readable message, so this is
// just Error().
func sanitize(err error) string {
	return err.Error()
}

// sequencer assigns the monotonically non-decreasing logical Seq (§8
// property 5) and wall-clock Timestamp every event carries.
type sequencer struct {
	n int64
}

func (s *sequencer) next() (int64, int64) {
	s.n++
	return s.n, time.Now().UnixMilli()
}

func (s *sequencer) runStarted(threadID, runID string) event.Event {
	n, t := s.next()
	return event.NewRunStarted(n, t, threadID, runID)
}

func (s *sequencer) runFinished(threadID, runID string, usage llm.Usage) event.Event {
	n, t := s.next()
	u := event.Usage{PromptTokens: usage.PromptTokens, CompletionTokens: usage.CompletionTokens, TotalTokens: usage.TotalTokens}
	return event.NewRunFinished(n, t, threadID, runID, &u)
}

func (s *sequencer) runError(kind errkind.Kind, message string) event.Event {
	n, t := s.next()
	return event.NewRunError(n, t, message, errorCode(kind))
}

func (s *sequencer) stepStarted(name string) event.Event {
	n, t := s.next()
	return event.NewStepStarted(n, t, name)
}

func (s *sequencer) stepContent(name, delta string) event.Event {
	n, t := s.next()
	return event.NewStepContent(n, t, name, delta)
}

func (s *sequencer) stepFinished(name string) event.Event {
	n, t := s.next()
	return event.NewStepFinished(n, t, name)
}

func (s *sequencer) textMessageStart(messageID, role string) event.Event {
	n, t := s.next()
	return event.NewTextMessageStart(n, t, messageID, role)
}

func (s *sequencer) textMessageContent(messageID, delta string) event.Event {
	n, t := s.next()
	return event.NewTextMessageContent(n, t, messageID, delta)
}

func (s *sequencer) textMessageEnd(messageID string) event.Event {
	n, t := s.next()
	return event.NewTextMessageEnd(n, t, messageID)
}

func (s *sequencer) toolCallStart(id, name, parentMessageID string) event.Event {
	n, t := s.next()
	return event.NewToolCallStart(n, t, id, name, parentMessageID)
}

func (s *sequencer) toolCallArgs(id, delta string) event.Event {
	n, t := s.next()
	return event.NewToolCallArgs(n, t, id, delta)
}

func (s *sequencer) toolCallEnd(id string) event.Event {
	n, t := s.next()
	return event.NewToolCallEnd(n, t, id)
}

func (s *sequencer) toolCallResult(messageID, toolCallID, content string) event.Event {
	n, t := s.next()
	return event.NewToolCallResult(n, t, messageID, toolCallID, content, "tool")
}

func errorCode(kind errkind.Kind) event.ErrorCode {
	switch kind {
	case errkind.Configuration:
		return event.ErrConfiguration
	case errkind.LLMTransport, errkind.LLMProvider, errkind.LLMBadRequest:
		return event.ErrLLM
	case errkind.ToolNotFound, errkind.ToolBadArguments, errkind.ToolTransport, errkind.ToolRemote:
		return event.ErrTool
	case errkind.ToolTimeout:
		return event.ErrTimeout
	case errkind.Cancelled, errkind.ToolCancelled:
		return event.ErrCancelled
	case errkind.PlanParseError:
		return event.ErrPlanParse
	default:
		return event.ErrInternal
	}
}
