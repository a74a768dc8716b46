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

// Package observability carries the runtime's own ambient telemetry: otel
// spans around a run/tool-call/LLM-call, and prometheus counters/
// histograms for the same operations. Neither is part of the wire Event
// protocol (§6) — this is purely for whoever operates the process.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fenwick-ai/agentrt"

// Metrics holds the process-wide prometheus collectors. Register it with a
// prometheus.Registerer once at process start.
type Metrics struct {
	RunsStarted   prometheus.Counter
	RunsFinished  *prometheus.CounterVec // label "outcome": finished|error|cancelled
	RunDuration   prometheus.Histogram
	ToolCalls     *prometheus.CounterVec // label "tool", "outcome"
	ToolDuration  *prometheus.HistogramVec
	LLMCalls      *prometheus.CounterVec // label "provider", "outcome"
	LLMTokensUsed *prometheus.CounterVec // label "kind": prompt|completion
}

// NewMetrics constructs and registers the runtime's collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentrt", Name: "runs_started_total", Help: "Runs started.",
		}),
		RunsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentrt", Name: "runs_finished_total", Help: "Runs finished, by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agentrt", Name: "run_duration_seconds", Help: "Run wall-clock duration.",
			Buckets: prometheus.DefBuckets,
		}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentrt", Name: "tool_calls_total", Help: "Tool invocations, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentrt", Name: "tool_call_duration_seconds", Help: "Tool invocation duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		LLMCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentrt", Name: "llm_calls_total", Help: "LLM calls, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		LLMTokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentrt", Name: "llm_tokens_total", Help: "LLM tokens consumed, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.RunsStarted, m.RunsFinished, m.RunDuration, m.ToolCalls, m.ToolDuration, m.LLMCalls, m.LLMTokensUsed)
	return m
}

// TracerProvider builds an sdktrace.TracerProvider. In development this
// writes spans to stdout; a real deployment swaps the exporter for an OTLP
// one without touching call sites, since they only ever see otel.Tracer.
func TracerProvider(ctx context.Context) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer is the runtime's otel tracer handle.
func Tracer() oteltrace.Tracer {
	return otel.Tracer(tracerName)
}

// StartRun opens a span covering one whole run (§4.6).
func StartRun(ctx context.Context, runID, agentType string) (context.Context, oteltrace.Span) {
	return Tracer().Start(ctx, "agent.run", oteltrace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("agent_type", agentType),
	))
}

// StartToolCall opens a span covering one tool invocation (§4.2).
func StartToolCall(ctx context.Context, toolName string) (context.Context, oteltrace.Span) {
	return Tracer().Start(ctx, "tool.invoke", oteltrace.WithAttributes(
		attribute.String("tool", toolName),
	))
}

// StartLLMCall opens a span covering one LLM request (§4.1).
func StartLLMCall(ctx context.Context, provider, model string) (context.Context, oteltrace.Span) {
	return Tracer().Start(ctx, "llm.call", oteltrace.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
	))
}

// EndSpan closes a span, recording err as its status if non-nil.
func EndSpan(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// RecordDuration is a small helper for timing a block with `defer`:
//
//	stop := observability.RecordDuration(m.ToolDuration.WithLabelValues(name))
//	defer stop()
func RecordDuration(observer prometheus.Observer) func() {
	start := time.Now()
	return func() { observer.Observe(time.Since(start).Seconds()) }
}
