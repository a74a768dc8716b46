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

package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewMetrics_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	for _, want := range []string{
		"agentrt_runs_started_total",
		"agentrt_runs_finished_total",
		"agentrt_run_duration_seconds",
		"agentrt_tool_calls_total",
		"agentrt_tool_call_duration_seconds",
		"agentrt_llm_calls_total",
		"agentrt_llm_tokens_total",
	} {
		assert.Contains(t, names, want)
	}
}

func TestMetrics_CountersAccumulate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RunsStarted.Inc()
	m.RunsStarted.Inc()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.RunsStarted))

	m.RunsFinished.WithLabelValues("finished").Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RunsFinished.WithLabelValues("finished")))
}

func TestRecordDuration_ObservesOnStop(t *testing.T) {
	hist := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_duration_seconds"})
	stop := RecordDuration(hist)
	stop()

	assert.Equal(t, uint64(1), testutil.CollectAndCount(hist))
}

func TestStartRun_StartToolCall_StartLLMCall_ProduceValidSpans(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	prior := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prior)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx := context.Background()

	runCtx, runSpan := StartRun(ctx, "run-1", "react")
	require.NotNil(t, runSpan)
	assert.True(t, runSpan.SpanContext().IsValid())
	EndSpan(runSpan, nil)

	_, toolSpan := StartToolCall(runCtx, "search")
	EndSpan(toolSpan, errors.New("boom"))

	_, llmSpan := StartLLMCall(runCtx, "anthropic", "claude-sonnet")
	EndSpan(llmSpan, nil)
}

func TestTracerProvider_ConstructsAndShutsDownCleanly(t *testing.T) {
	tp, err := TracerProvider(context.Background())
	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.NoError(t, tp.Shutdown(context.Background()))
}
