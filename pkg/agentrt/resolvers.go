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

	"github.com/fenwick-ai/agentrt/pkg/llm"
	"github.com/fenwick-ai/agentrt/pkg/retriever"
	"github.com/fenwick-ai/agentrt/pkg/strategy"
	"github.com/fenwick-ai/agentrt/pkg/tool"
	"github.com/fenwick-ai/agentrt/pkg/toolserver"
)

// RegistryModelResolver adapts an llm.Registry (process-wide, shared across
// runs per §5) to the ModelResolver interface.
type RegistryModelResolver struct {
	Registry *llm.Registry
}

func (r *RegistryModelResolver) Resolve(modelRef string) (llm.Client, error) {
	return r.Registry.Get(modelRef)
}

// ToolSetResolver builds a run's fixed tool set (§4.2, §4.6 step 2) from
// whatever remote tool-servers and retriever corpora the deployment has
// configured. Local function tools can be added via LocalTools.
type ToolSetResolver struct {
	ToolServers map[string]*toolserver.Client
	Retrievers  map[string]retriever.Retriever
	LocalTools  []tool.Invoker
	DefaultTopK int
	// ToolTimeout bounds every invocation made through the Registry this
	// resolver builds (§5); zero leaves calls unbounded beyond the run's
	// own ctx.
	ToolTimeout time.Duration
}

func (r *ToolSetResolver) Resolve(props Properties) (*tool.Registry, []llm.ToolDefinition, error) {
	var invokers []tool.Invoker
	invokers = append(invokers, r.LocalTools...)

	for _, serverID := range props.ToolServerIDs {
		client, ok := r.ToolServers[serverID]
		if !ok {
			return nil, nil, fmt.Errorf("agentrt: unknown tool server %q", serverID)
		}
		defs, err := client.ListTools(context.Background())
		if err != nil {
			return nil, nil, fmt.Errorf("agentrt: listing tools on %q: %w", serverID, err)
		}
		for _, def := range defs {
			invokers = append(invokers, toolserver.RemoteTool(client, def))
		}
	}

	topK := r.DefaultTopK
	if topK <= 0 {
		topK = 5
	}
	for _, corpusID := range props.CorpusIDs {
		ret, ok := r.Retrievers[corpusID]
		if !ok {
			return nil, nil, fmt.Errorf("agentrt: unknown corpus %q", corpusID)
		}
		invokers = append(invokers, retriever.ToolFor(ret, corpusID, topK))
	}

	registry, err := tool.NewRegistry(invokers)
	if err != nil {
		return nil, nil, err
	}
	registry.Timeout = r.ToolTimeout

	defs := registry.Describe()
	toolDefs := make([]llm.ToolDefinition, len(defs))
	for i, d := range defs {
		toolDefs[i] = llm.ToolDefinition{Name: d.Name, Description: d.Description, Parameters: d.Parameters}
	}
	return registry, toolDefs, nil
}

// StrategySelector constructs one of the four reasoning strategies (§4.5)
// by agent_type tag. Any base tag composes with a wrapping Reflexion
// layer by suffixing "+reflexion" (e.g. "plan_execute+reflexion"),
// matching §4.5.4's description of Reflexion as a wrapper around a base
// strategy rather than a fifth standalone one.
type StrategySelector struct {
	MaxIterations        int
	MaxIterationsPerTask int
	MaxRetries           int
}

func (s *StrategySelector) Resolve(agentType string, tools []llm.ToolDefinition, params llm.Params) (strategy.Strategy, error) {
	base, wrapped := splitReflexionSuffix(agentType)
	strat, err := s.base(base, tools, params)
	if err != nil {
		return nil, err
	}
	if wrapped {
		return &strategy.Reflexion{Base: strat, Params: params, MaxRetries: s.MaxRetries}, nil
	}
	return strat, nil
}

func (s *StrategySelector) base(agentType string, tools []llm.ToolDefinition, params llm.Params) (strategy.Strategy, error) {
	switch agentType {
	case "react", "":
		return &strategy.React{Tools: tools, Params: params, MaxIterations: s.MaxIterations}, nil
	case "agentic_rag":
		retrievalTools, otherTools := splitRetrievalTools(tools)
		return &strategy.AgenticRAG{RetrievalTools: retrievalTools, OtherTools: otherTools, Params: params, MaxIterations: s.MaxIterations}, nil
	case "plan_execute":
		return &strategy.PlanAndExecute{Tools: tools, Params: params, MaxIterationsPerTask: s.MaxIterationsPerTask}, nil
	default:
		return nil, fmt.Errorf("agentrt: unknown agent_type %q", agentType)
	}
}

// splitRetrievalTools separates the synthetic per-corpus search tools
// (retriever.ToolFor names them "search_<corpus_id>") from every other
// tool, so AgenticRAG's dedicated retrieval turn only offers the model
// search tools, per §4.5.2.
func splitRetrievalTools(tools []llm.ToolDefinition) (retrieval, other []llm.ToolDefinition) {
	const prefix = "search_"
	for _, t := range tools {
		if len(t.Name) > len(prefix) && t.Name[:len(prefix)] == prefix {
			retrieval = append(retrieval, t)
		} else {
			other = append(other, t)
		}
	}
	return retrieval, other
}

const reflexionSuffix = "+reflexion"

func splitReflexionSuffix(agentType string) (string, bool) {
	n := len(agentType) - len(reflexionSuffix)
	if n > 0 && agentType[n:] == reflexionSuffix {
		return agentType[:n], true
	}
	return agentType, false
}
