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
	"github.com/fenwick-ai/agentrt/pkg/llm"
	"github.com/fenwick-ai/agentrt/pkg/strategy"
	"github.com/fenwick-ai/agentrt/pkg/tool"
)

// Properties is the opaque forwarded-properties bag of §4.6:
// {agent_type, model_ref, temperature, max_tokens, system_prompt,
// corpus_ids, tool_server_ids, skill_ids}.
type Properties struct {
	AgentType     string   `json:"agent_type"`
	ModelRef      string   `json:"model_ref"`
	Temperature   float64  `json:"temperature,omitempty"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	SystemPrompt  string   `json:"system_prompt,omitempty"`
	CorpusIDs     []string `json:"corpus_ids,omitempty"`
	ToolServerIDs []string `json:"tool_server_ids,omitempty"`
	SkillIDs      []string `json:"skill_ids,omitempty"`
}

// RunRequest is the input to Runtime.Run (§4.6).
type RunRequest struct {
	ThreadID   string        `json:"thread_id"`
	RunID      string        `json:"run_id"` // client-supplied; generated if empty
	Messages   []llm.Message `json:"messages"`
	Properties Properties    `json:"properties"`
}

// ModelResolver resolves Properties.ModelRef to an LLM Client. Unknown
// refs must return an error (wrapped Configuration by the caller).
type ModelResolver interface {
	Resolve(modelRef string) (llm.Client, error)
}

// ToolResolver builds the run's fixed tool set (local tools, remote
// tool-server handles, retriever corpora) from Properties (§4.2, §4.6
// step 2). Unknown tool-server or corpus ids must return an error.
type ToolResolver interface {
	Resolve(props Properties) (*tool.Registry, []llm.ToolDefinition, error)
}

// StrategyResolver selects and constructs a Strategy for an agent_type
// tag (§4.6 step 4). Unknown tags must return an error.
type StrategyResolver interface {
	Resolve(agentType string, tools []llm.ToolDefinition, params llm.Params) (strategy.Strategy, error)
}
