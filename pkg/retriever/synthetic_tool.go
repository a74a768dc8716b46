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

package retriever

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fenwick-ai/agentrt/pkg/tool"
)

// ToolFor wraps a Retriever and a single corpus as a synthetic tool.Invoker,
// named after the corpus id (§4.4: "The Tool Registry wraps retrieval as a
// synthetic tool whose name is derived from the corpus id").
func ToolFor(r Retriever, corpusID string, defaultTopK int) tool.Invoker {
	return &syntheticTool{r: r, corpusID: corpusID, defaultTopK: defaultTopK}
}

type syntheticTool struct {
	r           Retriever
	corpusID    string
	defaultTopK int
}

func (s *syntheticTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "search_" + s.corpusID,
		Description: fmt.Sprintf("Search the %q knowledge corpus for passages relevant to a query.", s.corpusID),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "The search query."},
				"top_k": map[string]any{"type": "integer", "description": "Maximum passages to return.", "minimum": 1},
			},
			"required": []string{"query"},
		},
	}
}

func (s *syntheticTool) Invoke(ctx context.Context, arguments map[string]any) (tool.Result, error) {
	query, _ := arguments["query"].(string)
	if query == "" {
		return tool.Result{}, &tool.Error{Class: tool.ClassBadArguments, Tool: s.Definition().Name, Err: fmt.Errorf("query is required")}
	}
	topK := s.defaultTopK
	if v, ok := arguments["top_k"].(float64); ok && v > 0 {
		topK = int(v)
	}
	if topK <= 0 {
		topK = 5
	}

	passages, err := s.r.Search(ctx, s.corpusID, query, topK)
	if err != nil {
		return tool.Result{}, &tool.Error{Class: tool.ClassRemote, Tool: s.Definition().Name, Err: err}
	}

	body, err := json.Marshal(passages)
	if err != nil {
		return tool.Result{}, &tool.Error{Class: tool.ClassRemote, Tool: s.Definition().Name, Err: err}
	}
	return tool.Result{Content: string(body)}, nil
}
