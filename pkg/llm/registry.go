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

package llm

import (
	"fmt"

	"github.com/fenwick-ai/agentrt/pkg/registry"
)

// Config is the frozen-at-construction configuration for a provider
// (§4.1: "base URL, API key, model id, max tokens, temperature, top-p").
type Config struct {
	Type        string // "anthropic" or "openai"
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Registry resolves a model reference (the run request's model_ref, §4.6)
// to a constructed Client. Clients are shared across runs (§5 "Shared
// resources"); the registry itself only guards the lookup table.
type Registry struct {
	*registry.BaseRegistry[Client]
}

// NewRegistry constructs an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Client]()}
}

// CreateFromConfig builds a Client for cfg.Type, registers it under name,
// and returns it.
func (r *Registry) CreateFromConfig(name string, cfg Config) (Client, error) {
	var (
		client Client
		err    error
	)
	switch cfg.Type {
	case "anthropic":
		client, err = NewAnthropicClient(cfg)
	case "openai":
		client, err = NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("llm: unsupported provider type %q (supported: anthropic, openai)", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("llm: construct %s client: %w", cfg.Type, err)
	}
	if err := r.Register(name, client); err != nil {
		return nil, fmt.Errorf("llm: register client %q: %w", name, err)
	}
	return client, nil
}

// Get resolves a previously registered model reference. Resolution failure
// here is what the Runtime surfaces as RunError(kind=Configuration) (§4.6
// step 2).
func (r *Registry) Get(modelRef string) (Client, error) {
	client, ok := r.BaseRegistry.Get(modelRef)
	if !ok {
		return nil, fmt.Errorf("llm: model reference %q not registered", modelRef)
	}
	return client, nil
}
