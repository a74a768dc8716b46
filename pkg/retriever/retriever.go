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

// Package retriever defines the Retriever capability (§4.4). Concrete
// implementations (vector search, full-text search, a hosted search API)
// are external collaborators outside the core (§1); the core only ever
// sees this interface, wrapped as a synthetic tool by ToolFor.
package retriever

import "context"

// Passage is one ranked hit for a query against a corpus.
type Passage struct {
	Text   string
	Source string
	Score  float64
}

// Retriever is implemented by whatever external knowledge-base collaborator
// the deployment wires in. The core treats it as opaque (§4.4).
type Retriever interface {
	Search(ctx context.Context, corpusID, query string, topK int) ([]Passage, error)
}
