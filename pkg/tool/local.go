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

package tool

import "context"

// Handler is the signature a local in-process tool implements.
type Handler func(ctx context.Context, arguments map[string]any) (Result, error)

// Local is the simplest Invoker: a name, description, JSON-Schema
// parameters, and a Go function. It is the "local callable" origin
// mentioned in §4.2; remote-server and retriever origins live in
// pkg/toolserver and pkg/retriever respectively.
type Local struct {
	Name        string
	Description string
	Parameters  map[string]any
	Fn          Handler
}

func (l *Local) Definition() Definition {
	return Definition{Name: l.Name, Description: l.Description, Parameters: l.Parameters}
}

func (l *Local) Invoke(ctx context.Context, arguments map[string]any) (Result, error) {
	return l.Fn(ctx, arguments)
}
