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

// Package tool is the Tool Registry (§4.2): a per-run name->invoker table
// where each invoker is a local callable, a remote-tool-server handle, or
// the Retriever facade. Schema validation and cancellation propagation
// live here so every call site gets them for free.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Definition describes a tool to the LLM Client's tool list.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON-Schema-shaped
}

// ErrorClass is the closed set of ToolError classifications (§4.2, §7).
type ErrorClass string

const (
	ClassNotFound     ErrorClass = "NotFound"
	ClassBadArguments ErrorClass = "BadArguments"
	ClassTransport    ErrorClass = "Transport"
	ClassRemote       ErrorClass = "Remote"
	ClassTimeout      ErrorClass = "Timeout"
	ClassCancelled    ErrorClass = "Cancelled"
)

// Error is returned by Invoke on any failure. It is never a raw panic or
// stack trace (§7 "the strategy must never let a raw stack trace reach the
// wire") — Invoke always recovers into one of these classes.
type Error struct {
	Class ErrorClass
	Tool  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool %s: %s: %v", e.Tool, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is a successful invocation's payload.
type Result struct {
	Content string
}

// Invoker is implemented by every tool origin: a local function, a remote
// tool-server handle + remote name (pkg/toolserver), or the Retriever
// facade (pkg/retriever). It is intentionally the smallest possible
// surface so new origins don't need to touch the registry.
type Invoker interface {
	Definition() Definition
	Invoke(ctx context.Context, arguments map[string]any) (Result, error)
}

// Registry holds the tools available to a single run, fixed at run start
// (§3 "Tool", "The set of tools available to a run is fixed at run start").
// It is not safe to register tools into a Registry concurrently with
// Invoke/Describe calls — a run's tool set is built once before the run
// begins driving its strategy.
type Registry struct {
	invokers map[string]Invoker
	schemas  map[string]*jsonschema.Schema
	// Timeout bounds a single Invoke call (§5); zero means no deadline is
	// imposed beyond the caller's own ctx. Set by the resolver that builds
	// the Registry for a run, not by NewRegistry itself.
	Timeout time.Duration
}

// NewRegistry builds a Registry from a set of invokers, compiling each
// one's input schema up front so BadArguments failures are detected before
// dispatch rather than inside the invoker.
func NewRegistry(invokers []Invoker) (*Registry, error) {
	r := &Registry{
		invokers: make(map[string]Invoker, len(invokers)),
		schemas:  make(map[string]*jsonschema.Schema, len(invokers)),
	}
	for _, inv := range invokers {
		def := inv.Definition()
		if def.Name == "" {
			return nil, fmt.Errorf("tool: invoker with empty name")
		}
		if _, exists := r.invokers[def.Name]; exists {
			return nil, fmt.Errorf("tool: duplicate tool name %q", def.Name)
		}
		r.invokers[def.Name] = inv

		schema, err := compileSchema(def.Name, def.Parameters)
		if err != nil {
			return nil, err
		}
		r.schemas[def.Name] = schema
	}
	return r, nil
}

func compileSchema(name string, parameters map[string]any) (*jsonschema.Schema, error) {
	if len(parameters) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(parameters)
	if err != nil {
		return nil, fmt.Errorf("tool: marshal schema for %q: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	resourceName := name + ".json"
	if err := compiler.AddResource(resourceName, bytesReader(raw)); err != nil {
		return nil, fmt.Errorf("tool: invalid schema for %q: %w", name, err)
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("tool: compile schema for %q: %w", name, err)
	}
	return schema, nil
}

// Describe returns every tool in the registry, for injecting into the
// LLM's tool list (§4.2).
func (r *Registry) Describe() []Definition {
	defs := make([]Definition, 0, len(r.invokers))
	for _, inv := range r.invokers {
		defs = append(defs, inv.Definition())
	}
	return defs
}

// Invoke validates arguments against the tool's schema and dispatches to
// its invoker, bounding the call with r.Timeout when set (§5). Cancellation
// is honoured via ctx: an invoker observing ctx.Done() must abort, and
// Invoke distinguishes a caller cancellation (ClassCancelled) from the
// Registry's own deadline expiring (ClassTimeout) (§4.2, §5).
func (r *Registry) Invoke(ctx context.Context, name string, arguments map[string]any) (result Result, err error) {
	inv, ok := r.invokers[name]
	if !ok {
		return Result{}, &Error{Class: ClassNotFound, Tool: name, Err: fmt.Errorf("not registered")}
	}

	if schema, ok := r.schemas[name]; ok && schema != nil {
		if err := schema.Validate(toValidatable(arguments)); err != nil {
			return Result{}, &Error{Class: ClassBadArguments, Tool: name, Err: err}
		}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			result, err = Result{}, &Error{Class: ClassRemote, Tool: name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	result, err = inv.Invoke(ctx, arguments)
	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return Result{}, &Error{Class: ClassTimeout, Tool: name, Err: ctxErr}
		}
		return Result{}, &Error{Class: ClassCancelled, Tool: name, Err: ctxErr}
	}
	var toolErr *Error
	if e, ok := err.(*Error); ok {
		toolErr = e
	} else {
		toolErr = &Error{Class: ClassRemote, Tool: name, Err: err}
	}
	return Result{}, toolErr
}

// toValidatable round-trips arguments through JSON so jsonschema sees the
// same types (float64, []any, map[string]any) it would see decoding wire
// JSON, regardless of what concrete Go types the caller built the map
// with.
func toValidatable(arguments map[string]any) any {
	raw, err := json.Marshal(arguments)
	if err != nil {
		return arguments
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return arguments
	}
	return v
}
