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

// Package errkind is the small typed-error ladder behind the error
// taxonomy of §7. Every error that can terminate a run or fail a tool
// call is wrapped in a *Error so the Runtime can recover its Kind without
// string-matching messages.
package errkind

import "errors"

// Kind is one row of the §7 taxonomy table.
type Kind string

const (
	Configuration    Kind = "configuration"
	LLMTransport     Kind = "llm_transport"
	LLMProvider      Kind = "llm_provider"
	LLMBadRequest    Kind = "llm_bad_request"
	ToolNotFound     Kind = "tool_not_found"
	ToolBadArguments Kind = "tool_bad_arguments"
	ToolTransport    Kind = "tool_transport"
	ToolRemote       Kind = "tool_remote"
	ToolTimeout      Kind = "tool_timeout"
	ToolCancelled    Kind = "tool_cancelled"
	Cancelled        Kind = "cancelled"
	PlanParseError   Kind = "plan_parse_error"
	Internal         Kind = "internal"
)

// Error pairs a Kind with the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err under kind. If err is nil, New still returns a non-nil
// *Error carrying just the kind — used for sentinel conditions that have
// no underlying Go error (e.g. cancellation).
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// As recovers the Kind of err, defaulting to Internal when err was not
// produced by this package.
func As(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
