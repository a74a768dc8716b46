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

// Package agentrt is the Agent Runtime / Scheduler (C8) and the Run
// Directory (C9): the entry point that drives a Strategy over a
// RunContext and turns its Actions into wire Events, plus the
// process-wide map of active runs that `stop` consults.
package agentrt

import (
	"sync"

	"github.com/fenwick-ai/agentrt/pkg/runctx"
)

// Directory is the only process-wide mutable state in the runtime (§9
// "Global mutable state"): register/deregister/signal_cancel/lookup,
// guarded by a single mutex.
type Directory struct {
	mu   sync.Mutex
	runs map[string]*runctx.RunContext
}

// NewDirectory constructs an empty Directory.
func NewDirectory() *Directory {
	return &Directory{runs: make(map[string]*runctx.RunContext)}
}

func (d *Directory) register(rc *runctx.RunContext) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runs[rc.RunID] = rc
}

func (d *Directory) deregister(runID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.runs, runID)
}

// Stop looks up runID and signals its cancel token. It reports whether a
// run was found and still active; it never blocks on the run's
// completion (§4.6 "stop endpoint").
func (d *Directory) Stop(runID string) bool {
	d.mu.Lock()
	rc, ok := d.runs[runID]
	d.mu.Unlock()
	if !ok {
		return false
	}
	if rc.Cancelled() {
		return false
	}
	rc.Cancel()
	return true
}

// Active reports whether runID is currently registered.
func (d *Directory) Active(runID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.runs[runID]
	return ok
}
