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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fenwick-ai/agentrt/pkg/runctx"
)

func newRegisteredRun(d *Directory, runID string) *runctx.RunContext {
	rc := runctx.New(context.Background(), runID, "thread-1", nil, nil, nil)
	d.register(rc)
	return rc
}

func TestDirectory_StopUnknownRun(t *testing.T) {
	d := NewDirectory()
	assert.False(t, d.Stop("missing"))
}

func TestDirectory_StopSignalsCancellation(t *testing.T) {
	d := NewDirectory()
	rc := newRegisteredRun(d, "run-1")

	assert.True(t, d.Stop("run-1"))
	assert.True(t, rc.Cancelled())
}

func TestDirectory_StopIsNotIdempotentlyTrue(t *testing.T) {
	d := NewDirectory()
	newRegisteredRun(d, "run-1")

	assert.True(t, d.Stop("run-1"))
	assert.False(t, d.Stop("run-1"), "a second Stop on an already-cancelled run reports false")
}

func TestDirectory_ActiveReflectsRegistration(t *testing.T) {
	d := NewDirectory()
	assert.False(t, d.Active("run-1"))

	newRegisteredRun(d, "run-1")
	assert.True(t, d.Active("run-1"))

	d.deregister("run-1")
	assert.False(t, d.Active("run-1"))
}
