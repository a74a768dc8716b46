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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-ai/agentrt/pkg/tool"
)

type fakeRetriever struct {
	gotCorpusID string
	gotQuery    string
	gotTopK     int
	passages    []Passage
	err         error
}

func (f *fakeRetriever) Search(ctx context.Context, corpusID, query string, topK int) ([]Passage, error) {
	f.gotCorpusID = corpusID
	f.gotQuery = query
	f.gotTopK = topK
	return f.passages, f.err
}

func TestToolFor_Definition_NamesToolAfterCorpus(t *testing.T) {
	inv := ToolFor(&fakeRetriever{}, "handbook", 5)
	def := inv.Definition()
	assert.Equal(t, "search_handbook", def.Name)
	assert.Contains(t, def.Description, "handbook")
	assert.Equal(t, "object", def.Parameters["type"])
}

func TestToolFor_Invoke_SearchesWithDefaultTopK(t *testing.T) {
	fr := &fakeRetriever{passages: []Passage{{Text: "p1", Source: "s1", Score: 0.9}}}
	inv := ToolFor(fr, "handbook", 3)

	result, err := inv.Invoke(context.Background(), map[string]any{"query": "vacation policy"})
	require.NoError(t, err)

	assert.Equal(t, "handbook", fr.gotCorpusID)
	assert.Equal(t, "vacation policy", fr.gotQuery)
	assert.Equal(t, 3, fr.gotTopK)

	var got []Passage
	require.NoError(t, json.Unmarshal([]byte(result.Content), &got))
	assert.Equal(t, fr.passages, got)
}

func TestToolFor_Invoke_TopKArgumentOverridesDefault(t *testing.T) {
	fr := &fakeRetriever{}
	inv := ToolFor(fr, "handbook", 3)

	_, err := inv.Invoke(context.Background(), map[string]any{"query": "q", "top_k": float64(10)})
	require.NoError(t, err)
	assert.Equal(t, 10, fr.gotTopK)
}

func TestToolFor_Invoke_NonPositiveTopKFallsBackToFive(t *testing.T) {
	fr := &fakeRetriever{}
	inv := ToolFor(fr, "handbook", 0)

	_, err := inv.Invoke(context.Background(), map[string]any{"query": "q"})
	require.NoError(t, err)
	assert.Equal(t, 5, fr.gotTopK)
}

func TestToolFor_Invoke_MissingQueryIsBadArguments(t *testing.T) {
	inv := ToolFor(&fakeRetriever{}, "handbook", 5)

	_, err := inv.Invoke(context.Background(), map[string]any{})
	var toolErr *tool.Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.ClassBadArguments, toolErr.Class)
}

func TestToolFor_Invoke_SearchErrorIsRemoteClass(t *testing.T) {
	fr := &fakeRetriever{err: errors.New("index unavailable")}
	inv := ToolFor(fr, "handbook", 5)

	_, err := inv.Invoke(context.Background(), map[string]any{"query": "q"})
	var toolErr *tool.Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.ClassRemote, toolErr.Class)
	assert.Equal(t, "search_handbook", toolErr.Tool)
}
