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
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fenwick-ai/agentrt/pkg/agentrt/errkind"
)

// anthropicClient wraps the official Anthropic SDK. Unlike the hand-rolled
// raw-HTTP request/response structs an earlier generation of this codebase
// used, wire details (SSE parsing, content-block indexing) are the SDK's
// problem; this type only translates between the SDK's vocabulary and the
// core's provider-independent one. The SDK's own retries are switched off
// (option.WithMaxRetries(0)), so a failed call is reported once.
type anthropicClient struct {
	sdk   anthropic.Client
	model string
	cfg   Config
}

// NewAnthropicClient constructs a Client backed by the Anthropic Messages
// API. Configuration is frozen here: later calls cannot change model,
// base URL, or API key (§4.1).
func NewAnthropicClient(cfg Config) (Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic: model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicClient{
		sdk:   anthropic.NewClient(opts...),
		model: cfg.Model,
		cfg:   cfg,
	}, nil
}

func (c *anthropicClient) ModelName() string { return c.model }

func (c *anthropicClient) Close() error { return nil }

func (c *anthropicClient) Chat(ctx context.Context, messages []Message, tools []ToolDefinition, params Params) (CompletedReply, error) {
	req := c.buildParams(messages, tools, params)

	msg, err := c.sdk.Messages.New(ctx, req)
	if err != nil {
		return CompletedReply{}, classifyAnthropicError(err)
	}

	reply := CompletedReply{
		Finish: anthropicStopToFinish(string(msg.StopReason)),
		Usage: Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			reply.Text += variant.Text
		case anthropic.ToolUseBlock:
			reply.ToolCalls = append(reply.ToolCalls, ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: decodeToolArgs(variant.Input),
				RawArgs:   string(variant.Input),
			})
		}
	}
	if len(reply.ToolCalls) > 0 {
		reply.Finish = FinishToolCalls
	}
	return reply, nil
}

func (c *anthropicClient) ChatStream(ctx context.Context, messages []Message, tools []ToolDefinition, params Params) func(yield func(Chunk, error) bool) {
	return func(yield func(Chunk, error) bool) {
		req := c.buildParams(messages, tools, params)
		stream := c.sdk.Messages.NewStreaming(ctx, req)

		usage := Usage{}
		toolIndex := -1
		for stream.Next() {
			evt := stream.Current()
			switch variant := evt.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if tu, ok := variant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					toolIndex++
					if !yield(Chunk{Kind: ChunkToolArgs, ToolCall: &ToolCallDelta{
						Index: toolIndex,
						ID:    tu.ID,
						Name:  tu.Name,
					}}, nil) {
						return
					}
				}
			case anthropic.ContentBlockDeltaEvent:
				switch delta := variant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if !yield(Chunk{Kind: ChunkText, Text: delta.Text}, nil) {
						return
					}
				case anthropic.InputJSONDelta:
					if !yield(Chunk{Kind: ChunkToolArgs, ToolCall: &ToolCallDelta{
						Index:     toolIndex,
						ArgsDelta: delta.PartialJSON,
					}}, nil) {
						return
					}
				}
			case anthropic.MessageDeltaEvent:
				usage.CompletionTokens = int(variant.Usage.OutputTokens)
				usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
			}
		}
		if err := stream.Err(); err != nil {
			yield(Chunk{Kind: ChunkFinish, Finish: FinishError, Err: classifyAnthropicError(err)}, classifyAnthropicError(err))
			return
		}
		yield(Chunk{Kind: ChunkFinish, Finish: FinishStop, Usage: usage}, nil)
	}
}

func (c *anthropicClient) buildParams(messages []Message, tools []ToolDefinition, params Params) anthropic.MessageNewParams {
	maxTokens := c.cfg.MaxTokens
	if params.MaxTokens > 0 {
		maxTokens = params.MaxTokens
	}
	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
	}
	if params.SystemPrompt != "" {
		req.System = []anthropic.TextBlockParam{{Text: params.SystemPrompt}}
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, toAnthropicMessage(m))
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{Properties: t.Parameters["properties"]},
			},
		})
	}
	return req
}

func toAnthropicMessage(m Message) anthropic.MessageParam {
	role := anthropic.MessageParamRoleUser
	if m.Role == "assistant" {
		role = anthropic.MessageParamRoleAssistant
	}
	if m.Role == "tool" {
		return anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
	}
	return anthropic.MessageParam{
		Role:    role,
		Content: []anthropic.ContentBlockParamUnion{{OfText: &anthropic.TextBlockParam{Text: m.Content}}},
	}
}

func anthropicStopToFinish(reason string) FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return FinishStop
	case "tool_use":
		return FinishToolCalls
	case "max_tokens":
		return FinishLength
	default:
		return FinishStop
	}
}

// classifyAnthropicError maps an SDK error onto the core's provider-
// independent taxonomy (§4.1, §7): a malformed request the provider
// rejected outright is LLMBadRequest (no retry belongs here, §9 "Retry
// policy"); any other provider-surfaced error is LLMProvider; everything
// else (DNS, connection reset, context deadline) is LLMTransport.
func classifyAnthropicError(err error) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*anthropic.Error); ok {
		if apiErr.StatusCode == 400 {
			return errkind.New(errkind.LLMBadRequest, fmt.Errorf("anthropic: %w", err))
		}
		return errkind.New(errkind.LLMProvider, fmt.Errorf("anthropic: provider error (status %d): %w", apiErr.StatusCode, err))
	}
	return errkind.New(errkind.LLMTransport, fmt.Errorf("anthropic: transport error: %w", err))
}

func decodeToolArgs(raw json.RawMessage) map[string]any {
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
