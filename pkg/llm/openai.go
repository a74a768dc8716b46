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
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fenwick-ai/agentrt/pkg/agentrt/errkind"
)

type openAIClient struct {
	sdk   *openai.Client
	model string
	cfg   Config
}

// NewOpenAIClient constructs a Client backed by the OpenAI-compatible chat
// completions API (also used for Azure/self-hosted OpenAI-compatible
// gateways via cfg.BaseURL).
func NewOpenAIClient(cfg Config) (Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	return &openAIClient{sdk: openai.NewClientWithConfig(conf), model: cfg.Model, cfg: cfg}, nil
}

func (c *openAIClient) ModelName() string { return c.model }

func (c *openAIClient) Close() error { return nil }

func (c *openAIClient) Chat(ctx context.Context, messages []Message, tools []ToolDefinition, params Params) (CompletedReply, error) {
	req := c.buildRequest(messages, tools, params)

	resp, err := c.sdk.CreateChatCompletion(ctx, req)
	if err != nil {
		return CompletedReply{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return CompletedReply{}, fmt.Errorf("openai: empty choices in response")
	}
	choice := resp.Choices[0]
	reply := CompletedReply{
		Text:   choice.Message.Content,
		Finish: openAIFinishReason(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: decodeArgsString(tc.Function.Arguments),
			RawArgs:   tc.Function.Arguments,
		})
	}
	return reply, nil
}

func (c *openAIClient) ChatStream(ctx context.Context, messages []Message, tools []ToolDefinition, params Params) func(yield func(Chunk, error) bool) {
	return func(yield func(Chunk, error) bool) {
		req := c.buildRequest(messages, tools, params)
		req.Stream = true

		stream, err := c.sdk.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield(Chunk{Kind: ChunkFinish, Finish: FinishError, Err: classifyOpenAIError(err)}, classifyOpenAIError(err))
			return
		}
		defer stream.Close()

		usage := Usage{}
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				yield(Chunk{Kind: ChunkFinish, Finish: FinishStop, Usage: usage}, nil)
				return
			}
			if err != nil {
				wrapped := classifyOpenAIError(err)
				yield(Chunk{Kind: ChunkFinish, Finish: FinishError, Err: wrapped}, wrapped)
				return
			}
			if resp.Usage != nil {
				usage = Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				}
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]
			if choice.Delta.Content != "" {
				if !yield(Chunk{Kind: ChunkText, Text: choice.Delta.Content}, nil) {
					return
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				if !yield(Chunk{Kind: ChunkToolArgs, ToolCall: &ToolCallDelta{
					Index:     idx,
					ID:        tc.ID,
					Name:      tc.Function.Name,
					ArgsDelta: tc.Function.Arguments,
				}}, nil) {
					return
				}
			}
			if choice.FinishReason != "" {
				yield(Chunk{Kind: ChunkFinish, Finish: openAIFinishReason(choice.FinishReason), Usage: usage}, nil)
				return
			}
		}
	}
}

func (c *openAIClient) buildRequest(messages []Message, tools []ToolDefinition, params Params) openai.ChatCompletionRequest {
	maxTokens := c.cfg.MaxTokens
	if params.MaxTokens > 0 {
		maxTokens = params.MaxTokens
	}
	temperature := c.cfg.Temperature
	if params.Temperature > 0 {
		temperature = params.Temperature
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: float32(temperature),
	}
	if params.SystemPrompt != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: params.SystemPrompt,
		})
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, toOpenAIMessage(m))
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	if params.StructuredOut != nil {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   params.StructuredOut.Name,
				Schema: params.StructuredOut.Schema,
				Strict: true,
			},
		}
	}
	return req
}

func toOpenAIMessage(m Message) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:       m.Role,
		Content:    m.Content,
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.RawArgs,
			},
		})
	}
	return msg
}

func openAIFinishReason(reason openai.FinishReason) FinishReason {
	switch reason {
	case openai.FinishReasonStop:
		return FinishStop
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return FinishToolCalls
	case openai.FinishReasonLength:
		return FinishLength
	default:
		return FinishStop
	}
}

// classifyOpenAIError maps an SDK error onto the provider-independent
// taxonomy (§4.1, §7), the same way classifyAnthropicError does.
func classifyOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 400 {
			return errkind.New(errkind.LLMBadRequest, fmt.Errorf("openai: %w", err))
		}
		return errkind.New(errkind.LLMProvider, fmt.Errorf("openai: provider error (status %d): %w", apiErr.HTTPStatusCode, err))
	}
	return errkind.New(errkind.LLMTransport, fmt.Errorf("openai: transport error: %w", err))
}

func decodeArgsString(raw string) map[string]any {
	var out map[string]any
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{}
	}
	return out
}
