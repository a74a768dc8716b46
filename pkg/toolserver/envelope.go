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

// Package toolserver is the Remote Tool-Server Client (§4.3): a connection
// to an external process exposing tools over HTTP-SSE, a bidirectional
// socket, or a local subprocess, all speaking the same JSON-RPC 2.0
// envelope (§6.4): lazy connect, session correlation, and SSE response
// draining follow an MCP toolset client's shape, but the
// envelope/heartbeat/reconnect state machine here is hand-authored to this
// custom wire contract rather than delegated to an MCP SDK.
package toolserver

import "encoding/json"

// EnvelopeType is the closed set of socket-transport envelope types (§4.3).
type EnvelopeType string

const (
	EnvelopeAuth    EnvelopeType = "auth"
	EnvelopeMessage EnvelopeType = "message"
	EnvelopePing    EnvelopeType = "ping"
	EnvelopePong    EnvelopeType = "pong"
	EnvelopeError   EnvelopeType = "error"
	EnvelopeClose   EnvelopeType = "close"
)

// Envelope is the wire frame for the socket transport (§4.3, §6.4):
// {type, sessionId?, token?, payload?, timestamp}.
type Envelope struct {
	Type      EnvelopeType    `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Token     string          `json:"token,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// rpcRequest is a JSON-RPC 2.0 request carried as an Envelope's Payload.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response carried as an Envelope's Payload.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Required JSON-RPC methods (§6.4).
const (
	methodInitialize  = "initialize"
	methodInitialized = "notifications/initialized"
	methodToolsList   = "tools/list"
	methodToolsCall   = "tools/call"
)

// toolSpec is one entry of a tools/list reply, shaped like an MCP tool
// descriptor (name/description/input schema) — the vocabulary named in
// §6.4 is MCP's, so tool descriptors reuse mark3labs/mcp-go's mcp.Tool
// shape at the JSON level without depending on its transport client.
type toolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type toolsListResult struct {
	Tools []toolSpec `json:"tools"`
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type toolContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolsCallResult struct {
	Content []toolContentItem `json:"content"`
	IsError bool              `json:"isError"`
}
