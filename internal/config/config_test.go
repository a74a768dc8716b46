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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars_WithDefaultFallback(t *testing.T) {
	t.Setenv("AGENTRT_TEST_UNSET_VAR", "")
	out := expandEnvVars("key: ${AGENTRT_TEST_UNSET_VAR:-fallback}")
	assert.Equal(t, "key: fallback", out)
}

func TestExpandEnvVars_WithDefaultOverridden(t *testing.T) {
	t.Setenv("AGENTRT_TEST_SET_VAR", "actual")
	out := expandEnvVars("key: ${AGENTRT_TEST_SET_VAR:-fallback}")
	assert.Equal(t, "key: actual", out)
}

func TestExpandEnvVars_BracedWithoutDefault(t *testing.T) {
	t.Setenv("AGENTRT_TEST_BRACED", "value-here")
	out := expandEnvVars("key: ${AGENTRT_TEST_BRACED}")
	assert.Equal(t, "key: value-here", out)
}

func TestSetDefaults_FillsZeroValues(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "info", c.Logging.Level)
	assert.Equal(t, 30*time.Second, c.Timeouts.ToolInvocation)
	assert.Equal(t, 5*time.Minute, c.Timeouts.Run)
}

func TestSetDefaults_PreservesExplicitValues(t *testing.T) {
	c := Config{Server: ServerConfig{Addr: ":9090"}, Logging: LoggingConfig{Level: "debug"}}
	c.SetDefaults()
	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, "debug", c.Logging.Level)
}

func TestValidate_RejectsUnknownModelProvider(t *testing.T) {
	c := Config{Models: map[string]ModelConfig{"main": {Provider: "bedrock", Model: "whatever"}}}
	assert.ErrorContains(t, c.Validate(), "unknown provider")
}

func TestValidate_RejectsMissingModelName(t *testing.T) {
	c := Config{Models: map[string]ModelConfig{"main": {Provider: "anthropic"}}}
	assert.ErrorContains(t, c.Validate(), "model name is required")
}

func TestValidate_RejectsMissingURLForHTTPSSE(t *testing.T) {
	c := Config{ToolServers: map[string]ToolServerConfig{"search": {Transport: "http-sse"}}}
	assert.ErrorContains(t, c.Validate(), "url is required")
}

func TestValidate_RejectsMissingCommandForSubprocess(t *testing.T) {
	c := Config{ToolServers: map[string]ToolServerConfig{"search": {Transport: "subprocess"}}}
	assert.ErrorContains(t, c.Validate(), "command is required")
}

func TestValidate_RejectsUnknownTransport(t *testing.T) {
	c := Config{ToolServers: map[string]ToolServerConfig{"search": {Transport: "carrier-pigeon"}}}
	assert.ErrorContains(t, c.Validate(), "unknown transport")
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	c := Config{
		Models:      map[string]ModelConfig{"main": {Provider: "anthropic", Model: "claude-sonnet"}},
		ToolServers: map[string]ToolServerConfig{"search": {Transport: "socket", URL: "wss://example.test"}},
	}
	assert.NoError(t, c.Validate())
}

func TestLoad_ExpandsEnvAndDefaultsAndValidates(t *testing.T) {
	t.Setenv("AGENTRT_TEST_API_KEY", "sk-live-123")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := `
server:
  addr: ":9999"
models:
  main:
    provider: anthropic
    model: claude-sonnet
    api_key: ${AGENTRT_TEST_API_KEY}
tool_servers:
  search:
    transport: http-sse
    url: ${AGENTRT_TEST_SEARCH_URL:-http://localhost:7000}
`
	require.NoError(t, writeFile(path, yamlBody))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "sk-live-123", cfg.Models["main"].APIKey)
	assert.Equal(t, "http://localhost:7000", cfg.ToolServers["search"].URL)
	assert.Equal(t, "info", cfg.Logging.Level, "unset fields still get defaulted")
}

func TestLoad_PropagatesValidationFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, writeFile(path, "models:\n  main:\n    provider: bedrock\n    model: x\n"))

	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown provider")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}
