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

// Package config loads the runtime's process configuration: listen address,
// LLM provider credentials, tool-server connection definitions, and run
// timeouts, from a YAML file overlaid with environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the single entry point for all process configuration.
type Config struct {
	Server      ServerConfig                `yaml:"server"`
	Logging     LoggingConfig               `yaml:"logging"`
	Models      map[string]ModelConfig      `yaml:"models"`
	ToolServers map[string]ToolServerConfig `yaml:"tool_servers"`
	Timeouts    TimeoutConfig               `yaml:"timeouts"`
}

// ServerConfig controls the HTTP transport (§6.1/§6.2).
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig controls internal/logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ModelConfig describes one named LLM client, frozen at construction time
// per §4.1 (provider/model/credentials never change mid-run).
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // "anthropic" or "openai"
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature,omitempty"`
	TopP        float64 `yaml:"top_p,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
}

// ToolServerConfig describes one remote Tool-Server connection (§4.3).
type ToolServerConfig struct {
	Transport        string        `yaml:"transport"` // http-sse, socket, subprocess
	URL              string        `yaml:"url,omitempty"`
	Command          string        `yaml:"command,omitempty"`
	Args             []string      `yaml:"args,omitempty"`
	Token            string        `yaml:"token,omitempty"`
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout,omitempty"`
	MaxRetries       int           `yaml:"max_retries,omitempty"`
}

// TimeoutConfig bounds per-tool-invocation and whole-run durations (§5).
type TimeoutConfig struct {
	ToolInvocation time.Duration `yaml:"tool_invocation,omitempty"`
	Run            time.Duration `yaml:"run,omitempty"`
}

// SetDefaults fills in zero-valued fields with the runtime's defaults.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Timeouts.ToolInvocation == 0 {
		c.Timeouts.ToolInvocation = 30 * time.Second
	}
	if c.Timeouts.Run == 0 {
		c.Timeouts.Run = 5 * time.Minute
	}
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	for name, m := range c.Models {
		if m.Provider != "anthropic" && m.Provider != "openai" {
			return fmt.Errorf("model %q: unknown provider %q", name, m.Provider)
		}
		if m.Model == "" {
			return fmt.Errorf("model %q: model name is required", name)
		}
	}
	for name, ts := range c.ToolServers {
		switch ts.Transport {
		case "http-sse", "socket":
			if ts.URL == "" {
				return fmt.Errorf("tool server %q: url is required for transport %q", name, ts.Transport)
			}
		case "subprocess":
			if ts.Command == "" {
				return fmt.Errorf("tool server %q: command is required for transport %q", name, ts.Transport)
			}
		default:
			return fmt.Errorf("tool server %q: unknown transport %q", name, ts.Transport)
		}
	}
	return nil
}

// Load reads a YAML config file at path, applies environment-variable
// overlay to its raw text, then unmarshals and defaults/validates it.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	expanded := expandEnvVars(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %q: %w", path, err)
	}
	return &cfg, nil
}

var (
	envWithDefault = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`)
	envBraced      = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
)

// expandEnvVars expands ${VAR:-default} and ${VAR} references in a config
// file's raw text before it is parsed as YAML, so secrets like API keys
// never need to live in the file itself.
func expandEnvVars(s string) string {
	s = envWithDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envWithDefault.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})
	s = envBraced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envBraced.FindStringSubmatch(match)
		return os.Getenv(parts[1])
	})
	return s
}

// loadEnvFiles loads .env.local (highest priority) then .env into the
// process environment, ignoring a missing file.
func loadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("loading %s: %w", file, err)
		}
	}
	return nil
}
