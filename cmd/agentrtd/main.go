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

// Command agentrtd is the runtime's process entrypoint: it loads a config
// file, wires the LLM/tool-server/strategy stack, and serves the run/stop
// HTTP endpoints (§6.1, §6.2).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fenwick-ai/agentrt/internal/config"
	"github.com/fenwick-ai/agentrt/internal/logging"
	"github.com/fenwick-ai/agentrt/pkg/agentrt"
	"github.com/fenwick-ai/agentrt/pkg/llm"
	"github.com/fenwick-ai/agentrt/pkg/observability"
	transporthttp "github.com/fenwick-ai/agentrt/pkg/transport/http"
	"github.com/fenwick-ai/agentrt/pkg/toolserver"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

type cli struct {
	Serve    serveCmd    `cmd:"" help:"Load a config file and serve the run/stop HTTP endpoints."`
	Validate validateCmd `cmd:"" help:"Load and validate a config file without serving."`
	Version  versionCmd  `cmd:"" help:"Print the build version."`
}

type serveCmd struct {
	Config string `help:"Path to the YAML config file." required:"" type:"existingfile"`
}

func (c *serveCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}

	logging.Init(logging.ParseLevel(cfg.Logging.Level), os.Stderr)
	log := logging.Get()

	models := llm.NewRegistry()
	for name, mc := range cfg.Models {
		if _, err := models.CreateFromConfig(name, llm.Config{
			Type:        mc.Provider,
			Model:       mc.Model,
			APIKey:      mc.APIKey,
			BaseURL:     mc.BaseURL,
			MaxTokens:   mc.MaxTokens,
			Temperature: mc.Temperature,
			TopP:        mc.TopP,
		}); err != nil {
			return fmt.Errorf("configuring model %q: %w", name, err)
		}
	}

	toolServers := make(map[string]*toolserver.Client, len(cfg.ToolServers))
	for name, tc := range cfg.ToolServers {
		client, err := toolserver.New(toolserver.Config{
			Name:             name,
			Transport:        toolserver.Transport(tc.Transport),
			URL:              tc.URL,
			Command:          tc.Command,
			Args:             tc.Args,
			Token:            tc.Token,
			MaxRetries:       tc.MaxRetries,
			HeartbeatTimeout: tc.HeartbeatTimeout,
		})
		if err != nil {
			return fmt.Errorf("configuring tool server %q: %w", name, err)
		}
		toolServers[name] = client
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	tp, err := observability.TracerProvider(context.Background())
	if err != nil {
		return fmt.Errorf("starting tracer: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	rt := &agentrt.Runtime{
		Models:     &agentrt.RegistryModelResolver{Registry: models},
		Tools:      &agentrt.ToolSetResolver{ToolServers: toolServers, ToolTimeout: cfg.Timeouts.ToolInvocation},
		Strategies: &agentrt.StrategySelector{},
		Directory:  agentrt.NewDirectory(),
		Metrics:    metrics,
	}

	server := transporthttp.NewServer(rt, cfg.Timeouts.Run)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", server)

	log.Info("agentrtd listening", "addr", cfg.Server.Addr)
	return http.ListenAndServe(cfg.Server.Addr, mux)
}

type validateCmd struct {
	Config string `help:"Path to the YAML config file." required:"" type:"existingfile"`
}

func (c *validateCmd) Run() error {
	_, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	fmt.Println("config OK")
	return nil
}

type versionCmd struct{}

func (c *versionCmd) Run() error {
	fmt.Println("agentrtd " + version)
	return nil
}

func main() {
	var c cli
	ctx := kong.Parse(&c, kong.Name("agentrtd"), kong.Description("Agent Runtime server."))
	if err := ctx.Run(); err != nil {
		slog.Error("agentrtd exiting", "error", err)
		os.Exit(1)
	}
}
