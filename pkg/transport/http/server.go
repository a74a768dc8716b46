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

// Package http is the HTTP transport (§6.1, §6.2): POST /agent/run streams
// the run's Event sequence back to the caller, and POST
// /agent/run/{run_id}/stop signals cancellation. Wire framing (SSE vs
// length-prefixed) is negotiated off the request's Accept header.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fenwick-ai/agentrt/pkg/agentrt"
	"github.com/fenwick-ai/agentrt/pkg/event"
	"github.com/fenwick-ai/agentrt/pkg/llm"
)

// Server wires the Runtime to chi routes.
type Server struct {
	Runtime    *agentrt.Runtime
	RunTimeout time.Duration
	router     chi.Router
}

// NewServer builds a Server with its routes mounted.
func NewServer(rt *agentrt.Runtime, runTimeout time.Duration) *Server {
	s := &Server{Runtime: rt, RunTimeout: runTimeout}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Post("/agent/run", s.handleRun)
	r.Post("/agent/run/{run_id}/stop", s.handleStop)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type runBody struct {
	ThreadID   string             `json:"thread_id"`
	RunID      string             `json:"run_id"`
	Messages   []llm.Message      `json:"messages"`
	Properties agentrt.Properties `json:"properties"`
}

// handleRun decodes a RunRequest, picks a wire format by Accept header, and
// streams Events as the Runtime produces them — one write per event, no
// buffering the whole run (§4.7 "must not reorder or buffer events").
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var body runBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	format := event.FormatSSE
	contentType := "text/event-stream"
	if r.Header.Get("Accept") == "application/octet-stream" {
		format = event.FormatLengthPrefixed
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	flusher, canFlush := w.(http.Flusher)

	ctx := r.Context()
	if s.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.RunTimeout)
		defer cancel()
	}

	req := agentrt.RunRequest{
		ThreadID:   body.ThreadID,
		RunID:      body.RunID,
		Messages:   body.Messages,
		Properties: body.Properties,
	}

	enc := event.NewEncoder(format)
	w.WriteHeader(http.StatusOK)

	s.Runtime.Run(ctx, req)(func(ev event.Event, err error) bool {
		if err != nil {
			slog.Error("run stream error", "error", err)
			return false
		}
		frame, err := enc.Encode(ev)
		if err != nil {
			slog.Error("encoding event", "error", err)
			return false
		}
		if _, err := w.Write(frame); err != nil {
			return false
		}
		if canFlush {
			flusher.Flush()
		}
		return true
	})
}

type stopResponse struct {
	Stopped bool `json:"stopped"`
}

// handleStop signals cancellation for an in-flight run; it never blocks on
// the run's completion (§4.6 "stop endpoint").
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	stopped := s.Runtime.Directory.Stop(runID)

	w.Header().Set("Content-Type", "application/json")
	if !stopped {
		w.WriteHeader(http.StatusNotFound)
	}
	json.NewEncoder(w).Encode(stopResponse{Stopped: stopped})
}
