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

package toolserver

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fenwick-ai/agentrt/pkg/httpclient"
)

// httpSSETransport is the request/response transport (§4.3): each
// outgoing envelope is POSTed and its reply is drained from the response
// body as a single Server-Sent Events frame: the HTTP transport posts a
// JSON-RPC request and reads the SSE body for the matching "message"
// event. No persistent connection exists, so there is
// no Reconnecting state for this transport: a failed POST surfaces as an
// ordinary send error returned to the caller, Client's reconnect loop is
// not involved, and the next request simply POSTs again. Transient
// failures (429/5xx, rate-limit-header aware) are first retried up to
// cfg.MaxRetries times inside httpclient.
type httpSSETransport struct {
	cfg    Config
	client *httpclient.Client

	respCh chan Envelope
	mu     sync.Mutex
}

func newHTTPSSETransport(cfg Config) *httpSSETransport {
	transport := &http.Transport{TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12}}
	return &httpSSETransport{
		cfg: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.SSEResponseTimeout, Transport: transport}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithHeaderParser(gatewayRateLimitHeaders),
		),
		respCh: make(chan Envelope, 8),
	}
}

// dial for this transport is a no-op beyond a reachability probe: there is
// no persistent socket to hold open, only a bearer token to present on
// every subsequent POST.
func (t *httpSSETransport) dial(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.URL, nil)
	if err != nil {
		return err
	}
	t.setAuthHeader(req)
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("http-sse probe %s: %w", t.cfg.URL, err)
	}
	resp.Body.Close()
	return nil
}

func (t *httpSSETransport) setAuthHeader(req *http.Request) {
	if t.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.Token)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Content-Type", "application/json")
}

// send POSTs env's payload and pushes the correlated reply onto respCh.
// Envelope types other than "message" (ping/pong/close) have no meaning
// over this transport and are dropped.
func (t *httpSSETransport) send(ctx context.Context, env Envelope) error {
	if env.Type != EnvelopeMessage {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(env.Payload))
	if err != nil {
		return err
	}
	t.setAuthHeader(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("http-sse send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("http-sse send: status %d", resp.StatusCode)
	}

	payload, err := readSSEDataFrame(resp.Body)
	if err != nil {
		return fmt.Errorf("http-sse read reply: %w", err)
	}

	reply := Envelope{Type: EnvelopeMessage, Payload: payload, Timestamp: time.Now().UnixMilli()}
	select {
	case t.respCh <- reply:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// readSSEDataFrame reads a single "data: ..." line (optionally preceded by
// an "event: message" line) from an SSE body and returns its decoded JSON.
func readSSEDataFrame(body interface{ Read([]byte) (int, error) }) (json.RawMessage, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimPrefix(line, "data:"))
		case line == "":
			if data.Len() > 0 {
				return json.RawMessage(strings.TrimSpace(data.String())), nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if data.Len() > 0 {
		return json.RawMessage(strings.TrimSpace(data.String())), nil
	}
	return nil, fmt.Errorf("no data frame in response")
}

// gatewayRateLimitHeaders tries each known provider's rate-limit header
// convention in turn, since a remote tool server may sit behind any of
// these gateways (or none, in which case every parse is a no-op).
func gatewayRateLimitHeaders(h http.Header) httpclient.RateLimitInfo {
	if info := httpclient.ParseAnthropicHeaders(h); info.RetryAfter > 0 || info.ResetTime > 0 {
		return info
	}
	if info := httpclient.ParseOpenAIHeaders(h); info.RetryAfter > 0 || info.ResetTime > 0 {
		return info
	}
	return httpclient.ParseGeminiHeaders(h)
}

func (t *httpSSETransport) responses() <-chan Envelope {
	return t.respCh
}

func (t *httpSSETransport) closeTransport() error {
	return nil
}
