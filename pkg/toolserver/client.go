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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fenwick-ai/agentrt/pkg/tool"
)

// State is the connection's position in the §4.3 state machine:
// Disconnected → Connecting → Authenticating → Ready → (Ready ↔
// Reconnecting) → Closed.
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateReady          State = "ready"
	StateReconnecting   State = "reconnecting"
	StateClosed         State = "closed"
)

// Transport is "socket", "http-sse", or "subprocess" (§4.3).
type Transport string

const (
	TransportHTTPSSE    Transport = "http-sse"
	TransportSocket     Transport = "socket"
	TransportSubprocess Transport = "subprocess"
)

// Config describes one remote tool server (internal/config wires this from
// YAML).
type Config struct {
	Name             string
	Transport        Transport
	URL              string        // http-sse, socket
	Command          string        // subprocess
	Args             []string      // subprocess
	Env              map[string]string
	Token            string
	MaxRetries       int
	HeartbeatTimeout time.Duration // server's advertised interval; client treats 3x this as dead (§4.3)
	SSEResponseTimeout time.Duration
}

// DefaultSSEResponseTimeout is long enough for a slow tool server response
// without hanging a run forever.
const DefaultSSEResponseTimeout = 5 * time.Minute

// wireTransport is implemented by each of the three transports
// (http_sse.go, socket.go, subprocess.go). It is deliberately low-level:
// connect/send/receive/close plus the auth handshake, so Client owns all
// state-machine and request-table logic once, identically for all three.
type wireTransport interface {
	// dial performs whatever handshake the transport needs to reach
	// Authenticating (sending the initial auth envelope/initialize call
	// for socket/subprocess; establishing the stream for http-sse).
	dial(ctx context.Context) error
	// send writes one request envelope; recv must eventually deliver its
	// matching response via the channel returned by responses().
	send(ctx context.Context, env Envelope) error
	responses() <-chan Envelope
	closeTransport() error
}

// Client is a connection to one remote tool server, shared across runs
// (§5). It owns the JSON-RPC request table and the reconnect policy; the
// transport-specific type only moves bytes.
type Client struct {
	cfg       Config
	transport wireTransport

	mu        sync.Mutex
	state     State
	sessionID string
	tools     []toolSpec

	reqMu    sync.Mutex
	nextID   atomic.Int64
	pending  map[int64]chan rpcResponse

	lastPing    atomic.Int64 // unix nano of last observed server ping
	monitorStop chan struct{}
	closeOnce   sync.Once
	closed      chan struct{}
}

// New constructs a Client for cfg but does not connect; connection happens
// lazily on first ListTools/Invoke.
func New(cfg Config) (*Client, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.SSEResponseTimeout <= 0 {
		cfg.SSEResponseTimeout = DefaultSSEResponseTimeout
	}
	var transport wireTransport
	switch cfg.Transport {
	case TransportHTTPSSE:
		transport = newHTTPSSETransport(cfg)
	case TransportSocket:
		transport = newSocketTransport(cfg)
	case TransportSubprocess:
		transport = newSubprocessTransport(cfg)
	default:
		return nil, fmt.Errorf("toolserver: unknown transport %q", cfg.Transport)
	}
	c := &Client{
		cfg:       cfg,
		transport: transport,
		state:     StateDisconnected,
		pending:   make(map[int64]chan rpcResponse),
		closed:    make(chan struct{}),
	}
	return c, nil
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// connect drives Disconnected → Connecting → Authenticating → Ready. It is
// idempotent: concurrent callers racing to connect will block on mu and
// observe Ready (or an error) rather than dialing twice.
func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateReady {
		c.mu.Unlock()
		return nil
	}
	if c.state == StateClosed {
		c.mu.Unlock()
		return fmt.Errorf("toolserver %s: connection closed", c.cfg.Name)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	if err := c.transport.dial(ctx); err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("toolserver %s: dial: %w", c.cfg.Name, err)
	}
	c.setState(StateAuthenticating)

	go c.receiveLoop()

	if err := c.handshake(ctx); err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("toolserver %s: handshake: %w", c.cfg.Name, err)
	}

	c.lastPing.Store(time.Now().UnixNano())
	c.setState(StateReady)
	c.startHeartbeatMonitor()
	return nil
}

// startHeartbeatMonitor launches the watchdog required by §4.3: "the
// client must reciprocally treat missing ping beyond the server's
// advertised heartbeat interval × 3 as a connection failure and trigger
// reconnect." It is a no-op when the server hasn't advertised an interval.
// Any previously running monitor (from an earlier Ready period) is stopped
// first so at most one runs at a time.
func (c *Client) startHeartbeatMonitor() {
	c.stopHeartbeatMonitor()
	if c.cfg.HeartbeatTimeout <= 0 {
		return
	}

	c.mu.Lock()
	stop := make(chan struct{})
	c.monitorStop = stop
	c.mu.Unlock()

	deadline := 3 * c.cfg.HeartbeatTimeout
	ticker := time.NewTicker(c.cfg.HeartbeatTimeout)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				last := time.Unix(0, c.lastPing.Load())
				if time.Since(last) > deadline {
					c.handleTransportFailure(fmt.Errorf("toolserver %s: no heartbeat for %s", c.cfg.Name, deadline))
					return
				}
			case <-stop:
				return
			case <-c.closed:
				return
			}
		}
	}()
}

func (c *Client) stopHeartbeatMonitor() {
	c.mu.Lock()
	stop := c.monitorStop
	c.monitorStop = nil
	c.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

func (c *Client) handshake(ctx context.Context) error {
	_, err := c.call(ctx, methodInitialize, map[string]any{"protocolVersion": "2024-11-05"})
	if err != nil {
		return err
	}
	return c.notify(ctx, methodInitialized, nil)
}

// receiveLoop correlates responses back to pending calls by JSON-RPC id
// (§4.3: "responses are correlated back by id; a response for an unknown
// id is logged and discarded") and watches for ping envelopes to satisfy
// the heartbeat contract.
func (c *Client) receiveLoop() {
	for {
		select {
		case env, ok := <-c.transport.responses():
			if !ok {
				c.handleTransportFailure(fmt.Errorf("toolserver %s: transport closed", c.cfg.Name))
				return
			}
			c.handleEnvelope(env)
		case <-c.closed:
			return
		}
	}
}

func (c *Client) handleEnvelope(env Envelope) {
	switch env.Type {
	case EnvelopePing:
		c.lastPing.Store(time.Now().UnixNano())
		_ = c.transport.send(context.Background(), Envelope{
			Type: EnvelopePong, SessionID: c.sessionID, Timestamp: time.Now().UnixMilli(),
		})
	case EnvelopeError:
		c.handleTransportFailure(fmt.Errorf("toolserver %s: server error envelope", c.cfg.Name))
	case EnvelopeMessage:
		var resp rpcResponse
		if err := json.Unmarshal(env.Payload, &resp); err != nil {
			return
		}
		c.reqMu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.reqMu.Unlock()
		if !ok {
			// response for an unknown id: logged and discarded (§4.3)
			slog.Warn("toolserver: discarding response for unknown request id", "server", c.cfg.Name, "id", resp.ID)
			return
		}
		ch <- resp
	}
}

// handleTransportFailure moves Ready → Reconnecting and fails every
// in-flight request with Transport (§4.3).
func (c *Client) handleTransportFailure(cause error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateReconnecting
	c.mu.Unlock()

	c.stopHeartbeatMonitor()

	c.reqMu.Lock()
	pending := c.pending
	c.pending = make(map[int64]chan rpcResponse)
	c.reqMu.Unlock()
	for _, ch := range pending {
		close(ch)
	}

	go c.reconnectWithBackoff(cause)
}

// reconnectWithBackoff redials after a transport failure, using an
// exponential backoff that allows cfg.MaxRetries retries after the first
// attempt (§4.3: "on heartbeat loss or a transport error the client moves
// to Reconnecting and redials with exponential backoff"). cause is logged;
// a caller-initiated Close is detected through the Closed state, which
// ends the retries.
func (c *Client) reconnectWithBackoff(cause error) {
	slog.Warn("toolserver: connection failed, reconnecting", "server", c.cfg.Name, "error", cause)
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 30 * time.Second
	bo := backoff.WithMaxRetries(policy, uint64(c.cfg.MaxRetries))

	err := backoff.Retry(func() error {
		if c.State() == StateClosed {
			return backoff.Permanent(fmt.Errorf("closed"))
		}
		return c.connect(context.Background())
	}, bo)
	if err != nil && c.State() != StateClosed {
		c.setState(StateDisconnected)
	}
}

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	respCh := make(chan rpcResponse, 1)
	c.reqMu.Lock()
	c.pending[id] = respCh
	c.reqMu.Unlock()

	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	if err := c.transport.send(ctx, Envelope{
		Type: EnvelopeMessage, SessionID: c.sessionID, Payload: payload, Timestamp: time.Now().UnixMilli(),
	}); err != nil {
		c.reqMu.Lock()
		delete(c.pending, id)
		c.reqMu.Unlock()
		return nil, err
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			return nil, &tool.Error{Class: tool.ClassTransport, Tool: method, Err: fmt.Errorf("connection lost")}
		}
		if resp.Error != nil {
			return nil, &tool.Error{Class: tool.ClassRemote, Tool: method, Err: fmt.Errorf("%s (code %d)", resp.Error.Message, resp.Error.Code)}
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.reqMu.Lock()
		delete(c.pending, id)
		c.reqMu.Unlock()
		return nil, &tool.Error{Class: tool.ClassCancelled, Tool: method, Err: ctx.Err()}
	}
}

func (c *Client) notify(ctx context.Context, method string, params any) error {
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return err
	}
	return c.transport.send(ctx, Envelope{Type: EnvelopeMessage, SessionID: c.sessionID, Payload: payload, Timestamp: time.Now().UnixMilli()})
}

// ListTools connects lazily if needed and returns the server's advertised
// tools (§4.3 "On Ready the client may list_tools()").
func (c *Client) ListTools(ctx context.Context) ([]tool.Definition, error) {
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	raw, err := c.call(ctx, methodToolsList, nil)
	if err != nil {
		return nil, err
	}
	var result toolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("toolserver %s: decode tools/list: %w", c.cfg.Name, err)
	}
	c.mu.Lock()
	c.tools = result.Tools
	c.mu.Unlock()

	defs := make([]tool.Definition, 0, len(result.Tools))
	for _, t := range result.Tools {
		defs = append(defs, tool.Definition{Name: t.Name, Description: t.Description, Parameters: t.InputSchema})
	}
	return defs, nil
}

// Invoke calls a remote tool by name (§4.3 "invoke(name, args)").
func (c *Client) Invoke(ctx context.Context, name string, arguments map[string]any) (tool.Result, error) {
	if err := c.connect(ctx); err != nil {
		return tool.Result{}, &tool.Error{Class: tool.ClassTransport, Tool: name, Err: err}
	}
	raw, err := c.call(ctx, methodToolsCall, toolsCallParams{Name: name, Arguments: arguments})
	if err != nil {
		return tool.Result{}, err
	}
	var result toolsCallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return tool.Result{}, &tool.Error{Class: tool.ClassRemote, Tool: name, Err: err}
	}
	var text string
	for _, item := range result.Content {
		text += item.Text
	}
	if result.IsError {
		return tool.Result{}, &tool.Error{Class: tool.ClassRemote, Tool: name, Err: fmt.Errorf("%s", text)}
	}
	return tool.Result{Content: text}, nil
}

// Close sends a close envelope (socket transport) and transitions to
// Closed (§4.3 "Caller-initiated close() sends a close envelope then
// transitions to Closed").
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.transport.send(context.Background(), Envelope{Type: EnvelopeClose, SessionID: c.sessionID, Timestamp: time.Now().UnixMilli()})
		c.setState(StateClosed)
		c.stopHeartbeatMonitor()
		close(c.closed)
		err = c.transport.closeTransport()
	})
	return err
}

// Invoker wraps a remote tool as a tool.Invoker for the Tool Registry
// (§4.2 "remote-tool-server handle + remote tool name").
type Invoker struct {
	client *Client
	def    tool.Definition
}

// RemoteTool returns a tool.Invoker bound to one tool exposed by client.
func RemoteTool(client *Client, def tool.Definition) tool.Invoker {
	return &Invoker{client: client, def: def}
}

func (i *Invoker) Definition() tool.Definition { return i.def }

func (i *Invoker) Invoke(ctx context.Context, arguments map[string]any) (tool.Result, error) {
	return i.client.Invoke(ctx, i.def.Name, arguments)
}
