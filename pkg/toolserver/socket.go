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
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// socketTransport is the bidirectional transport (§4.3, §6.4): a single
// websocket connection carrying Envelope frames both ways, with the token
// sent as the first auth envelope rather than an HTTP header, so the same
// envelope shape also works for the subprocess transport's stdio pipe.
type socketTransport struct {
	cfg Config

	mu   sync.Mutex
	conn *websocket.Conn

	respCh chan Envelope
}

func newSocketTransport(cfg Config) *socketTransport {
	return &socketTransport{cfg: cfg, respCh: make(chan Envelope, 32)}
}

func (t *socketTransport) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, t.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("socket dial %s: %w", t.cfg.URL, err)
	}
	t.mu.Lock()
	t.conn = conn
	t.respCh = make(chan Envelope, 32) // fresh channel: the previous one was closed by readLoop on disconnect
	t.mu.Unlock()

	go t.readLoop(conn)

	authPayload, _ := json.Marshal(map[string]string{"token": t.cfg.Token})
	return conn.WriteJSON(Envelope{
		Type:      EnvelopeAuth,
		Token:     t.cfg.Token,
		Payload:   authPayload,
		Timestamp: time.Now().UnixMilli(),
	})
}

// readLoop drains frames off the socket onto respCh until the connection
// breaks, at which point respCh is closed so Client.receiveLoop observes
// the failure (§4.3).
func (t *socketTransport) readLoop(conn *websocket.Conn) {
	defer close(t.respCh)
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		t.respCh <- env
	}
}

func (t *socketTransport) send(ctx context.Context, env Envelope) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("socket transport: not connected")
	}
	return conn.WriteJSON(env)
}

func (t *socketTransport) responses() <-chan Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.respCh
}

func (t *socketTransport) closeTransport() error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}
