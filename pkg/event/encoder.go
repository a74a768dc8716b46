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

package event

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Format selects the wire framing an Encoder produces.
type Format string

const (
	// FormatSSE frames each event as two text/event-stream lines plus a
	// blank line separator (§4.7, §6.3).
	FormatSSE Format = "sse"
	// FormatLengthPrefixed frames each event as a 4-byte big-endian
	// length prefix followed by the JSON payload, for Accept:
	// application/octet-stream clients (§6.1).
	FormatLengthPrefixed Format = "length-prefixed"
)

// Encoder turns a typed Event into a byte frame. It is stateless and must
// not reorder or buffer events (§4.7) — every call to Encode corresponds to
// exactly one frame written to the sink.
type Encoder struct {
	format Format
}

// NewEncoder constructs an Encoder for the given wire format.
func NewEncoder(format Format) *Encoder {
	return &Encoder{format: format}
}

// Encode serializes ev as a single wire frame.
func (e *Encoder) Encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("event: marshal %s payload: %w", ev.EventType(), err)
	}

	switch e.format {
	case FormatSSE, "":
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "event: %s\n", ev.EventType())
		buf.WriteString("data: ")
		buf.Write(payload)
		buf.WriteString("\n\n")
		return buf.Bytes(), nil
	case FormatLengthPrefixed:
		frame := envelope{Type: ev.EventType(), Payload: payload}
		body, err := json.Marshal(frame)
		if err != nil {
			return nil, fmt.Errorf("event: marshal length-prefixed frame: %w", err)
		}
		out := make([]byte, 4+len(body))
		binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
		copy(out[4:], body)
		return out, nil
	default:
		return nil, fmt.Errorf("event: unknown wire format %q", e.format)
	}
}

// envelope is the length-prefixed wire shape: a type tag alongside the raw
// event payload, so a length-prefixed client can dispatch without first
// sniffing the JSON body (mirroring what the event: line gives SSE clients
// for free).
type envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeSSE parses a single SSE frame (the two-line-plus-blank-line shape
// produced by Encode with FormatSSE) back into its Type and raw JSON
// payload. It exists to support the round-trip property test (§8 property
// 8); a real remote client does its own SSE line parsing.
func DecodeSSE(frame []byte) (Type, json.RawMessage, error) {
	lines := bytes.SplitN(bytes.TrimRight(frame, "\n"), []byte("\n"), 2)
	if len(lines) != 2 {
		return "", nil, fmt.Errorf("event: malformed SSE frame: want 2 lines, got %d", len(lines))
	}
	const eventPrefix = "event: "
	const dataPrefix = "data: "
	eventLine := string(lines[0])
	dataLine := string(lines[1])
	if len(eventLine) < len(eventPrefix) || eventLine[:len(eventPrefix)] != eventPrefix {
		return "", nil, fmt.Errorf("event: malformed SSE frame: missing %q prefix", eventPrefix)
	}
	if len(dataLine) < len(dataPrefix) || dataLine[:len(dataPrefix)] != dataPrefix {
		return "", nil, fmt.Errorf("event: malformed SSE frame: missing %q prefix", dataPrefix)
	}
	return Type(eventLine[len(eventPrefix):]), json.RawMessage(dataLine[len(dataPrefix):]), nil
}
