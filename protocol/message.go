// Package protocol implements the JSON-RPC 2.0 wire format atlasd speaks
// over its Unix domain socket: requests, responses, and server-pushed
// event notifications, plus the structural validation and error
// taxonomy that classify a malformed or failed message.
package protocol

import (
	"encoding/json"

	"github.com/atlas-daemon/atlasd/errors"
)

// Version is the only JSON-RPC version atlasd accepts or emits.
const Version = "2.0"

// ID is a JSON-RPC request/response identifier: a string, a number, or
// null. It round-trips through json.RawMessage so a client-supplied id
// of any of these shapes is echoed back byte-for-byte.
type ID struct {
	raw json.RawMessage
}

// NewID wraps a concrete id value (string or int64) for use in a
// server-originated request — atlasd never originates requests itself,
// but tests construct IDs this way.
func NewID(v interface{}) ID {
	b, _ := json.Marshal(v)
	return ID{raw: b}
}

func (i ID) IsZero() bool { return len(i.raw) == 0 }

func (i ID) String() string {
	if i.IsZero() {
		return ""
	}
	return string(i.raw)
}

func (i ID) MarshalJSON() ([]byte, error) {
	if i.IsZero() {
		return []byte("null"), nil
	}
	return i.raw, nil
}

func (i *ID) UnmarshalJSON(data []byte) error {
	i.raw = append(i.raw[:0], data...)
	return nil
}

// Request is a client-to-server call expecting a Response (has both
// method and id) or a notification (has method, no id). atlasd's core
// only ever receives Requests from clients; it never receives
// Responses (see Validate).
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether this message carries no id, meaning no
// reply is expected. atlasd's own wire protocol never sends client
// notifications (§4.2), but the codec recognizes the shape regardless.
func (r *Request) IsNotification() bool { return r.ID == nil }

// Response is a server-to-client reply: exactly one of Result or Error
// is populated (see Validate).
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// NewResult builds a successful Response, marshaling result with the
// protocol's camelCase renaming already applied by the caller (Router
// owns that mapping; see spec.md §6).
func NewResult(id *ID, result interface{}) (*Response, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, "marshal rpc result")
	}
	return &Response{JSONRPC: Version, ID: id, Result: b}, nil
}

// NewErrorResponse builds a failed Response carrying a classified RPCError.
func NewErrorResponse(id *ID, rpcErr *RPCError) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: rpcErr}
}

// EventNotification is the one notification shape the server emits to
// clients: method is always "event", and params carries the typed
// event payload described in spec.md §3 ("Event").
type EventNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  EventParams `json:"params"`
}

// EventParams is the {type, data} payload of an EventNotification.
type EventParams struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewEventNotification wraps an event type/data pair for delivery.
func NewEventNotification(eventType string, data interface{}) *EventNotification {
	return &EventNotification{
		JSONRPC: Version,
		Method:  "event",
		Params:  EventParams{Type: eventType, Data: data},
	}
}

// Encode marshals v and appends the newline-delimited framing terminator
// required by spec.md §4.1 ("writes always append a trailing newline").
func Encode(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode rpc message")
	}
	return append(b, '\n'), nil
}
