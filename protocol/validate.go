package protocol

import (
	"encoding/json"
	"strings"
)

// reservedMethodPrefix is the JSON-RPC 2.0 reserved namespace; method
// names beginning with it are never dispatched.
const reservedMethodPrefix = "rpc."

// Validate checks a raw line against JSON-RPC 2.0's structural rules
// and classifies the message as a request, a notification, or a
// response, returning an *RPCError describing the first violation
// found. atlasd's core only ever expects requests/notifications from
// clients (spec.md §4.2); a well-formed response is still accepted by
// Validate but DecodeRequest rejects it before dispatch.
func Validate(raw []byte) (*RPCError, MessageKind) {
	var msg map[string]interface{}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ParseError(err.Error()), KindUnknown
	}

	version, ok := msg["jsonrpc"]
	if !ok {
		return InvalidRequest("missing 'jsonrpc' field"), KindUnknown
	}
	if version != Version {
		return InvalidRequest("unsupported jsonrpc version"), KindUnknown
	}

	hasMethod := false
	if method, exists := msg["method"]; exists {
		hasMethod = true
		methodStr, ok := method.(string)
		if !ok || methodStr == "" {
			return InvalidRequest("method must be a non-empty string"), KindUnknown
		}
		if strings.HasPrefix(methodStr, reservedMethodPrefix) {
			return InvalidRequest("method names starting with 'rpc.' are reserved"), KindUnknown
		}
	}

	hasID := false
	if id, exists := msg["id"]; exists {
		hasID = true
		switch id.(type) {
		case string, float64, nil, json.Number:
		default:
			return InvalidRequest("invalid id type"), KindUnknown
		}
	}

	_, hasResult := msg["result"]
	hasError := false
	if errObj, exists := msg["error"]; exists {
		hasError = true
		errMap, ok := errObj.(map[string]interface{})
		if !ok {
			return InvalidRequest("error field must be an object"), KindUnknown
		}
		code, hasCode := errMap["code"]
		message, hasMessage := errMap["message"]
		if !hasCode || !hasMessage {
			return InvalidRequest("error object must contain code and message"), KindUnknown
		}
		switch code.(type) {
		case float64, json.Number:
		default:
			return InvalidRequest("error code must be a number"), KindUnknown
		}
		if _, ok := message.(string); !ok {
			return InvalidRequest("error message must be a string"), KindUnknown
		}
	}

	if hasMethod {
		if hasResult || hasError {
			return InvalidRequest("request/notification cannot contain result or error"), KindUnknown
		}
		if params, exists := msg["params"]; exists {
			switch params.(type) {
			case map[string]interface{}, []interface{}, nil:
			default:
				return InvalidRequest("params must be object, array, or null"), KindUnknown
			}
		}
		if hasID {
			return nil, KindRequest
		}
		return nil, KindNotification
	}

	// No method: this is a response shape. atlasd's clients are not
	// expected to send these (spec.md §4.2: "responses received from a
	// client are logged and discarded"), but the shape is still valid
	// JSON-RPC so Validate accepts it; the caller (Transport) decides
	// what to do with KindResponse, and DecodeRequest rejects it.
	if !hasID && !hasError {
		return InvalidRequest("response message must contain id"), KindUnknown
	}
	if !hasResult && !hasError {
		return InvalidRequest("response message must contain result or error"), KindUnknown
	}
	if hasResult && hasError {
		return InvalidRequest("response message cannot contain both result and error"), KindUnknown
	}
	return nil, KindResponse
}

// MessageKind classifies a validated raw JSON-RPC message.
type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindRequest
	KindNotification
	KindResponse
)

// DecodeRequest validates and unmarshals raw into a Request. Callers
// should have already confirmed via Validate that raw classifies as a
// request or notification.
func DecodeRequest(raw []byte) (*Request, *RPCError) {
	if rpcErr, kind := Validate(raw); rpcErr != nil || kind == KindResponse {
		if rpcErr != nil {
			return nil, rpcErr
		}
		return nil, InvalidRequest("expected request, got response")
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, ParseError(err.Error())
	}
	return &req, nil
}
