package protocol

import (
	"encoding/json"
	"regexp"
)

// idPattern best-effort-extracts a JSON-RPC "id" value from a line that
// failed to parse as well-formed JSON, so the Transport can still reply
// with a ParseError keyed to the caller's id (spec.md §4.1: "a parse
// error on an inbound line yields a JSON-RPC error response with code
// ParseError if an id can be salvaged"). This is necessarily a regex
// scan, not a parse: the line is, by definition, not valid JSON.
var idPattern = regexp.MustCompile(`"id"\s*:\s*("(?:[^"\\]|\\.)*"|-?[0-9]+(?:\.[0-9]+)?|null)`)

// SalvageID returns the id token from raw if one can be found, or nil if
// the line carries no recognizable id field at all (in which case the
// line is simply dropped and logged, per spec.md §4.1).
func SalvageID(raw []byte) *ID {
	m := idPattern.FindSubmatch(raw)
	if m == nil {
		return nil
	}
	return &ID{raw: append(json.RawMessage(nil), m[1]...)}
}
