package session

import (
	"encoding/json"
	"strings"
)

// transcriptMessage is one JSONL line of a Claude-Code session
// transcript. Only "user" and "assistant" types are retained (spec.md
// §4.8 step 3); content is a union of a plain string (user messages,
// and some assistant messages) or an array of {type:'text', text}
// chunks (assistant messages), preserved per spec.md §9's design note
// to "exhaustively handle both forms" rather than coercing to one shape.
type transcriptMessage struct {
	Type    string          `json:"type"`
	Content messageContent  `json:"content"`
}

// text returns the message's retained text, or "" if its type is not
// user/assistant or its content carried no text chunks.
func (m transcriptMessage) text() string {
	switch m.Type {
	case "user", "assistant":
		return strings.TrimSpace(m.Content.String())
	default:
		return ""
	}
}

// messageContent unmarshals either a bare JSON string or an array of
// {type, text} chunks, keeping only chunks whose type is "text".
type messageContent struct {
	plain  string
	chunks []textChunk
}

type textChunk struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (c *messageContent) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		c.plain = asString
		return nil
	}

	var asChunks []textChunk
	if err := json.Unmarshal(data, &asChunks); err != nil {
		return err
	}
	c.chunks = asChunks
	return nil
}

// String joins retained text chunks, or returns the plain string form.
func (c messageContent) String() string {
	if c.plain != "" {
		return c.plain
	}
	var parts []string
	for _, chunk := range c.chunks {
		if chunk.Type == "text" && chunk.Text != "" {
			parts = append(parts, chunk.Text)
		}
	}
	return strings.Join(parts, "\n")
}
