package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// envelope is used for fast type extraction.
type envelope struct {
	Type *string `json:"type"`
}

// Parse decodes a raw text frame into an Event. The frame must be a JSON
// object with a non-empty string "type" field.
func Parse(data []byte, receivedAt time.Time) (Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Event{}, fmt.Errorf("%w: not a JSON object", ErrMalformedMessage)
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Type == nil || *env.Type == "" {
		return Event{}, ErrMissingType
	}

	raw := make(json.RawMessage, len(trimmed))
	copy(raw, trimmed)

	return Event{
		Type:       *env.Type,
		Raw:        raw,
		ReceivedAt: receivedAt,
	}, nil
}

// Synthetic builds a locally generated event such as the lifecycle
// notifications. fields may be nil.
func Synthetic(typ string, fields map[string]any, at time.Time) Event {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["type"] = typ

	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(fmt.Sprintf(`{"type":%q}`, typ))
	}

	return Event{Type: typ, Raw: raw, ReceivedAt: at}
}
