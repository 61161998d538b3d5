package api

import (
	"fmt"
	"strings"

	"renewguide/internal/jsonx"
)

// Status is the backend-reported outcome of a call. Values other than
// StatusSuccess and StatusError are kept as sent (the backend also emits
// "healthy" and "ready") and are never treated as success.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Envelope is the uniform result of one backend call.
type Envelope struct {
	Status   Status           `json:"status"`
	Data     jsonx.RawMessage `json:"data,omitempty"`
	Error    string           `json:"error,omitempty"`
	Message  string           `json:"message,omitempty"`
	Response string           `json:"response,omitempty"`

	// Raw is the response body exactly as received. It is nil for
	// envelopes synthesized from a failed request.
	Raw jsonx.RawMessage `json:"-"`
}

// OK reports whether the backend reported success.
func (e Envelope) OK() bool {
	return e.Status == StatusSuccess
}

// HasData reports whether a non-null data payload is present.
func (e Envelope) HasData() bool {
	trimmed := strings.TrimSpace(string(e.Data))
	return trimmed != "" && trimmed != "null"
}

// Field returns a top-level field of the raw body, if present.
func (e Envelope) Field(name string) (jsonx.RawMessage, bool) {
	if len(e.Raw) == 0 {
		return nil, false
	}
	var fields map[string]jsonx.RawMessage
	if err := jsonx.Unmarshal(e.Raw, &fields); err != nil {
		return nil, false
	}
	value, ok := fields[name]
	if !ok || strings.TrimSpace(string(value)) == "null" {
		return nil, false
	}
	return value, true
}

// errorEnvelope builds the synthetic envelope used for every local failure.
func errorEnvelope(format string, args ...any) Envelope {
	return Envelope{Status: StatusError, Error: fmt.Sprintf(format, args...)}
}

// wireEnvelope is the lenient decoding of a response body. Only Data is kept
// raw; the text members accept any JSON value.
type wireEnvelope struct {
	Status   Text             `json:"status"`
	Data     jsonx.RawMessage `json:"data"`
	Error    Text             `json:"error"`
	Message  Text             `json:"message"`
	Response Text             `json:"response"`
}

// decodeEnvelope parses a success body. The body itself is expected to carry
// the status/data/error/message shape; it is not re-wrapped. Only invalid JSON
// fails; a body that is valid JSON but not an object keeps Raw and nothing else.
func decodeEnvelope(body []byte) (Envelope, error) {
	if !jsonx.Valid(body) {
		return Envelope{}, fmt.Errorf("decode response body: invalid JSON")
	}
	env := Envelope{Raw: append(jsonx.RawMessage(nil), body...)}
	var wire wireEnvelope
	if err := jsonx.Unmarshal(body, &wire); err != nil {
		return env, nil
	}
	env.Status = Status(wire.Status)
	env.Data = wire.Data
	env.Error = string(wire.Error)
	env.Message = string(wire.Message)
	env.Response = string(wire.Response)
	return env, nil
}

// DecodeData decodes the envelope's data payload into T.
func DecodeData[T any](env Envelope) (T, error) {
	var out T
	if !env.HasData() {
		return out, fmt.Errorf("envelope has no data payload")
	}
	if err := jsonx.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("decode data payload: %w", err)
	}
	return out, nil
}

// DecodeField decodes a top-level field of the raw body into T.
func DecodeField[T any](env Envelope, name string) (T, error) {
	var out T
	raw, ok := env.Field(name)
	if !ok {
		return out, fmt.Errorf("envelope has no %q field", name)
	}
	if err := jsonx.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", name, err)
	}
	return out, nil
}
