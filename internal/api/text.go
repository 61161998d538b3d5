package api

import (
	"bytes"

	"renewguide/internal/jsonx"
)

// Text decodes any JSON value into display text. Strings are taken as is,
// objects render their "name" member when it is a string, null is empty and
// everything else keeps its JSON form.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*t = ""
		return nil
	case trimmed[0] == '"':
		var s string
		if err := jsonx.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	case trimmed[0] == '{':
		var fields map[string]jsonx.RawMessage
		if err := jsonx.Unmarshal(trimmed, &fields); err == nil {
			var name string
			if raw, ok := fields["name"]; ok && jsonx.Unmarshal(raw, &name) == nil && name != "" {
				*t = Text(name)
				return nil
			}
		}
	}
	*t = Text(trimmed)
	return nil
}

func (t Text) String() string { return string(t) }
