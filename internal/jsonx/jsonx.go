// Package jsonx picks the JSON codec used for backend payloads.
// sonic is used on amd64/arm64; other platforms fall back to encoding/json.
package jsonx

import (
	stdjson "encoding/json"
	"runtime"

	"github.com/bytedance/sonic"
)

// RawMessage aliases encoding/json.RawMessage so callers don't import both packages.
type RawMessage = stdjson.RawMessage

var (
	Marshal       func(v any) ([]byte, error)
	MarshalIndent func(v any, prefix, indent string) ([]byte, error)
	Unmarshal     func(data []byte, v any) error

	usingSonic bool
)

func init() {
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		Marshal = sonic.Marshal
		MarshalIndent = sonic.ConfigStd.MarshalIndent
		Unmarshal = sonic.Unmarshal
		usingSonic = true
		return
	}
	Marshal = stdjson.Marshal
	MarshalIndent = stdjson.MarshalIndent
	Unmarshal = stdjson.Unmarshal
}

// UsingSonic reports whether the sonic codec is active.
func UsingSonic() bool {
	return usingSonic
}

// Valid reports whether data is a syntactically valid JSON document.
func Valid(data []byte) bool {
	if usingSonic {
		return sonic.Valid(data)
	}
	return stdjson.Valid(data)
}
