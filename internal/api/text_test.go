package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renewguide/internal/jsonx"
)

func TestTextAcceptsAnyJSONValue(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{`"plain"`, "plain"},
		{`null`, ""},
		{`{"name":"bge-m3","type":"HuggingFace"}`, "bge-m3"},
		{`{"code":7}`, `{"code":7}`},
		{`12`, "12"},
		{`true`, "true"},
		{`["a"]`, `["a"]`},
	}
	for _, tc := range cases {
		var got Text
		require.NoError(t, jsonx.Unmarshal([]byte(tc.input), &got), tc.input)
		assert.Equal(t, tc.want, got.String(), tc.input)
	}
}

func TestDecodeEnvelopeRejectsOnlyInvalidJSON(t *testing.T) {
	_, err := decodeEnvelope([]byte(`{"status":`))
	require.Error(t, err)

	env, err := decodeEnvelope([]byte(`{"status":"success","response":{"name":"hi"}}`))
	require.NoError(t, err)
	assert.True(t, env.OK())
	assert.Equal(t, "hi", env.Response)
}
