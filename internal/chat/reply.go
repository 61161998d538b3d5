package chat

import (
	"strings"

	"renewguide/internal/api"
)

// replyExtractor pulls reply text out of one chat envelope shape.
type replyExtractor struct {
	name    string
	extract func(api.Envelope) string
}

// replyExtractors is tried in order; the first non-empty text wins.
//
// The backend has shipped three reply shapes over time. This list exists to
// stay compatible with all of them and should shrink once the chat contract
// settles on one.
var replyExtractors = []replyExtractor{
	{name: "data.response", extract: func(env api.Envelope) string {
		reply, err := api.DecodeData[api.ChatReply](env)
		if err != nil {
			return ""
		}
		return string(reply.Response)
	}},
	{name: "response", extract: func(env api.Envelope) string {
		return env.Response
	}},
	{name: "message", extract: func(env api.Envelope) string {
		return env.Message
	}},
}

// extractReply returns the reply text and the strategy that produced it.
// ok is false when no strategy matched and the fallback text was used.
func extractReply(env api.Envelope) (text string, strategy string, ok bool) {
	for _, ex := range replyExtractors {
		if candidate := ex.extract(env); strings.TrimSpace(candidate) != "" {
			return candidate, ex.name, true
		}
	}
	return FallbackReply, "", false
}
