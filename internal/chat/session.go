// Package chat keeps the transcript of one chatbot panel and runs its
// request/reply round trips against the backend.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"

	"renewguide/internal/api"
)

const (
	FallbackReply    = "Sorry, a temporary error occurred, please try again."
	ConnectionFailed = "Failed to connect to the server. Please check your network connection."
	UnknownError     = "unknown error"
)

// Role identifies who authored an entry.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Entry is one line of the transcript.
type Entry struct {
	ID        string    `json:"id" yaml:"id"`
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Stats summarizes the transcript.
type Stats struct {
	TotalMessages int  `json:"total_messages" yaml:"total_messages"`
	UserMessages  int  `json:"user_messages" yaml:"user_messages"`
	BotMessages   int  `json:"bot_messages" yaml:"bot_messages"`
	HasError      bool `json:"has_error" yaml:"has_error"`
}

// Backend is the part of the API client a session needs.
type Backend interface {
	Chat(ctx context.Context, message string) (api.Envelope, error)
}

// Turn is an accepted send waiting for its reply.
type Turn struct {
	seq  uint64
	Text string
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l core.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session owns one transcript. At most one send is outstanding at a time;
// sends made while one is pending are dropped, not queued.
type Session struct {
	backend Backend
	log     core.Logger
	now     func() time.Time

	mu       sync.Mutex
	entries  []Entry
	inFlight bool
	seq      uint64
	lastErr  string
}

// NewSession creates an empty session bound to backend.
func NewSession(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend: backend,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Global()
	}
	return s
}

// Begin accepts text for sending. It appends the user entry immediately and
// marks the session in flight. It returns false without touching state when
// text is blank or a send is already outstanding.
func (s *Session) Begin(text string) (Turn, bool) {
	if strings.TrimSpace(text) == "" {
		return Turn{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return Turn{}, false
	}
	s.appendLocked(RoleUser, text)
	s.lastErr = ""
	s.inFlight = true
	s.seq++
	return Turn{seq: s.seq, Text: text}, true
}

// Complete runs the backend call for turn and appends exactly one bot entry.
// It returns false if turn is not the outstanding one.
func (s *Session) Complete(ctx context.Context, turn Turn) bool {
	s.mu.Lock()
	if !s.inFlight || turn.seq != s.seq {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	env, err := s.backend.Chat(ctx, turn.Text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false

	if err != nil {
		s.log.Warnw("chat request aborted", "error", err.Error())
		s.appendLocked(RoleBot, ConnectionFailed)
		s.lastErr = err.Error()
		return true
	}

	reply, strategy, found := extractReply(env)
	if env.OK() && found {
		s.log.Debugw("chat reply", "strategy", strategy, "chars", len(reply))
		s.appendLocked(RoleBot, reply)
		return true
	}

	s.appendLocked(RoleBot, reply)
	s.lastErr = env.Error
	if strings.TrimSpace(s.lastErr) == "" {
		s.lastErr = UnknownError
	}
	s.log.Warnw("chat reply unusable", "status", string(env.Status), "error", s.lastErr)
	return true
}

// SendMessage is Begin followed by Complete. It reports whether text was accepted.
func (s *Session) SendMessage(ctx context.Context, text string) bool {
	turn, ok := s.Begin(text)
	if !ok {
		return false
	}
	return s.Complete(ctx, turn)
}

// Clear empties the transcript and the error. A reply still in flight is
// appended to the cleared transcript when it arrives.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.lastErr = ""
}

// Stats is computed from the transcript on every call.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := Stats{TotalMessages: len(s.entries), HasError: s.lastErr != ""}
	for _, entry := range s.entries {
		switch entry.Role {
		case RoleUser:
			stats.UserMessages++
		case RoleBot:
			stats.BotMessages++
		}
	}
	return stats
}

// Transcript returns a copy of the entries in append order.
func (s *Session) Transcript() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// InFlight reports whether a send is outstanding.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// LastError returns the most recent session error, or "".
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) appendLocked(role Role, content string) {
	s.entries = append(s.entries, Entry{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	})
}
