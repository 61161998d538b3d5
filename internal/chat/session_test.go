package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renewguide/internal/api"
	"renewguide/internal/apitest"
)

type fakeBackend struct {
	mu    sync.Mutex
	env   api.Envelope
	err   error
	calls []string
	gate  chan struct{}
}

func (f *fakeBackend) Chat(ctx context.Context, message string) (api.Envelope, error) {
	f.mu.Lock()
	f.calls = append(f.calls, message)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.env, f.err
}

func envelope(t *testing.T, body string) api.Envelope {
	t.Helper()
	env, err := decodeForTest(body)
	require.NoError(t, err)
	return env
}

func TestSendMessageDataResponse(t *testing.T) {
	backend := &fakeBackend{env: envelope(t, `{"status":"success","data":{"response":"X"}}`)}
	s := NewSession(backend)

	require.True(t, s.SendMessage(context.Background(), "hello"))

	entries := s.Transcript()
	require.Len(t, entries, 2)
	assert.Equal(t, RoleUser, entries[0].Role)
	assert.Equal(t, "hello", entries[0].Content)
	assert.Equal(t, RoleBot, entries[1].Role)
	assert.Equal(t, "X", entries[1].Content)
	assert.Empty(t, s.LastError())
	assert.False(t, s.InFlight())
}

func TestSendMessageBackendErrorUsesFallback(t *testing.T) {
	backend := &fakeBackend{env: envelope(t, `{"status":"error","error":"boom"}`)}
	s := NewSession(backend)

	s.SendMessage(context.Background(), "hello")

	entries := s.Transcript()
	require.Len(t, entries, 2)
	assert.Equal(t, FallbackReply, entries[1].Content)
	assert.Equal(t, "boom", s.LastError())
	assert.True(t, s.Stats().HasError)
}

func TestSendMessageErrorWithMessageShowsMessage(t *testing.T) {
	backend := &fakeBackend{env: envelope(t, `{"status":"error","message":"rate limited"}`)}
	s := NewSession(backend)

	s.SendMessage(context.Background(), "hello")

	entries := s.Transcript()
	assert.Equal(t, "rate limited", entries[1].Content)
	assert.Equal(t, UnknownError, s.LastError())
}

func TestSendMessageSuccessWithoutReplyIsSoftError(t *testing.T) {
	backend := &fakeBackend{env: envelope(t, `{"status":"success","data":{}}`)}
	s := NewSession(backend)

	s.SendMessage(context.Background(), "hello")

	entries := s.Transcript()
	assert.Equal(t, FallbackReply, entries[1].Content)
	assert.Equal(t, UnknownError, s.LastError())
}

func TestSendMessageTransportErrorUsesConnectionFailed(t *testing.T) {
	backend := &fakeBackend{err: errors.New("timeout")}
	s := NewSession(backend)

	s.SendMessage(context.Background(), "hello")

	entries := s.Transcript()
	require.Len(t, entries, 2)
	assert.Equal(t, ConnectionFailed, entries[1].Content)
	assert.Equal(t, "timeout", s.LastError())
	assert.False(t, s.InFlight())
}

func TestSendMessageIgnoresBlankInput(t *testing.T) {
	backend := &fakeBackend{env: envelope(t, `{"status":"success","response":"hi"}`)}
	s := NewSession(backend)

	for _, text := range []string{"", "   ", "\t\n"} {
		assert.False(t, s.SendMessage(context.Background(), text))
	}
	assert.Empty(t, s.Transcript())
	assert.Empty(t, backend.calls)
}

func TestBeginDropsSecondSendWhileInFlight(t *testing.T) {
	backend := &fakeBackend{
		env:  envelope(t, `{"status":"success","response":"first reply"}`),
		gate: make(chan struct{}),
	}
	s := NewSession(backend)

	turn, ok := s.Begin("first")
	require.True(t, ok)
	done := make(chan bool)
	go func() { done <- s.Complete(context.Background(), turn) }()

	_, ok = s.Begin("second")
	assert.False(t, ok)
	assert.Len(t, s.Transcript(), 1)
	assert.True(t, s.InFlight())

	close(backend.gate)
	require.True(t, <-done)

	entries := s.Transcript()
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Content)
	assert.Equal(t, "first reply", entries[1].Content)
	assert.Equal(t, []string{"first"}, backend.calls)
}

func TestCompleteRejectsStaleTurn(t *testing.T) {
	backend := &fakeBackend{env: envelope(t, `{"status":"success","response":"ok"}`)}
	s := NewSession(backend)

	turn, ok := s.Begin("one")
	require.True(t, ok)
	require.True(t, s.Complete(context.Background(), turn))
	assert.False(t, s.Complete(context.Background(), turn))
	assert.Len(t, s.Transcript(), 2)
}

func TestBeginClearsPreviousError(t *testing.T) {
	backend := &fakeBackend{env: envelope(t, `{"status":"error","error":"boom"}`)}
	s := NewSession(backend)
	s.SendMessage(context.Background(), "one")
	require.Equal(t, "boom", s.LastError())

	_, ok := s.Begin("two")
	require.True(t, ok)
	assert.Empty(t, s.LastError())
}

func TestStatsAndClear(t *testing.T) {
	backend := &fakeBackend{env: envelope(t, `{"status":"error","error":"boom"}`)}
	s := NewSession(backend)
	for _, text := range []string{"a", "b", "c"} {
		s.SendMessage(context.Background(), text)
	}

	stats := s.Stats()
	assert.Equal(t, 6, stats.TotalMessages)
	assert.Equal(t, 3, stats.UserMessages)
	assert.Equal(t, 3, stats.BotMessages)
	assert.Equal(t, stats.UserMessages+stats.BotMessages, stats.TotalMessages)
	assert.True(t, stats.HasError)

	s.Clear()
	assert.Equal(t, Stats{}, s.Stats())
	assert.Empty(t, s.Transcript())
}

func TestEntriesAreTimestampedAndUnique(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	backend := &fakeBackend{env: envelope(t, `{"status":"success","response":"ok"}`)}
	s := NewSession(backend, WithClock(func() time.Time { return fixed }))

	s.SendMessage(context.Background(), "hi")

	entries := s.Transcript()
	require.Len(t, entries, 2)
	assert.Equal(t, fixed, entries[0].CreatedAt)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestSessionAgainstHTTPBackend(t *testing.T) {
	backend := apitest.New(t)
	client := api.New(api.Options{BaseURL: backend.URL()})
	s := NewSession(client)

	s.SendMessage(context.Background(), "풍력 발전량은?")
	entries := s.Transcript()
	require.Len(t, entries, 2)
	assert.Equal(t, "echo: 풍력 발전량은?", entries[1].Content)

	backend.Respond(http.MethodPost, "/api/chat", http.StatusInternalServerError, map[string]any{})
	s.SendMessage(context.Background(), "again")
	entries = s.Transcript()
	require.Len(t, entries, 4)
	assert.Equal(t, FallbackReply, entries[3].Content)
	assert.Equal(t, "HTTP error! status: 500", s.LastError())
}

func TestSessionCallerCancelIsConnectionFailure(t *testing.T) {
	backend := apitest.New(t)
	client := api.New(api.Options{BaseURL: backend.URL()})
	s := NewSession(client)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.SendMessage(ctx, "hello")
	entries := s.Transcript()
	require.Len(t, entries, 2)
	assert.Equal(t, ConnectionFailed, entries[1].Content)
	assert.Equal(t, context.Canceled.Error(), s.LastError())
}
