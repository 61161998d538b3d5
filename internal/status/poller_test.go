package status

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renewguide/internal/api"
	"renewguide/internal/apitest"
)

type scriptedBackend struct {
	mu      sync.Mutex
	health  func(ctx context.Context) (api.Envelope, error)
	chatbot func(ctx context.Context) (api.Envelope, error)
	info    func(ctx context.Context) (api.Envelope, error)
	order   []string
}

func (b *scriptedBackend) record(name string) {
	b.mu.Lock()
	b.order = append(b.order, name)
	b.mu.Unlock()
}

func (b *scriptedBackend) Health(ctx context.Context) (api.Envelope, error) {
	b.record("health")
	return b.health(ctx)
}

func (b *scriptedBackend) ChatbotStatus(ctx context.Context) (api.Envelope, error) {
	b.record("chatbot")
	return b.chatbot(ctx)
}

func (b *scriptedBackend) SystemInfo(ctx context.Context) (api.Envelope, error) {
	b.record("info")
	return b.info(ctx)
}

func fixed(env api.Envelope, err error) func(context.Context) (api.Envelope, error) {
	return func(context.Context) (api.Envelope, error) { return env, err }
}

var (
	okEnv     = api.Envelope{Status: api.StatusSuccess}
	failedEnv = api.Envelope{Status: api.StatusError, Error: "down"}
)

func infoEnvelope(collection string) api.Envelope {
	return api.Envelope{
		Status: api.StatusSuccess,
		Data:   []byte(`{"system_info":{"embedding_model":"m","vectorstore_path":"/p","collection_name":"` + collection + `"}}`),
	}
}

func TestNewPollerStartsChecking(t *testing.T) {
	p := NewPoller(&scriptedBackend{})
	snap := p.Snapshot()
	assert.Equal(t, Indicators{FastAPI: Checking, Chroma: Checking, ML: Checking}, snap.Indicators)
	assert.Nil(t, snap.SystemInfo)
	assert.False(t, snap.Loading)
	assert.Equal(t, DefaultInterval, p.Interval())
}

func TestCheckStatusHealthOKChatbotError(t *testing.T) {
	backend := &scriptedBackend{
		health:  fixed(okEnv, nil),
		chatbot: fixed(failedEnv, nil),
		info:    fixed(infoEnvelope("knrec"), nil),
	}
	p := NewPoller(backend)

	snap := p.CheckStatus(context.Background())

	assert.Equal(t, Indicators{FastAPI: Healthy, Chroma: Healthy, ML: Failing}, snap.Indicators)
	require.NotNil(t, snap.SystemInfo)
	assert.Equal(t, "knrec", snap.SystemInfo.CollectionName)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Error)
	assert.Equal(t, []string{"health", "chatbot", "info"}, backend.order)
}

func TestCheckStatusUnrecognizedStatusIsError(t *testing.T) {
	backend := &scriptedBackend{
		health:  fixed(api.Envelope{Status: "healthy"}, nil),
		chatbot: fixed(api.Envelope{Status: "ready"}, nil),
		info:    fixed(failedEnv, nil),
	}
	snap := NewPoller(backend).CheckStatus(context.Background())
	assert.Equal(t, Indicators{FastAPI: Failing, Chroma: Failing, ML: Failing}, snap.Indicators)
}

func TestSystemInfoKeptWhenLaterPollFails(t *testing.T) {
	backend := &scriptedBackend{
		health:  fixed(okEnv, nil),
		chatbot: fixed(okEnv, nil),
		info:    fixed(infoEnvelope("first"), nil),
	}
	p := NewPoller(backend)
	p.CheckStatus(context.Background())

	backend.info = fixed(failedEnv, nil)
	snap := p.CheckStatus(context.Background())
	require.NotNil(t, snap.SystemInfo)
	assert.Equal(t, "first", snap.SystemInfo.CollectionName)

	backend.info = fixed(api.Envelope{Status: api.StatusSuccess}, nil)
	snap = p.CheckStatus(context.Background())
	require.NotNil(t, snap.SystemInfo)
	assert.Equal(t, "first", snap.SystemInfo.CollectionName)

	backend.info = fixed(infoEnvelope("second"), nil)
	snap = p.CheckStatus(context.Background())
	assert.Equal(t, "second", snap.SystemInfo.CollectionName)
}

func TestCheckStatusErrorMarksAllFailing(t *testing.T) {
	backend := &scriptedBackend{
		health:  fixed(okEnv, nil),
		chatbot: fixed(api.Envelope{}, errors.New("connection reset")),
		info:    fixed(infoEnvelope("x"), nil),
	}
	p := NewPoller(backend)

	snap := p.CheckStatus(context.Background())

	assert.Equal(t, Indicators{FastAPI: Failing, Chroma: Failing, ML: Failing}, snap.Indicators)
	assert.Equal(t, "connection reset", snap.Error)
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.SystemInfo)
	assert.Equal(t, []string{"health", "chatbot"}, backend.order)

	backend.chatbot = fixed(okEnv, nil)
	snap = p.Refresh(context.Background())
	assert.Empty(t, snap.Error)
	assert.Equal(t, Healthy, snap.Indicators.ML)
}

func TestOverlappingRefreshLastFinisherWins(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	backend := &scriptedBackend{
		health: func(ctx context.Context) (api.Envelope, error) {
			if calls.Add(1) == 1 {
				<-release
				return okEnv, nil
			}
			return failedEnv, nil
		},
		chatbot: fixed(okEnv, nil),
		info:    fixed(failedEnv, nil),
	}
	p := NewPoller(backend)

	first := make(chan Snapshot)
	go func() { first <- p.Refresh(context.Background()) }()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, p.Snapshot().Loading)

	second := p.Refresh(context.Background())
	assert.Equal(t, Failing, second.Indicators.FastAPI)
	assert.True(t, second.Loading, "first poll is still running")

	close(release)
	final := <-first
	assert.Equal(t, Indicators{FastAPI: Healthy, Chroma: Healthy, ML: Healthy}, final.Indicators)
	assert.False(t, final.Loading)
	assert.Equal(t, final.Indicators, p.Snapshot().Indicators)
}

func TestStartPollsImmediatelyAndOnInterval(t *testing.T) {
	backend := apitest.New(t)
	client := api.New(api.Options{BaseURL: backend.URL()})
	var updates atomic.Int32
	p := NewPoller(client,
		WithInterval(20*time.Millisecond),
		WithOnUpdate(func(Snapshot) { updates.Add(1) }),
	)

	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyStarted)

	require.Eventually(t, func() bool { return backend.Count("/health") >= 3 }, 2*time.Second, 5*time.Millisecond)
	p.Stop()

	healthCalls := backend.Count("/health")
	seen := updates.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, healthCalls, backend.Count("/health"), "no polls after Stop")
	assert.Equal(t, seen, updates.Load(), "no updates after Stop")

	snap := p.Snapshot()
	assert.Equal(t, Healthy, snap.Indicators.FastAPI)
	require.NotNil(t, snap.SystemInfo)
	assert.Equal(t, "knrec_faq", snap.SystemInfo.CollectionName)

	p.Stop()
	require.NoError(t, p.Start(context.Background()), "restart after stop")
	p.Stop()
}

func TestStopCancelsHungPoll(t *testing.T) {
	backend := apitest.New(t)
	backend.Handle(http.MethodGet, "/health", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	client := api.New(api.Options{BaseURL: backend.URL()})
	p := NewPoller(client, WithInterval(time.Hour))

	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return backend.Count("/health") == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while a poll was hung")
	}
	assert.False(t, p.Snapshot().Loading)
}

func TestSystemInfoTopLevelFallback(t *testing.T) {
	env := api.Envelope{
		Status: api.StatusSuccess,
		Raw:    []byte(`{"status":"success","system_info":{"embedding_model":"e","vectorstore_path":"v","collection_name":"c"}}`),
	}
	info := systemInfoFrom(env)
	require.NotNil(t, info)
	assert.Equal(t, "e", info.EmbeddingModel)

	env.Status = api.StatusError
	assert.Nil(t, systemInfoFrom(env))
}

func TestCheckStatusReadsPipelineSystemInfo(t *testing.T) {
	backend := apitest.New(t)
	backend.Handle(http.MethodGet, "/api/system/info", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","system_info":{"embedding_model":{"type":"HuggingFace","name":"jhgan/ko-sroberta-multitask","status":"backup"},"vectorstore_path":"./data/vectorstore","collection_name":"knrec_faq"}}`))
	})
	p := NewPoller(api.New(api.Options{BaseURL: backend.URL()}))

	snap := p.CheckStatus(context.Background())
	require.NotNil(t, snap.SystemInfo)
	assert.Equal(t, "jhgan/ko-sroberta-multitask", snap.SystemInfo.EmbeddingModel)
	assert.Equal(t, "HuggingFace", snap.SystemInfo.EmbeddingType)
	assert.Equal(t, "./data/vectorstore", snap.SystemInfo.VectorstorePath)
	assert.Equal(t, "knrec_faq", snap.SystemInfo.CollectionName)
}
