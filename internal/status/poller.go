// Package status polls the backend's health endpoints and keeps the latest
// per-subsystem indicators for the dashboard.
package status

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"

	"renewguide/internal/api"
)

// DefaultInterval is the automatic poll period.
const DefaultInterval = 30 * time.Second

// ErrAlreadyStarted is returned by Start on a running poller.
var ErrAlreadyStarted = errors.New("status poller already started")

// Indicator is the perceived health of one subsystem.
type Indicator string

const (
	Healthy  Indicator = "healthy"
	Failing  Indicator = "error"
	Checking Indicator = "checking"
)

// Indicators holds one indicator per subsystem.
type Indicators struct {
	FastAPI Indicator `json:"fastapi" yaml:"fastapi"`
	Chroma  Indicator `json:"chroma" yaml:"chroma"`
	ML      Indicator `json:"ml" yaml:"ml"`
}

// Snapshot is a copy of the poller state.
type Snapshot struct {
	Indicators Indicators      `json:"indicators" yaml:"indicators"`
	SystemInfo *api.SystemInfo `json:"system_info,omitempty" yaml:"system_info,omitempty"`
	Loading    bool            `json:"loading" yaml:"loading"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
	CheckedAt  time.Time       `json:"checked_at,omitempty" yaml:"checked_at,omitempty"`
}

// Backend is the part of the API client the poller needs.
type Backend interface {
	Health(ctx context.Context) (api.Envelope, error)
	ChatbotStatus(ctx context.Context) (api.Envelope, error)
	SystemInfo(ctx context.Context) (api.Envelope, error)
}

// Option customizes a Poller.
type Option func(*Poller)

// WithInterval sets the automatic poll period. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the poller logger.
func WithLogger(l core.Logger) Option {
	return func(p *Poller) { p.log = l }
}

// WithOnUpdate registers fn to receive a snapshot when a scheduled poll starts
// and when it finishes. fn runs on the poller's goroutines and must not block.
func WithOnUpdate(fn func(Snapshot)) Option {
	return func(p *Poller) { p.onUpdate = fn }
}

// Poller owns the status snapshot of one dashboard. Polls may overlap; each
// commits its indicators when it finishes, so the last poll to finish wins.
type Poller struct {
	backend  Backend
	interval time.Duration
	log      core.Logger
	onUpdate func(Snapshot)

	mu         sync.Mutex
	indicators Indicators
	info       *api.SystemInfo
	inFlight   int
	lastErr    string
	checkedAt  time.Time

	lifeMu  sync.Mutex
	cancel  context.CancelFunc
	loopEnd chan struct{}
	polls   sync.WaitGroup
}

// NewPoller creates a poller with every indicator set to Checking.
func NewPoller(backend Backend, opts ...Option) *Poller {
	p := &Poller{
		backend:  backend,
		interval: DefaultInterval,
		indicators: Indicators{
			FastAPI: Checking,
			Chroma:  Checking,
			ML:      Checking,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Global()
	}
	return p
}

// Interval returns the automatic poll period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// CheckStatus runs one poll: health, chatbot status and system info, in that
// order, each starting after the previous reply arrives.
func (p *Poller) CheckStatus(ctx context.Context) Snapshot {
	p.mu.Lock()
	p.inFlight++
	p.lastErr = ""
	p.mu.Unlock()

	indicators, info, err := p.poll(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight--
	p.checkedAt = time.Now()
	if err != nil {
		p.log.Warnw("status check failed", "error", err.Error())
		p.lastErr = err.Error()
		p.indicators = Indicators{FastAPI: Failing, Chroma: Failing, ML: Failing}
		return p.snapshotLocked()
	}
	p.indicators = indicators
	if info != nil {
		p.info = info
	}
	p.log.Debugw("status check done",
		"fastapi", string(indicators.FastAPI),
		"chroma", string(indicators.Chroma),
		"ml", string(indicators.ML))
	return p.snapshotLocked()
}

// Refresh runs a poll on demand. It is not de-duplicated against a poll
// already in flight.
func (p *Poller) Refresh(ctx context.Context) Snapshot {
	return p.CheckStatus(ctx)
}

func (p *Poller) poll(ctx context.Context) (Indicators, *api.SystemInfo, error) {
	health, err := p.backend.Health(ctx)
	if err != nil {
		return Indicators{}, nil, err
	}
	chatbot, err := p.backend.ChatbotStatus(ctx)
	if err != nil {
		return Indicators{}, nil, err
	}
	sysInfo, err := p.backend.SystemInfo(ctx)
	if err != nil {
		return Indicators{}, nil, err
	}

	// The vector store has no probe of its own yet; it mirrors the API health check.
	indicators := Indicators{
		FastAPI: indicatorFor(health),
		Chroma:  indicatorFor(health),
		ML:      indicatorFor(chatbot),
	}
	return indicators, systemInfoFrom(sysInfo), nil
}

func indicatorFor(env api.Envelope) Indicator {
	if env.OK() {
		return Healthy
	}
	return Failing
}

// systemInfoFrom reads data.system_info, then a top-level system_info.
// It returns nil unless the envelope is a success carrying a payload.
func systemInfoFrom(env api.Envelope) *api.SystemInfo {
	if !env.OK() {
		return nil
	}
	if payload, err := api.DecodeData[api.SystemInfoPayload](env); err == nil && payload.SystemInfo != nil {
		return payload.SystemInfo
	}
	if info, err := api.DecodeField[api.SystemInfo](env, "system_info"); err == nil {
		return &info
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Poller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Indicators: p.indicators,
		Loading:    p.inFlight > 0,
		Error:      p.lastErr,
		CheckedAt:  p.checkedAt,
	}
	if p.info != nil {
		info := *p.info
		snap.SystemInfo = &info
	}
	return snap
}

// Start polls once immediately and then every interval until ctx ends or
// Stop is called. Each tick starts its own poll, so a slow poll does not
// hold back the next one.
func (p *Poller) Start(ctx context.Context) error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	if p.cancel != nil {
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.loopEnd = make(chan struct{})
	go p.loop(runCtx, p.loopEnd)
	p.log.Infow("status poller started", "interval", p.interval.String())
	return nil
}

// Stop cancels the schedule and any poll it started, then waits for them to
// return. No update callbacks run after Stop returns. Stop is idempotent.
func (p *Poller) Stop() {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.loopEnd
	p.polls.Wait()
	p.cancel = nil
	p.loopEnd = nil
	p.log.Infow("status poller stopped")
}

func (p *Poller) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.launch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.launch(ctx)
		}
	}
}

func (p *Poller) launch(ctx context.Context) {
	p.polls.Add(1)
	go func() {
		defer p.polls.Done()
		p.notify(ctx, p.beginScheduled())
		snap := p.CheckStatus(ctx)
		p.notify(ctx, snap)
	}()
}

// beginScheduled reports the loading state a scheduled poll is about to enter.
func (p *Poller) beginScheduled() Snapshot {
	snap := p.Snapshot()
	snap.Loading = true
	snap.Error = ""
	return snap
}

func (p *Poller) notify(ctx context.Context, snap Snapshot) {
	if p.onUpdate == nil || ctx.Err() != nil {
		return
	}
	p.onUpdate(snap)
}
