// Package scheduler drives the daemon's three independent background
// loops: an ungated passive sleep pass, a gated nightly multi-agent
// sleep pass, and a gated proactive-message pass. Each loop owns its
// own ticker, goroutine, and cancel function so any one of them can be
// aborted without affecting the others, as required during graceful
// shutdown.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Window is an IANA-timezone-aware hour range, e.g. a quiet window
// sleep is permitted in, or a do-not-disturb window proactive
// messaging is forbidden in.
type Window struct {
	Timezone  string
	StartHour int
	EndHour   int
}

func (w Window) contains(now time.Time) bool {
	return inWindow(now, loadLocation(w.Timezone), w.StartHour, w.EndHour)
}

// Config controls every gate the three loops evaluate.
type Config struct {
	PassiveInterval time.Duration // default 8h

	NightlyPollInterval   time.Duration // default 5m
	NightlyQuietWindow    Window
	NightlyMinGap         time.Duration // default 22h
	ConversationQuietGap  time.Duration // default 15m

	ProactiveInterval time.Duration // default from config, no builtin default
	ProactiveDND      Window
	ProactiveCooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.PassiveInterval <= 0 {
		c.PassiveInterval = 8 * time.Hour
	}
	if c.NightlyPollInterval <= 0 {
		c.NightlyPollInterval = 5 * time.Minute
	}
	if c.NightlyMinGap <= 0 {
		c.NightlyMinGap = 22 * time.Hour
	}
	if c.ConversationQuietGap <= 0 {
		c.ConversationQuietGap = 15 * time.Minute
	}
	return c
}

// Hooks are the daemon-supplied callbacks the scheduler invokes. Any
// of them may be nil: a nil Run* hook makes its loop's ticks no-ops,
// and a nil LastConversationAt is treated as "no recent conversation".
type Hooks struct {
	RunPassive          func(ctx context.Context) error
	RunNightly          func(ctx context.Context) error
	RunProactive        func(ctx context.Context) error
	LastConversationAt  func() time.Time
}

type loopHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns the three independently cancellable background loops.
type Scheduler struct {
	cfg    Config
	hooks  Hooks
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	loops    map[string]*loopHandle
	lastRun  map[string]time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Scheduler. No loops run until Start is called.
func New(cfg Config, hooks Hooks, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:     cfg.withDefaults(),
		hooks:   hooks,
		logger:  slog.Default().With("component", "scheduler"),
		now:     time.Now,
		loops:   make(map[string]*loopHandle),
		lastRun: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the passive and nightly loops, and the proactive loop
// when ProactiveInterval is positive. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.loops) > 0 {
		return
	}
	s.startLoop(ctx, "passive", s.cfg.PassiveInterval, s.runPassive)
	s.startLoop(ctx, "nightly", s.cfg.NightlyPollInterval, s.runNightlyIfDue)
	if s.cfg.ProactiveInterval > 0 {
		s.startLoop(ctx, "proactive", s.cfg.ProactiveInterval, s.runProactiveIfDue)
	}
}

func (s *Scheduler) startLoop(parent context.Context, name string, interval time.Duration, tick func(context.Context)) {
	loopCtx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.loops[name] = &loopHandle{cancel: cancel, done: done}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				tick(loopCtx)
			}
		}
	}()
}

// Shutdown aborts every loop and waits for each goroutine to exit,
// honoring the spec's ordering requirement that scheduler tasks are
// stopped before the daemon drains in-flight turns and flushes memory.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	loops := make([]*loopHandle, 0, len(s.loops))
	for _, l := range s.loops {
		loops = append(loops, l)
	}
	s.loops = make(map[string]*loopHandle)
	s.mu.Unlock()

	for _, l := range loops {
		l.cancel()
	}
	for _, l := range loops {
		<-l.done
	}
}

func (s *Scheduler) runPassive(ctx context.Context) {
	if s.hooks.RunPassive == nil {
		return
	}
	if err := s.hooks.RunPassive(ctx); err != nil {
		s.logger.Warn("passive sleep run failed", "error", err)
	}
	s.markRun("passive")
}

func (s *Scheduler) runNightlyIfDue(ctx context.Context) {
	if s.hooks.RunNightly == nil {
		return
	}
	now := s.now()
	if !s.cfg.NightlyQuietWindow.contains(now) {
		return
	}
	if now.Sub(s.lastRunTime("nightly")) < s.cfg.NightlyMinGap {
		return
	}
	if s.hooks.LastConversationAt != nil && now.Sub(s.hooks.LastConversationAt()) < s.cfg.ConversationQuietGap {
		return
	}
	if err := s.hooks.RunNightly(ctx); err != nil {
		s.logger.Warn("nightly multi-agent sleep run failed", "error", err)
	}
	s.markRun("nightly")
}

func (s *Scheduler) runProactiveIfDue(ctx context.Context) {
	if s.hooks.RunProactive == nil {
		return
	}
	now := s.now()
	if s.cfg.ProactiveDND.contains(now) {
		return
	}
	if now.Sub(s.lastRunTime("proactive")) < s.cfg.ProactiveCooldown {
		return
	}
	if err := s.hooks.RunProactive(ctx); err != nil {
		s.logger.Warn("proactive run failed", "error", err)
	}
	s.markRun("proactive")
}

func (s *Scheduler) markRun(name string) {
	s.mu.Lock()
	s.lastRun[name] = s.now()
	s.mu.Unlock()
}

func (s *Scheduler) lastRunTime(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun[name]
}

// LastPassiveRun, LastNightlyRun, and LastProactiveRun report the last
// time each loop fired, for DaemonStatus.
func (s *Scheduler) LastPassiveRun() time.Time   { return s.lastRunTime("passive") }
func (s *Scheduler) LastNightlyRun() time.Time   { return s.lastRunTime("nightly") }
func (s *Scheduler) LastProactiveRun() time.Time { return s.lastRunTime("proactive") }
