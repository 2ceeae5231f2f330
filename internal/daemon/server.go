// Package daemon implements the daemon server (C10): a local
// stream-socket server speaking newline-delimited JSON, holding the
// single authoritative shared cell (memory manager, tool registry,
// identity kernel, scheduler) behind one mutex, with the take-out /
// operate-lock-free / put-back discipline the spec requires so no LLM
// call or distillation pass is ever performed while the lock is held.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aigent-dev/aigent/internal/channel/telegram"
	"github.com/aigent-dev/aigent/internal/identity"
	"github.com/aigent-dev/aigent/internal/llm"
	"github.com/aigent-dev/aigent/internal/memory"
	"github.com/aigent-dev/aigent/internal/proactive"
	"github.com/aigent-dev/aigent/internal/reflection"
	"github.com/aigent-dev/aigent/internal/scheduler"
	"github.com/aigent-dev/aigent/internal/sleep"
	"github.com/aigent-dev/aigent/internal/tools"
	"github.com/aigent-dev/aigent/internal/vault"
	"github.com/aigent-dev/aigent/pkg/models"
)

// Config gathers everything needed to start a Server.
type Config struct {
	SocketPath string // default /tmp/aigent.sock
	StateDir   string // holds runtime/daemon.pid

	Manager   *memory.Manager
	Registry  *tools.Registry
	Executor  *tools.Executor // built from the same Hub/Gate as below, see NewHub/NewApprovalGate
	Hub       *Hub            // shared with the Executor's ApprovalGate; created via NewHub
	Gate      *ApprovalGate   // the gate handed to tools.NewExecutor
	Identity  *identity.Kernel
	LLM       llm.Router
	Sleep     *sleep.Pipeline
	Reflector *reflection.Reflector
	Proactive *proactive.Task
	Scheduler *scheduler.Scheduler
	Vault     *vault.Projector // nil disables `memory export-vault`

	// ConfigPath, when set, lets ReqReloadConfig re-read the config
	// file and restart the Telegram task if its token or enabled flag
	// changed. Telegram is the initial task (nil if disabled at boot).
	ConfigPath string
	Telegram   *telegram.Task

	// MetricsAddr, when set, serves Prometheus metrics (tool execution
	// counts, sleep cycle counts, memory entry count) at that address
	// for the lifetime of the daemon. Empty disables it.
	MetricsAddr string

	DrainTimeout time.Duration // how long in-flight turns get to finish on Shutdown
	Logger       *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.SocketPath == "" {
		c.SocketPath = "/tmp/aigent.sock"
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Server is the daemon's single process-wide socket server.
type Server struct {
	cfg       Config
	logger    *slog.Logger
	startTime time.Time

	listener net.Listener
	lock     *LockHandle

	broadcast *Hub
	gate      *ApprovalGate
	metrics   *Metrics

	// sharedMu guards everything below: the single authoritative cell
	// the spec describes. Long-running LLM work never runs while held.
	sharedMu sync.Mutex
	manager  *memory.Manager
	registry *tools.Registry
	executor *tools.Executor
	turns    *models.TurnRing

	activeConns  int32
	connWG       sync.WaitGroup
	shuttingDown int32

	ctx    context.Context
	cancel context.CancelFunc

	// configMu guards the Telegram task and the last-loaded config
	// snapshot, both only ever touched from Start/Shutdown/ReloadConfig.
	configMu      sync.Mutex
	telegram      *telegram.Task
	telegramToken string
}

// runCtx returns the server's running context, or Background if Start
// has not been called yet.
func (s *Server) runCtx() context.Context {
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}

// New builds a Server; it does not yet listen or acquire the PID lock.
//
// cfg.Hub and cfg.Gate are normally built ahead of time with NewHub and
// NewApprovalGate, since the tool Executor passed in cfg.Executor needs
// an ApprovalGate at construction time, before a Server exists to own
// it. When a caller omits them (as tests do), New builds a private pair
// so the server is still usable standalone.
func New(cfg Config) *Server {
	cfg = cfg.withDefaults()
	b := cfg.Hub
	if b == nil {
		b = NewHub()
	}
	g := cfg.Gate
	if g == nil {
		g = NewApprovalGate(b)
	}
	return &Server{
		cfg:       cfg,
		logger:    cfg.Logger.With("component", "daemon"),
		broadcast: b,
		gate:      g,
		metrics:   newMetrics(),
		manager:   cfg.Manager,
		registry:  cfg.Registry,
		executor:  cfg.Executor,
		turns:     models.NewTurnRing(0),
		telegram:  cfg.Telegram,
	}
}

// Gate returns the daemon's ApprovalGate: Config.Gate when one was
// supplied, otherwise the private gate New built over the Server's hub.
func (s *Server) Gate() tools.ApprovalGate { return s.gate }

// Broadcast publishes e to every Subscribe connection. Satisfies
// reflection.Broadcaster and proactive.Broadcaster.
func (s *Server) Broadcast(e models.Event) { s.broadcast.Broadcast(e) }

// Start acquires the singleton PID lock, opens the listening socket,
// and starts the scheduler. It returns once the listener is up; it does
// not accept connections itself, Serve runs the accept loop.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.StateDir != "" {
		lock, err := AcquireLock(filepath.Join(s.cfg.StateDir, "runtime"), 0)
		if err != nil {
			return err
		}
		s.lock = lock
	}

	os.Remove(s.cfg.SocketPath)
	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		if s.lock != nil {
			s.lock.Release()
		}
		return fmt.Errorf("listen on %s: %w", s.cfg.SocketPath, err)
	}
	s.listener = ln
	s.startTime = time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	s.ctx = runCtx
	s.cancel = cancel

	if s.cfg.Scheduler != nil {
		s.cfg.Scheduler.Start(runCtx)
	}

	if s.telegram != nil {
		if err := s.telegram.Start(runCtx); err != nil {
			s.logger.Warn("telegram task failed to start", "error", err)
			s.telegram = nil
		}
	}

	if s.cfg.MetricsAddr != "" {
		go s.metrics.ServeMetrics(runCtx, s.cfg.MetricsAddr, s.logger)
	}

	s.logger.Info("daemon listening", "socket", s.cfg.SocketPath)
	return nil
}

// Serve runs the accept loop until the listener is closed. Call after
// Start, typically in its own goroutine.
func (s *Server) Serve() error {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if atomic.LoadInt32(&s.shuttingDown) == 1 {
				return nil
			}
			return err
		}
		s.connWG.Add(1)
		atomic.AddInt32(&s.activeConns, 1)
		go func() {
			defer s.connWG.Done()
			defer atomic.AddInt32(&s.activeConns, -1)
			s.handleConn(newConn(nc))
		}()
	}
}

func (s *Server) handleConn(c *conn) {
	defer c.close()
	var sub *subscriber
	defer func() {
		if sub != nil {
			s.broadcast.unsubscribe(sub)
		}
	}()

	for {
		req, err := c.readRequest()
		if err != nil {
			return
		}
		switch req.Kind {
		case models.ReqSubscribe:
			sub = s.broadcast.subscribe()
			s.streamSubscriber(c, sub)
			return
		case models.ReqDisconnect:
			return
		case models.ReqShutdown:
			c.writeEvent(ackEvent(req.ID))
			go s.Shutdown(context.Background())
			return
		default:
			if err := s.dispatch(c, req); err != nil {
				return
			}
		}
	}
}

func (s *Server) streamSubscriber(c *conn, sub *subscriber) {
	for e := range sub.ch {
		if err := c.writeEvent(e); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(c *conn, req models.Request) error {
	switch req.Kind {
	case models.ReqPing:
		return c.writeEvent(ackEvent(req.ID))
	case models.ReqGetStatus:
		return s.handleGetStatus(c, req)
	case models.ReqGetMemoryPeek:
		return s.handleGetMemoryPeek(c, req)
	case models.ReqGetRecentContext:
		return s.handleGetRecentContext(c, req)
	case models.ReqListTools:
		return s.handleListTools(c, req)
	case models.ReqExecuteTool:
		return s.handleExecuteTool(c, req)
	case models.ReqSubmitTurn:
		return s.handleSubmitTurn(c, req)
	case models.ReqApprovalResponse:
		return s.handleApprovalResponse(c, req)
	case models.ReqRunSleepCycle:
		return s.handleRunSleepCycle(c, req)
	case models.ReqRunMultiAgentSleepCycle:
		return s.handleRunMultiAgentSleepCycle(c, req)
	case models.ReqTriggerProactive:
		return s.handleTriggerProactive(c, req)
	case models.ReqGetProactiveStats:
		return s.handleGetProactiveStats(c, req)
	case models.ReqReloadConfig:
		return s.handleReloadConfig(c, req)
	case models.ReqGetMemoryStats:
		return s.handleGetMemoryStats(c, req)
	case models.ReqExportVault:
		return s.handleExportVault(c, req)
	case models.ReqWipeMemory:
		return s.handleWipeMemory(c, req)
	default:
		return c.writeEvent(errorEvent(req.ID, fmt.Errorf("unknown request kind %q", req.Kind)))
	}
}

func (s *Server) handleGetStatus(c *conn, req models.Request) error {
	s.sharedMu.Lock()
	count := s.manager.Count()
	s.sharedMu.Unlock()

	status := models.DaemonStatus{
		Uptime:            time.Since(s.startTime),
		MemoryEntryCount:  count,
		ActiveConnections: int(atomic.LoadInt32(&s.activeConns)),
		EmbeddingsEnabled: false,
	}
	if s.cfg.Scheduler != nil {
		status.LastPassiveSleep = s.cfg.Scheduler.LastPassiveRun()
		status.LastNightlySleep = s.cfg.Scheduler.LastNightlyRun()
		status.LastProactive = s.cfg.Scheduler.LastProactiveRun()
	}
	e, err := bodyEvent(models.EvtStatus, req.ID, status)
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	return c.writeEvent(e)
}

func (s *Server) handleGetMemoryPeek(c *conn, req models.Request) error {
	var body models.GetMemoryPeekBody
	json.Unmarshal(req.Body, &body)

	s.sharedMu.Lock()
	var all []*models.MemoryEntry
	if body.Tier != "" {
		all = s.manager.ActiveByTier(body.Tier)
	} else {
		all = s.manager.Active()
	}
	s.sharedMu.Unlock()

	if body.Limit > 0 && body.Limit < len(all) {
		all = all[len(all)-body.Limit:]
	}
	e, err := bodyEvent(models.EvtMemoryPeek, req.ID, all)
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	return c.writeEvent(e)
}

func (s *Server) handleGetRecentContext(c *conn, req models.Request) error {
	var body struct {
		Limit int `json:"limit"`
	}
	json.Unmarshal(req.Body, &body)

	s.sharedMu.Lock()
	recent := s.turns.Recent(body.Limit)
	s.sharedMu.Unlock()

	e, err := bodyEvent(models.EvtRecentContext, req.ID, recent)
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	return c.writeEvent(e)
}

func (s *Server) handleListTools(c *conn, req models.Request) error {
	s.sharedMu.Lock()
	var specs []models.ToolSpec
	for _, t := range s.registry.List() {
		spec := tools.Spec(t, nil)
		spec.Guest = s.registry.IsWASM(spec.Name)
		specs = append(specs, spec)
	}
	s.sharedMu.Unlock()

	e, err := bodyEvent(models.EvtToolList, req.ID, specs)
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	return c.writeEvent(e)
}

func (s *Server) handleExecuteTool(c *conn, req models.Request) error {
	var body models.ExecuteToolBody
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	s.broadcast.Broadcast(models.Event{Kind: models.EvtToolCallStart, Body: req.Body})
	result := s.executor.Execute(context.Background(), models.ToolCall{Name: body.Name, Args: body.Args})
	resultBody, _ := json.Marshal(result)
	s.broadcast.Broadcast(models.Event{Kind: models.EvtToolCallEnd, Body: resultBody})

	outcome := "success"
	if !result.Success {
		outcome = "error"
	}
	s.metrics.ToolExecutions.WithLabelValues(body.Name, outcome).Inc()

	e, err := bodyEvent(models.EvtToolResult, req.ID, result)
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	return c.writeEvent(e)
}

func (s *Server) handleApprovalResponse(c *conn, req models.Request) error {
	var body models.ApprovalResponseBody
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	s.gate.Resolve(body.RequestID, body.Approve)
	return c.writeEvent(ackEvent(req.ID))
}

func (s *Server) handleRunSleepCycle(c *conn, req models.Request) error {
	if s.cfg.Sleep == nil {
		return c.writeEvent(errorEvent(req.ID, fmt.Errorf("sleep pipeline not configured")))
	}
	result, err := s.cfg.Sleep.RunPassive()
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	s.metrics.SleepCycles.WithLabelValues("passive").Inc()
	e, err := bodyEvent(models.EvtDone, req.ID, result)
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	return c.writeEvent(e)
}

func (s *Server) handleRunMultiAgentSleepCycle(c *conn, req models.Request) error {
	if s.cfg.Sleep == nil {
		return c.writeEvent(errorEvent(req.ID, fmt.Errorf("sleep pipeline not configured")))
	}
	result, err := s.cfg.Sleep.RunMultiAgent(context.Background())
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	s.metrics.SleepCycles.WithLabelValues("multi_agent").Inc()
	e, err := bodyEvent(models.EvtDone, req.ID, result)
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	return c.writeEvent(e)
}

func (s *Server) handleTriggerProactive(c *conn, req models.Request) error {
	if s.cfg.Proactive == nil {
		return c.writeEvent(errorEvent(req.ID, fmt.Errorf("proactive task not configured")))
	}
	result, err := s.cfg.Proactive.Fire(context.Background())
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	e, err := bodyEvent(models.EvtProactiveResult, req.ID, result)
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	return c.writeEvent(e)
}

func (s *Server) handleGetProactiveStats(c *conn, req models.Request) error {
	if s.cfg.Proactive == nil {
		return c.writeEvent(errorEvent(req.ID, fmt.Errorf("proactive task not configured")))
	}
	e, err := bodyEvent(models.EvtProactiveStats, req.ID, s.cfg.Proactive.Stats())
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	return c.writeEvent(e)
}

// Shutdown drains the server per the spec's graceful shutdown sequence:
// stop the scheduler, stop accepting connections, let in-flight turns
// finish within DrainTimeout, run a final agentic sleep pass, and
// remove the socket file and PID lock.
func (s *Server) Shutdown(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.shuttingDown, 0, 1) {
		return nil
	}
	s.logger.Info("daemon shutting down")

	if s.cfg.Scheduler != nil {
		s.cfg.Scheduler.Shutdown()
	}
	s.configMu.Lock()
	if s.telegram != nil {
		s.telegram.Stop()
		s.telegram = nil
	}
	s.configMu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		s.listener.Close()
	}

	drained := make(chan struct{})
	go func() {
		s.connWG.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(s.cfg.DrainTimeout):
		s.logger.Warn("drain timeout exceeded; proceeding with shutdown")
	}

	if s.cfg.Sleep != nil {
		if _, err := s.cfg.Sleep.RunSingleAgent(ctx); err != nil {
			s.logger.Warn("final sleep pass failed", "error", err)
		}
	}

	os.Remove(s.cfg.SocketPath)
	if s.lock != nil {
		if err := s.lock.Release(); err != nil {
			s.logger.Warn("failed to release daemon lock", "error", err)
		}
	}
	return nil
}
