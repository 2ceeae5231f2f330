package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aigent-dev/aigent/internal/config"
	"github.com/aigent-dev/aigent/internal/daemon"
	"github.com/aigent-dev/aigent/internal/identity"
	"github.com/aigent-dev/aigent/internal/llm"
	"github.com/aigent-dev/aigent/internal/llm/cloud"
	"github.com/aigent-dev/aigent/internal/llm/local"
	"github.com/aigent-dev/aigent/internal/memindex"
	"github.com/aigent-dev/aigent/internal/memory"
	"github.com/aigent-dev/aigent/internal/proactive"
	"github.com/aigent-dev/aigent/internal/reflection"
	"github.com/aigent-dev/aigent/internal/scheduler"
	"github.com/aigent-dev/aigent/internal/sleep"
	"github.com/aigent-dev/aigent/internal/tools"
	"github.com/aigent-dev/aigent/internal/vault"
)

// daemonHandle bundles everything bootstrap builds, so the caller can
// start it, serve it, and shut it down in sequence.
type daemonHandle struct {
	server      *daemon.Server
	watcher     *vault.Watcher
	telegramCfg config.TelegramConfig
}

// bootstrapDaemon wires a full daemon.Server from a loaded config,
// following the construction order C10's doc comment requires: the
// memory manager and identity kernel first, then the Hub and
// ApprovalGate before the tools (the tool Executor needs a gate before
// the Server that will own its dispatch exists), then the LLM router,
// vault, reflection, sleep/proactive/scheduler, and finally the Server
// itself reusing the pre-built Hub/Gate.
func bootstrapDaemon(cfg *config.Config, logger *slog.Logger) (*daemonHandle, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	memDir := filepath.Join(cfg.DataDir, "memory")
	if err := os.MkdirAll(memDir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}

	// The secondary index is opt-in in the sense that its absence is
	// tolerated: Open creates the sqlite file lazily, and on failure we
	// fall back to the in-memory scan path (idx stays nil).
	var idx *memindex.Index
	if opened, err := memindex.Open(filepath.Join(memDir, "index.sqlite"), 256, logger); err == nil {
		idx = opened
	} else {
		logger.Warn("secondary memory index unavailable, falling back to in-memory scan", "error", err)
	}

	localClient, cloudClient := buildLLMClients(cfg, logger)
	embedder := llmEmbedder{llm.Router{Local: localClient, Cloud: cloudClient}}

	manager, err := memory.Open(filepath.Join(memDir, "events.jsonl"), memory.Config{
		Logger:   logger,
		Index:    idx,
		Embedder: embedder,
	})
	if err != nil {
		return nil, fmt.Errorf("open memory manager: %w", err)
	}

	pinned, err := identity.Load(filepath.Join(memDir, ".identity.json"))
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	kernel := identity.New(pinned, manager)

	hub := daemon.NewHub()
	gate := daemon.NewApprovalGate(hub)

	registry, executor, err := tools.Bootstrap(tools.BootstrapConfig{
		Workspace:      cfg.DataDir,
		ExtensionsDir:  cfg.Tools.ExtensionsDir,
		Policy:         cfg.Execution,
		DefaultTimeout: 30 * time.Second,
		ShellTimeout:   30 * time.Second,
		Gate:           gate,
		Manager:        manager,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap tools: %w", err)
	}

	router := llm.Router{Local: localClient, Cloud: cloudClient}

	vaultDir := filepath.Join(cfg.DataDir, "vault")
	projector := vault.NewProjector(vaultDir, manager, vault.WithLogger(logger))

	reflector := reflection.New(router.Default(), manager, hub, logger)

	sleepPipeline := sleep.New(manager, router.Default(), hub, logger, sleep.Config{
		ForgetEpisodicAfterDays: cfg.Sleep.ForgetEpisodicAfterDays,
		ForgetMinConfidence:     cfg.Sleep.ForgetMinConfidence,
		MultiAgentBatchSize:     cfg.Sleep.MultiAgentBatchSize,
	})

	var proactiveTask *proactive.Task
	if cfg.Proactive.Enabled {
		proactiveTask = proactive.New(router.Default(), manager, kernel, hub, logger, proactive.Config{
			Cooldown: cfg.Proactive.Cooldown,
		})
	}

	sched := scheduler.New(scheduler.Config{
		PassiveInterval:      cfg.Scheduler.PassiveInterval,
		NightlyPollInterval:  cfg.Scheduler.NightlyPollInterval,
		NightlyQuietWindow:   scheduler.Window(cfg.Scheduler.NightlyQuietWindow),
		NightlyMinGap:        cfg.Scheduler.NightlyMinGap,
		ConversationQuietGap: cfg.Scheduler.ConversationQuietGap,
		ProactiveInterval:    cfg.Scheduler.ProactiveInterval,
		ProactiveDND:         scheduler.Window(cfg.Scheduler.ProactiveDND),
		ProactiveCooldown:    cfg.Scheduler.ProactiveCooldown,
	}, scheduler.Hooks{
		RunPassive: func(ctx context.Context) error {
			_, err := sleepPipeline.RunPassive()
			return err
		},
		RunNightly: func(ctx context.Context) error {
			_, err := sleepPipeline.RunMultiAgent(ctx)
			return err
		},
		RunProactive: func(ctx context.Context) error {
			if proactiveTask == nil {
				return nil
			}
			_, err := proactiveTask.Fire(ctx)
			return err
		},
	}, scheduler.WithLogger(logger))

	srv := daemon.New(daemon.Config{
		SocketPath:  cfg.SocketPath,
		StateDir:    cfg.DataDir,
		Manager:     manager,
		Registry:    registry,
		Executor:    executor,
		Hub:         hub,
		Gate:        gate,
		Identity:    kernel,
		LLM:         router,
		Sleep:       sleepPipeline,
		Reflector:   reflector,
		Proactive:   proactiveTask,
		Scheduler:   sched,
		Vault:       projector,
		ConfigPath:  configPathFor(cfg),
		MetricsAddr: "",
		Logger:      logger,
	})

	watcher := vault.NewWatcher(vaultDir, manager, projector, logger)

	return &daemonHandle{server: srv, watcher: watcher, telegramCfg: cfg.Telegram}, nil
}

// configPathFor returns the config file path ReloadConfig re-reads:
// the same path loadConfig resolved at startup (the --config flag, or
// the default under the home directory), so a reload reads the file
// the daemon was actually started from.
func configPathFor(cfg *config.Config) string {
	return resolveConfigPath()
}

// buildLLMClients constructs the local and cloud LLM clients per the
// loaded config. Either may be nil if its section is disabled or
// unconfigured; llm.Router tolerates either being nil.
func buildLLMClients(cfg *config.Config, logger *slog.Logger) (llm.Client, llm.Client) {
	var localClient llm.Client
	if cfg.LLM.Local.Enabled {
		localClient = local.New(local.Config{
			BaseURL:        cfg.LLM.Local.BaseURL,
			DefaultModel:   cfg.LLM.Local.DefaultModel,
			EmbeddingModel: cfg.LLM.Local.EmbeddingModel,
			Timeout:        cfg.LLM.Local.Timeout,
		})
	}

	var cloudClient llm.Client
	if cfg.LLM.Cloud.APIKey != "" {
		switch cfg.LLM.Cloud.Provider {
		case "anthropic":
			c, err := cloud.NewAnthropic(cloud.AnthropicConfig{
				APIKey:       cfg.LLM.Cloud.APIKey,
				BaseURL:      cfg.LLM.Cloud.BaseURL,
				DefaultModel: cfg.LLM.Cloud.DefaultModel,
			})
			if err != nil {
				logger.Warn("anthropic client unavailable", "error", err)
			} else {
				cloudClient = c
			}
		default:
			c, err := cloud.New(cloud.Config{
				APIKey:         cfg.LLM.Cloud.APIKey,
				DefaultModel:   cfg.LLM.Cloud.DefaultModel,
				EmbeddingModel: cfg.LLM.Cloud.EmbeddingModel,
			})
			if err != nil {
				logger.Warn("openrouter client unavailable", "error", err)
			} else {
				cloudClient = c
			}
		}
	}
	return localClient, cloudClient
}

// llmEmbedder adapts an llm.Router to memory.Embedder, which wants a
// synchronous, context-free call; embedding runs with a short internal
// timeout so a slow provider cannot stall a Record call indefinitely.
type llmEmbedder struct {
	router llm.Router
}

func (e llmEmbedder) Embed(text string) ([]float32, error) {
	client := e.router.Default()
	if client == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.Embed(ctx, text)
}
