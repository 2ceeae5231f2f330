package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aigent-dev/aigent/pkg/models"
)

// buildDaemonCmd creates the "daemon" command group: start/stop/restart/status.
func buildDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the aigent background daemon",
	}
	cmd.AddCommand(buildDaemonStartCmd(), buildDaemonStopCmd(), buildDaemonRestartCmd(), buildDaemonStatusCmd())
	return cmd
}

func buildDaemonStartCmd() *cobra.Command {
	var foreground bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if foreground {
				return runDaemonForeground(cmd.Context())
			}
			return runDaemonStartDetached()
		},
	}
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run the daemon in this process instead of spawning a detached child")
	return cmd
}

func buildDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStop()
		},
	}
}

func buildDaemonRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = runDaemonStop()
			time.Sleep(300 * time.Millisecond)
			return runDaemonStartDetached()
		},
	}
}

func buildDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStatus(cmd)
		},
	}
}

// runDaemonForeground is the actual daemon entry point: bootstrap,
// start listening, reconcile the Telegram task, then serve until a
// shutdown signal or Shutdown request arrives. This is what `daemon
// start --foreground` runs, both directly and as the detached child
// spawned by a plain `daemon start`.
func runDaemonForeground(ctx context.Context) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	handle, err := bootstrapDaemon(cfg, logger)
	if err != nil {
		return fmt.Errorf("bootstrap daemon: %w", err)
	}

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := handle.server.Start(runCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	handle.server.ReconcileTelegram(handle.telegramCfg)
	if handle.watcher != nil {
		if err := handle.watcher.Start(runCtx); err != nil {
			logger.Warn("vault watcher failed to start", "error", err)
		}
	}

	logger.Info("aigent daemon started", "config", path, "socket", cfg.SocketPath)

	errCh := make(chan error, 1)
	go func() { errCh <- handle.server.Serve() }()

	select {
	case <-runCtx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("daemon accept loop failed", "error", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := handle.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// runDaemonStartDetached spawns `aigent daemon start --foreground` as a
// detached background process and waits briefly for the socket to come
// up, so a bare `aigent` invocation returns control to the shell.
func runDaemonStartDetached() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if pingDaemon(cfg.SocketPath) {
		fmt.Println("daemon already running")
		return nil
	}

	args := []string{"daemon", "start", "--foreground"}
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	child := exec.Command(os.Args[0], args...)
	child.Stdout = nil
	child.Stderr = nil
	child.Stdin = nil
	child.SysProcAttr = detachedSysProcAttr()
	if err := child.Start(); err != nil {
		return fmt.Errorf("spawn daemon: %w", err)
	}
	if err := child.Process.Release(); err != nil {
		return fmt.Errorf("release daemon process: %w", err)
	}

	for i := 0; i < 50; i++ {
		if pingDaemon(cfg.SocketPath) {
			fmt.Println("daemon started")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not become reachable at %s", cfg.SocketPath)
}

// runDaemonStop sends a Shutdown request over the socket; a daemon that
// isn't running is treated as already stopped rather than an error.
func runDaemonStop() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := dialDaemon(cfg.SocketPath, 2*time.Second)
	if err != nil {
		fmt.Println("daemon not running")
		return nil
	}
	defer client.Close()

	if _, err := client.call(models.ReqShutdown, nil); err != nil {
		return fmt.Errorf("request shutdown: %w", err)
	}
	fmt.Println("daemon stopped")
	return nil
}

func runDaemonStatus(cmd *cobra.Command) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := dialDaemon(cfg.SocketPath, 2*time.Second)
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "daemon not running")
		os.Exit(1)
		return nil
	}
	defer client.Close()

	e, err := client.call(models.ReqGetStatus, nil)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	if e.Kind == models.EvtError {
		return eventError(*e)
	}
	var status models.DaemonStatus
	if err := decodeBody(*e, &status); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "uptime:             %s\n", status.Uptime)
	fmt.Fprintf(out, "memory entries:     %d\n", status.MemoryEntryCount)
	fmt.Fprintf(out, "active connections: %d\n", status.ActiveConnections)
	fmt.Fprintf(out, "last passive sleep: %s\n", formatTime(status.LastPassiveSleep))
	fmt.Fprintf(out, "last nightly sleep: %s\n", formatTime(status.LastNightlySleep))
	fmt.Fprintf(out, "last proactive:     %s\n", formatTime(status.LastProactive))
	return nil
}

// pingDaemon reports whether a daemon is listening and responsive at
// socketPath.
func pingDaemon(socketPath string) bool {
	client, err := dialDaemon(socketPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	defer client.Close()
	_, err = client.call(models.ReqPing, nil)
	return err == nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
