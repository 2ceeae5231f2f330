// Package main provides the CLI entry point for the Aigent personal AI
// assistant daemon.
//
// Aigent runs as a long-lived background daemon holding a six-tier
// memory store, a sleep/consolidation pipeline, and a sandboxed tool
// executor, fronted by a thin CLI/TUI client speaking a local socket
// protocol.
//
// # Basic usage
//
// Start the assistant (auto-starts the daemon if needed):
//
//	aigent
//
// Check daemon status:
//
//	aigent daemon status
//
// Inspect memory:
//
//	aigent memory stats
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aigent-dev/aigent/internal/config"
	"github.com/aigent-dev/aigent/internal/tools/sandbox"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

func main() {
	// A sandboxed tool invocation re-execs the aigent binary itself with
	// AIGENT_SANDBOX_REEXEC=1 set; intercept that before cobra ever sees
	// argv, since this path never returns on Linux.
	sandbox.MaybeReexec()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main so tests can exercise command wiring directly.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aigent",
		Short: "Aigent - a personal AI assistant daemon with layered memory",
		Long: `Aigent runs a background daemon that holds a six-tier memory store
(core, user profile, reflective, semantic, procedural, episodic), a
nightly sleep/consolidation pipeline, and a sandboxed tool executor,
and fronts it with a CLI/TUI client over a local socket.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
		// Bare `aigent` with no subcommand behaves like `aigent start`.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default ~/.aigent/config.yaml)")

	rootCmd.AddCommand(
		buildStartCmd(),
		buildOnboardCmd(),
		buildConfigurationCmd(),
		buildDaemonCmd(),
		buildMemoryCmd(),
		buildToolCmd(),
		buildToolsCmd(),
		buildDoctorCmd(),
		buildResetCmd(),
	)
	return rootCmd
}

// loadConfig resolves the effective config path and loads it, applying
// defaults for any file that does not yet exist.
func loadConfig() (*config.Config, string, error) {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	return cfg, path, nil
}

// resolveConfigPath returns the --config flag value, or the default
// location under the user's home directory.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".aigent", "config.yaml")
}
