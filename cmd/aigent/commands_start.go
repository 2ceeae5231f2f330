package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aigent-dev/aigent/internal/config"
	"github.com/aigent-dev/aigent/pkg/models"
)

// buildStartCmd creates the bare `aigent`/`aigent start` command: it
// auto-starts the daemon if needed, then drives a minimal line-mode
// conversation loop over the same SubmitTurn streaming protocol a full
// TUI client would consume. The TUI renderer itself is out of scope
// here; this is the protocol's reference client.
func buildStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start (or attach to) the assistant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd)
		},
	}
	return cmd
}

func runStart(cmd *cobra.Command) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if !pingDaemon(cfg.SocketPath) {
		if err := runDaemonStartDetached(); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "aigent is listening. Type a message and press enter; \"exit\" quits.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := submitTurn(cfg.SocketPath, out, line); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

// submitTurn streams one turn's tokens to out, matching the daemon's
// Token.../Done or Error protocol.
func submitTurn(socketPath string, out io.Writer, text string) error {
	client, err := dialDaemon(socketPath, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial daemon: %w", err)
	}
	defer client.Close()

	body := models.SubmitTurnBody{User: text, Source: "cli"}
	var streamErr error
	err = client.stream(models.ReqSubmitTurn, body, func(e models.Event) bool {
		switch e.Kind {
		case models.EvtToken:
			var tok struct {
				Token string `json:"token"`
			}
			if json.Unmarshal(e.Body, &tok) == nil {
				fmt.Fprint(out, tok.Token)
			}
			return true
		case models.EvtError:
			streamErr = eventError(e)
			return false
		case models.EvtDone:
			fmt.Fprintln(out)
			return false
		default:
			return true
		}
	})
	if err != nil {
		return err
	}
	return streamErr
}

// buildOnboardCmd creates `aigent onboard`: writes a default config if
// none exists yet, then starts the daemon. The interactive setup
// wizard itself is out of scope; this is the non-interactive
// equivalent that lets a fresh install reach a running daemon.
func buildOnboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "First-run setup: write a default config and start the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath()
			if _, err := os.Stat(path); os.IsNotExist(err) {
				cfg, err := config.Load(path)
				if err != nil {
					return fmt.Errorf("build default config: %w", err)
				}
				if err := writeConfig(path, cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote default config to %s\n", path)
			}
			return runDaemonStartDetached()
		},
	}
}

// buildConfigurationCmd creates `aigent configuration`: prints the
// current config and, if the daemon is running, requests it reload the
// file from disk. The interactive wizard is out of scope; editing the
// YAML file directly and re-running this command is the supported path.
func buildConfigurationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configuration",
		Short: "Show the active configuration and ask the daemon to reload it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, data)

			if !pingDaemon(cfg.SocketPath) {
				return nil
			}
			client, err := dialDaemon(cfg.SocketPath, 2*time.Second)
			if err != nil {
				return nil
			}
			defer client.Close()
			_, err = client.call(models.ReqReloadConfig, nil)
			return err
		},
	}
}

func writeConfig(path string, cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
