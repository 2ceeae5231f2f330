package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aigent-dev/aigent/pkg/models"
)

// buildMemoryCmd creates the "memory" command group, all of whose
// subcommands round-trip through the daemon's IPC socket.
func buildMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and manage the memory store",
	}
	cmd.AddCommand(
		buildMemoryStatsCmd(),
		buildMemoryInspectCoreCmd(),
		buildMemoryPromotionsCmd(),
		buildMemoryExportVaultCmd(),
		buildMemoryWipeCmd(),
		buildMemoryProactiveCmd(),
	)
	return cmd
}

func buildMemoryStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-tier memory entry counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := mustDialDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			e, err := client.call(models.ReqGetMemoryStats, nil)
			if err != nil {
				return err
			}
			var stats models.MemoryStats
			if err := decodeBody(*e, &stats); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total active: %d\n", stats.TotalActive)
			fmt.Fprintf(out, "total (all):  %d\n", stats.TotalAll)
			fmt.Fprintf(out, "log path:     %s\n", stats.LogPath)
			for _, tier := range models.AllTiers {
				fmt.Fprintf(out, "  %-14s %d\n", tier, stats.ByTier[tier])
			}
			return nil
		},
	}
}

func buildMemoryInspectCoreCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "inspect-core",
		Short: "Print the active core-tier memory entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := mustDialDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			body := models.GetMemoryPeekBody{Limit: limit, Tier: models.TierCore}
			e, err := client.call(models.ReqGetMemoryPeek, body)
			if err != nil {
				return err
			}
			var entries []*models.MemoryEntry
			if err := decodeBody(*e, &entries); err != nil {
				return err
			}
			printEntries(cmd, entries)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to print")
	return cmd
}

// buildMemoryPromotionsCmd runs one passive sleep pass and reports the
// promote/prune/forget counts it produced. There is no separate
// promotion-history store; RunSleepCycle's result is the history.
func buildMemoryPromotionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promotions",
		Short: "Run a passive consolidation pass and report promotion counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := mustDialDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			e, err := client.call(models.ReqRunSleepCycle, nil)
			if err != nil {
				return err
			}
			var result struct {
				Promoted  int
				Pruned    int
				Forgotten int
			}
			if err := decodeBody(*e, &result); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "promoted:  %d\n", result.Promoted)
			fmt.Fprintf(out, "pruned:    %d\n", result.Pruned)
			fmt.Fprintf(out, "forgotten: %d\n", result.Forgotten)
			return nil
		},
	}
}

func buildMemoryExportVaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-vault",
		Short: "Run one vault projection pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := mustDialDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			e, err := client.call(models.ReqExportVault, nil)
			if err != nil {
				return err
			}
			var result models.VaultExportResult
			if err := decodeBody(*e, &result); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "changed: %d\n", result.Changed)
			for _, f := range result.Files {
				fmt.Fprintln(out, " ", f)
			}
			return nil
		},
	}
}

func buildMemoryWipeCmd() *cobra.Command {
	var layer string
	var yes bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Wipe one memory tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			if layer == "" {
				return fmt.Errorf("--layer is required")
			}
			if !yes {
				return fmt.Errorf("refusing to wipe without --yes")
			}
			client, err := mustDialDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			e, err := client.call(models.ReqWipeMemory, models.WipeMemoryBody{Layer: models.Tier(layer)})
			if err != nil {
				return err
			}
			if e.Kind == models.EvtError {
				return eventError(*e)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wiped tier %s\n", layer)
			return nil
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "Tier to wipe (core, user_profile, reflective, semantic, procedural, episodic)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the wipe")
	return cmd
}

func buildMemoryProactiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proactive",
		Short: "Inspect or trigger the proactive task",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "check",
			Short: "Trigger one proactive firing attempt",
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := mustDialDaemon()
				if err != nil {
					return err
				}
				defer client.Close()

				e, err := client.call(models.ReqTriggerProactive, nil)
				if err != nil {
					return err
				}
				var result struct {
					Fired       bool   `json:"fired"`
					MessageSent bool   `json:"message_sent"`
					Message     string `json:"message,omitempty"`
					SkippedWhy  string `json:"skipped_why,omitempty"`
				}
				if err := decodeBody(*e, &result); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !result.Fired {
					fmt.Fprintf(out, "skipped: %s\n", result.SkippedWhy)
					return nil
				}
				if result.MessageSent {
					fmt.Fprintf(out, "sent: %s\n", result.Message)
				} else {
					fmt.Fprintln(out, "fired, no message sent")
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Show cumulative proactive task stats",
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := mustDialDaemon()
				if err != nil {
					return err
				}
				defer client.Close()

				e, err := client.call(models.ReqGetProactiveStats, nil)
				if err != nil {
					return err
				}
				var stats struct {
					TotalFirings  int       `json:"total_firings"`
					MessagesSent int       `json:"messages_sent"`
					LastFiredAt  time.Time `json:"last_fired_at"`
				}
				if err := decodeBody(*e, &stats); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "total firings:  %d\n", stats.TotalFirings)
				fmt.Fprintf(out, "messages sent:  %d\n", stats.MessagesSent)
				fmt.Fprintf(out, "last fired at:  %s\n", formatTime(stats.LastFiredAt))
				return nil
			},
		},
	)
	return cmd
}

// mustDialDaemon loads the config and dials the daemon, surfacing a
// clear error when it isn't running.
func mustDialDaemon() (*ipcClient, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := dialDaemon(cfg.SocketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("daemon not running (%w)", err)
	}
	return client, nil
}

func printEntries(cmd *cobra.Command, entries []*models.MemoryEntry) {
	out := cmd.OutOrStdout()
	for _, e := range entries {
		fmt.Fprintf(out, "[%s] %s (confidence=%.2f)\n", e.CreatedAt.Format(time.RFC3339), e.Content, e.Confidence)
	}
}
