package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aigent-dev/aigent/pkg/models"
)

// buildResetCmd creates `aigent reset --hard --yes`: stop the daemon,
// then wipe the entire data root. Destructive and deliberately gated
// behind two explicit flags so it can never fire by accident.
func buildResetCmd() *cobra.Command {
	var hard bool
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Stop the daemon and wipe the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !hard || !yes {
				return fmt.Errorf("reset requires both --hard and --yes")
			}
			return runReset(cmd)
		},
	}
	cmd.Flags().BoolVar(&hard, "hard", false, "Required: confirms a full data-dir wipe")
	cmd.Flags().BoolVar(&yes, "yes", false, "Required: confirms the operation")
	return cmd
}

func runReset(cmd *cobra.Command) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	if client, err := dialDaemon(cfg.SocketPath, 2*time.Second); err == nil {
		client.call(models.ReqShutdown, nil)
		client.Close()
		for i := 0; i < 50; i++ {
			if !pingDaemon(cfg.SocketPath) {
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
	}

	if err := os.RemoveAll(cfg.DataDir); err != nil {
		return fmt.Errorf("remove data dir: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", cfg.DataDir)
	return nil
}
