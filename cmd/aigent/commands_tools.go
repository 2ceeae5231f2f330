package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aigent-dev/aigent/pkg/models"
)

// buildToolsCmd creates the "tools" command group: build and status,
// distinct from "tool" (list/call) above.
func buildToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Build WASM guest tools and report native-vs-guest status",
	}
	cmd.AddCommand(buildToolsBuildCmd(), buildToolsStatusCmd())
	return cmd
}

// buildToolsBuildCmd runs `cargo build --release --target
// wasm32-wasip1` for every crate under <extensions_dir>/tools-src,
// matching the cargo sub-workspace layout wasmguest.Discover expects.
func buildToolsBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build WASM guest crates under the configured extensions directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Tools.ExtensionsDir == "" {
				return fmt.Errorf("tools.extensions_dir is not configured")
			}
			srcRoot := filepath.Join(cfg.Tools.ExtensionsDir, "tools-src")
			crates, err := os.ReadDir(srcRoot)
			if err != nil {
				return fmt.Errorf("read %s: %w", srcRoot, err)
			}

			out := cmd.OutOrStdout()
			for _, crate := range crates {
				if !crate.IsDir() {
					continue
				}
				crateDir := filepath.Join(srcRoot, crate.Name())
				fmt.Fprintf(out, "building %s...\n", crate.Name())
				build := exec.CommandContext(cmd.Context(), "cargo", "build", "--release", "--target", "wasm32-wasip1")
				build.Dir = crateDir
				build.Stdout = out
				build.Stderr = out
				if err := build.Run(); err != nil {
					return fmt.Errorf("build %s: %w", crate.Name(), err)
				}
			}
			fmt.Fprintln(out, "done")
			return nil
		},
	}
}

func buildToolsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report native-vs-guest status for every registered tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := mustDialDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			e, err := client.call(models.ReqListTools, nil)
			if err != nil {
				return err
			}
			var specs []models.ToolSpec
			if err := decodeBody(*e, &specs); err != nil {
				return err
			}
			native, guest := 0, 0
			out := cmd.OutOrStdout()
			for _, spec := range specs {
				kind := "native"
				if spec.Guest {
					kind = "guest"
					guest++
				} else {
					native++
				}
				fmt.Fprintf(out, "%-20s %s\n", spec.Name, kind)
			}
			fmt.Fprintf(out, "\n%d native, %d guest\n", native, guest)
			return nil
		},
	}
}
