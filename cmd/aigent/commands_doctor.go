package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// buildDoctorCmd creates `aigent doctor`: local diagnostics that don't
// require the daemon to already be healthy. Every check runs and is
// printed; the command exits 1 if any of them failed.
func buildDoctorCmd() *cobra.Command {
	var reviewGate bool
	var modelCatalog bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ok := runDoctor(cmd, reviewGate, modelCatalog)
			if !ok {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reviewGate, "review-gate", false, "Also print the tool approval policy")
	cmd.Flags().BoolVar(&modelCatalog, "model-catalog", false, "Also print the configured LLM models")
	return cmd
}

func runDoctor(cmd *cobra.Command, reviewGate, modelCatalog bool) bool {
	out := cmd.OutOrStdout()
	ok := true

	check := func(name string, pass bool, detail string) {
		status := "ok"
		if !pass {
			status = "FAIL"
			ok = false
		}
		fmt.Fprintf(out, "[%s] %-28s %s\n", status, name, detail)
	}

	cfg, path, err := loadConfig()
	if err != nil {
		check("load config", false, err.Error())
		return false
	}
	check("load config", true, path)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		check("data dir writable", false, err.Error())
	} else {
		probe := filepath.Join(cfg.DataDir, ".doctor-probe")
		writeErr := os.WriteFile(probe, []byte("ok"), 0o644)
		os.Remove(probe)
		check("data dir writable", writeErr == nil, cfg.DataDir)
	}

	check("socket reachable", pingDaemon(cfg.SocketPath), cfg.SocketPath)

	llmOK := cfg.LLM.Local.Enabled || cfg.LLM.Cloud.APIKey != ""
	check("llm provider configured", llmOK, fmt.Sprintf("local=%v cloud=%s", cfg.LLM.Local.Enabled, cfg.LLM.Cloud.Provider))

	if reviewGate {
		fmt.Fprintf(out, "\napproval mode:    %s\n", cfg.Execution.ApprovalMode)
		fmt.Fprintf(out, "allow shell:      %v\n", cfg.Execution.AllowShell)
		fmt.Fprintf(out, "allow wasm:       %v\n", cfg.Execution.AllowWASM)
		fmt.Fprintf(out, "sandbox enabled:  %v\n", cfg.Execution.SandboxEnabled)
		fmt.Fprintf(out, "exempt tools:     %v\n", cfg.Execution.ApprovalExemptTools)
	}
	if modelCatalog {
		fmt.Fprintln(out)
		if cfg.LLM.Local.Enabled {
			fmt.Fprintf(out, "local:  %s (%s)\n", cfg.LLM.Local.DefaultModel, cfg.LLM.Local.BaseURL)
		}
		if cfg.LLM.Cloud.APIKey != "" {
			fmt.Fprintf(out, "cloud:  %s (%s)\n", cfg.LLM.Cloud.DefaultModel, cfg.LLM.Cloud.Provider)
		}
	}

	return ok
}
