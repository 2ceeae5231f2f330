package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aigent-dev/aigent/pkg/models"
)

// buildToolCmd creates the "tool" command group: list and call.
func buildToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "List and invoke individual tools",
	}
	cmd.AddCommand(buildToolListCmd(), buildToolCallCmd())
	return cmd
}

func buildToolListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every registered tool",
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
			out := cmd.OutOrStdout()
			for _, spec := range specs {
				kind := "native"
				if spec.Guest {
					kind = "guest"
				}
				fmt.Fprintf(out, "%-20s [%s] %s\n", spec.Name, kind, spec.Description)
				for _, p := range spec.Params {
					req := ""
					if p.Required {
						req = " (required)"
					}
					fmt.Fprintf(out, "    %s%s: %s\n", p.Name, req, p.Description)
				}
			}
			return nil
		},
	}
}

// buildToolCallCmd creates "tool call NAME key=value...", parsing each
// trailing key=value pair into the tool's JSON argument map.
func buildToolCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call NAME [key=value...]",
		Short: "Invoke a tool directly",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			toolArgs, err := parseToolArgs(args[1:])
			if err != nil {
				return err
			}

			client, err := mustDialDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			e, err := client.call(models.ReqExecuteTool, models.ExecuteToolBody{Name: name, Args: toolArgs})
			if err != nil {
				return err
			}
			var result models.ToolResult
			if err := decodeBody(*e, &result); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !result.Success {
				fmt.Fprintf(out, "error: %s\n", result.Error)
				return fmt.Errorf("tool call failed")
			}
			fmt.Fprintln(out, result.Output)
			return nil
		},
	}
}

// parseToolArgs turns ["key=value", "n=3"] into a JSON-encoded argument
// map, matching models.ExecuteToolBody.Args's raw-message shape. Values
// that parse as JSON (numbers, booleans, quoted strings) keep their
// type; anything else is treated as a plain string.
func parseToolArgs(pairs []string) (map[string]json.RawMessage, error) {
	args := make(map[string]json.RawMessage, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("argument %q is not in key=value form", pair)
		}
		var probe json.RawMessage
		if json.Unmarshal([]byte(value), &probe) == nil {
			args[key] = probe
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode argument %q: %w", key, err)
		}
		args[key] = encoded
	}
	return args, nil
}
