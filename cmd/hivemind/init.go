package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// initCmd scaffolds a configuration file interactively.
func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("output")
			if out == "" {
				out = "hivemind.yaml"
			}
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s already exists; remove it first or pass --output", out)
			}

			var (
				bind    = "127.0.0.1:8080"
				token   string
				persist = true
				tracing bool
				mcpTool bool
			)

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("HTTP bind address").
						Value(&bind),
					huh.NewInput().
						Title("API bearer token").
						Description("Leave empty to disable the authenticated API").
						EchoMode(huh.EchoModePassword).
						Value(&token),
					huh.NewConfirm().
						Title("Persist memories and sessions to SQLite?").
						Value(&persist),
					huh.NewConfirm().
						Title("Enable OTLP tracing?").
						Value(&tracing),
					huh.NewConfirm().
						Title("Expose memory tools over MCP stdio?").
						Value(&mcpTool),
				),
			)
			if err := form.Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				return err
			}

			raw := renderConfig(bind, token, persist, tracing, mcpTool)
			if dir := filepath.Dir(out); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := os.WriteFile(out, []byte(raw), 0o600); err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", out)
			fmt.Println("Start with: hivemind start -c " + out)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Where to write the configuration (default hivemind.yaml)")
	return cmd
}

// renderConfig builds the YAML scaffold. Written by hand rather than
// marshalled so the output keeps comments.
func renderConfig(bind, token string, persist, tracing, mcpTool bool) string {
	var b strings.Builder
	b.WriteString("version: \"1\"\n\nmodules:\n")

	b.WriteString("  runtime.core:\n")
	b.WriteString("    memory:\n")
	b.WriteString("      max_records_per_tenant: 1000\n")

	b.WriteString("  gateway.http:\n")
	b.WriteString("    bind: " + bind + "\n")
	if token != "" {
		b.WriteString("    auth:\n")
		b.WriteString("      bearer_token: " + token + "\n")
	}

	if persist {
		b.WriteString("  memory.sqlite:\n")
		b.WriteString("    path: hivemind.db\n")
	}
	if tracing {
		b.WriteString("  observability.tracing:\n")
		b.WriteString("    enabled: true\n")
		b.WriteString("    endpoint: localhost:4318\n")
	}
	if mcpTool {
		b.WriteString("  tool.mcp: {}\n")
	}
	return b.String()
}
