package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/beaconlabs/hivemind/pkg/app"

	mcptool "github.com/beaconlabs/hivemind/modules/tool/mcp"
)

// mcpCmd serves the memory tools over MCP stdio. The configuration must
// include the tool.mcp module alongside runtime.core.
func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve memory tools over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")

			// The MCP server name/version pair is fixed at build time, so
			// set it before the module provisions.
			mcptool.SetVersion(version)

			application, _, err := app.Setup(app.RunParams{
				ConfigPath: cfgPath,
				Version:    version,
			})
			if err != nil {
				return err
			}
			defer application.Stop()

			mod, ok := application.Module("tool.mcp")
			if !ok {
				return errors.New("tool.mcp module is not configured; add it to the modules section")
			}
			srv, ok := mod.(*mcptool.Module)
			if !ok {
				return errors.New("tool.mcp module has unexpected type")
			}
			return srv.Serve()
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}
