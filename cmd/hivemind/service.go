package main

import (
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/beaconlabs/hivemind/internal/core"
	"github.com/beaconlabs/hivemind/pkg/app"
)

// program adapts the app lifecycle to the service manager contract.
// Start must not block; the HTTP gateway and scheduler run their own
// goroutines, so starting the modules is enough.
type program struct {
	params app.RunParams
	app    *core.App
}

func (p *program) Start(_ service.Service) error {
	application, _, err := app.Setup(p.params)
	if err != nil {
		return err
	}
	if err := application.Start(); err != nil {
		return err
	}
	p.app = application
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.app != nil {
		p.app.Stop()
	}
	return nil
}

// serviceCmd manages hivemind as a system service (systemd, launchd, or
// Windows services, depending on the platform).
func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "service [install|uninstall|start|stop|run]",
		Short:     "Run or manage hivemind as a system service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"install", "uninstall", "start", "stop", "run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")

			prg := &program{params: app.RunParams{
				ConfigPath: cfgPath,
				Version:    version,
			}}

			svcConfig := &service.Config{
				Name:        "hivemind",
				DisplayName: "hivemind",
				Description: "Multi-tenant memory and tenancy layer for conversational agents",
			}
			if cfgPath != "" {
				svcConfig.Arguments = []string{"service", "run", "--config", cfgPath}
			} else {
				svcConfig.Arguments = []string{"service", "run"}
			}

			svc, err := service.New(prg, svcConfig)
			if err != nil {
				return err
			}

			action := args[0]
			if action == "run" {
				return svc.Run()
			}
			if err := service.Control(svc, action); err != nil {
				return err
			}
			fmt.Printf("service %s: done\n", action)
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}
