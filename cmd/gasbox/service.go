package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/gasbox/internal/config"
	"github.com/flemzord/gasbox/pkg/app"
)

const serviceStopTimeout = 30 * time.Second

// program runs gasbox under the system service manager. A service has no
// client on stdin, so it always serves over HTTP.
type program struct {
	params app.RunParams
	cancel context.CancelFunc
	done   chan error
}

var _ service.Interface = (*program)(nil)

func (p *program) Start(service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() { p.done <- app.Run(ctx, p.params) }()
	return nil
}

func (p *program) Stop(service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case err := <-p.done:
		return err
	case <-time.After(serviceStopTimeout):
		return errors.New("gasbox did not stop in time")
	}
}

func newService(cmd *cobra.Command) (service.Service, error) {
	params := runParams(cmd)
	params.Transport = config.TransportHTTP

	args := []string{"service", "run"}
	if params.ConfigPath != "" {
		abs, err := filepath.Abs(params.ConfigPath)
		if err != nil {
			return nil, err
		}
		params.ConfigPath = abs
		args = append(args, "--config", abs)
	}

	return service.New(&program{params: params}, &service.Config{
		Name:        app.ServiceName,
		DisplayName: "gasbox",
		Description: "Sandboxed Google Apps Script tools served over MCP.",
		Arguments:   args,
	})
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage gasbox as a system service (HTTP transport)",
	}

	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the system service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newService(cmd)
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	run := &cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newService(cmd)
			if err != nil {
				return err
			}
			return s.Run()
		},
	}
	addRunFlags(run)
	cmd.AddCommand(run)
	return cmd
}
