// Package app provides the shared entry point of the gasbox commands: it
// loads the configuration, wires every component and serves MCP over the
// configured transport.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flemzord/gasbox/internal/config"
)

// shutdownTimeout bounds how long modules get to stop.
const shutdownTimeout = 30 * time.Second

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, the standard search path is used and built-in defaults
	// apply when nothing is found.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// Overrides applied on top of the loaded configuration.
	DataDir   string
	Transport string
	LogLevel  string

	// Stdin and Stdout carry the stdio transport. Default to the process
	// streams. Stderr receives the log.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// LoadConfig resolves, loads, overrides and validates the configuration.
// It returns the path actually used, empty for built-in defaults.
func LoadConfig(params RunParams) (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(params.ConfigPath)
	if err != nil {
		return nil, path, err
	}
	if params.DataDir != "" {
		cfg.DataDir = params.DataDir
	}
	if params.Transport != "" {
		cfg.Server.Transport = params.Transport
	}
	if params.LogLevel != "" {
		cfg.Log.Level = params.LogLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Run loads configuration, wires all components and serves until the
// stdio stream ends or a shutdown signal is received.
func Run(ctx context.Context, params RunParams) error {
	cfg, path, err := LoadConfig(params)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := Build(ctx, cfg, BuildOptions{
		Version:    params.Version,
		LogOutput:  params.Stderr,
		ConfigPath: path,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rt.Close(closeCtx); err != nil {
			rt.Logger.Error("shutdown error", "error", err)
		}
		rt.Logger.Info("shutdown complete")
	}()

	if path == "" {
		rt.Logger.Info("no configuration file found, using defaults")
	} else {
		rt.Logger.Info("configuration loaded", "path", path)
	}

	stdin, stdout := params.Stdin, params.Stdout
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	return rt.Serve(ctx, stdin, stdout)
}

// Serve starts the modules and serves MCP on the configured transport.
// For stdio it returns when in is exhausted or ctx ends; for http it
// blocks until ctx ends. Modules are stopped by Close, not by Serve.
func (rt *Runtime) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	if err := rt.App.Start(); err != nil {
		return err
	}

	switch rt.Config.Server.Transport {
	case config.TransportHTTP:
		rt.Logger.Info("serving MCP over http")
		<-ctx.Done()
		return nil
	case config.TransportStdio:
		return rt.MCP.ServeStdio(ctx, in, out)
	default:
		return fmt.Errorf("app: unknown transport %q", rt.Config.Server.Transport)
	}
}
