// Package main is the entry point for the gasbox CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/gasbox/internal/config"
	"github.com/flemzord/gasbox/internal/core"
	"github.com/flemzord/gasbox/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gasbox",
		Short:         "Sandboxed Google Apps Script tools over MCP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.AddCommand(versionCmd(), serveCmd(), configCmd(), initCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "gasbox %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

// runParams collects the flags shared by serve and service run.
func runParams(cmd *cobra.Command) app.RunParams {
	cfgPath, _ := cmd.Flags().GetString("config")
	transport, _ := cmd.Flags().GetString("transport")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	logLevel, _ := cmd.Flags().GetString("log-level")
	return app.RunParams{
		ConfigPath: cfgPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
		DataDir:    dataDir,
		Transport:  transport,
		LogLevel:   logLevel,
		Stdin:      cmd.InOrStdin(),
		Stdout:     cmd.OutOrStdout(),
		Stderr:     cmd.ErrOrStderr(),
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("transport", "", "Override server.transport (stdio or http)")
	cmd.Flags().String("data-dir", "", "Override data_dir")
	cmd.Flags().String("log-level", "", "Override log.level")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio or HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), runParams(cmd))
		},
	}
	addRunFlags(cmd)
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	check := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and wire every component",
		RunE: func(cmd *cobra.Command, _ []string) error {
			show, _ := cmd.Flags().GetBool("show")
			return runConfigCheck(cmd.Context(), runParams(cmd), show, cmd.OutOrStdout())
		},
	}
	check.Flags().Bool("show", false, "Print the effective configuration with secrets redacted")
	cmd.AddCommand(check)
	return cmd
}

func runConfigCheck(ctx context.Context, params app.RunParams, show bool, out io.Writer) error {
	cfg, path, err := app.LoadConfig(params)
	if err != nil {
		return err
	}

	rt, err := app.Build(ctx, cfg, app.BuildOptions{Version: version, LogOutput: io.Discard, ConfigPath: path})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.Background()) }()

	if path == "" {
		path = "built-in defaults"
	}
	ids := rt.App.ModuleIDs()
	fmt.Fprintf(out, "Configuration OK (%s)\n", path)
	fmt.Fprintf(out, "\nTools (%d):\n", rt.Registry.Len())
	for _, name := range rt.Registry.Names() {
		fmt.Fprintf(out, "  %s\n", name)
	}
	fmt.Fprintf(out, "\nModules (%d):\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(out, "  %s\n", id)
	}

	if show {
		redacted, err := config.Redacted(cfg, nil)
		if err != nil {
			return err
		}
		raw, err := yaml.Marshal(redacted)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s", raw)
	}
	return nil
}
