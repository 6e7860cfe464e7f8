package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/gasbox/internal/config"
)

const tokenEnv = "GASBOX_TOKEN"

// initAnswers are the choices collected by the init wizard.
type initAnswers struct {
	Transport   string
	Bind        string
	RequireAuth bool
	Interpreter string
	ScratchDir  string
	SQLiteDrive bool
	Sweeper     bool
	LogLevel    string
}

func defaultAnswers() initAnswers {
	return initAnswers{
		Transport:   config.TransportStdio,
		Bind:        "127.0.0.1:8080",
		RequireAuth: true,
		Interpreter: "node",
		SQLiteDrive: true,
		Sweeper:     true,
		LogLevel:    "info",
	}
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("config")
			force, _ := cmd.Flags().GetBool("force")
			useDefaults, _ := cmd.Flags().GetBool("defaults")
			if out == "" {
				out = config.SearchPaths()[0]
			}
			if !force {
				if _, err := os.Stat(out); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", out)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}

			answers := defaultAnswers()
			if !useDefaults {
				if err := runWizard(&answers); err != nil {
					return err
				}
			}
			raw, err := renderInitConfig(answers)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(out, raw, 0o600); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Wrote %s\n", out)
			if answers.Transport == config.TransportHTTP && answers.RequireAuth {
				fmt.Fprintf(w, "Set %s before running gasbox serve.\n", tokenEnv)
			}
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	cmd.Flags().Bool("defaults", false, "Skip the prompts and write the defaults")
	return cmd
}

func runWizard(a *initAnswers) error {
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Transport").
				Description("stdio for a local MCP client, http to serve over the network").
				Options(
					huh.NewOption("stdio", config.TransportStdio),
					huh.NewOption("http", config.TransportHTTP),
				).
				Value(&a.Transport),
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&a.LogLevel),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Value(&a.Bind),
			huh.NewConfirm().
				Title("Require a bearer token").
				Description("The token is read from "+tokenEnv+".").
				Value(&a.RequireAuth),
		).WithHideFunc(func() bool { return a.Transport != config.TransportHTTP }),
		huh.NewGroup(
			huh.NewInput().
				Title("Script interpreter").
				Value(&a.Interpreter).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("interpreter is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Scratch directory").
				Description("Leave empty for the system temp directory.").
				Value(&a.ScratchDir),
			huh.NewConfirm().
				Title("Persist the drive in sqlite").
				Value(&a.SQLiteDrive),
			huh.NewConfirm().
				Title("Sweep stale script files").
				Value(&a.Sweeper),
		),
	).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return errors.New("init aborted")
	}
	return err
}

// renderInitConfig produces a minimal configuration file for a. Only the
// answered settings are written; everything else keeps its default.
func renderInitConfig(a initAnswers) ([]byte, error) {
	doc := map[string]any{
		"version": "1",
		"server":  map[string]any{"transport": a.Transport},
		"log":     map[string]any{"level": a.LogLevel},
	}

	script := map[string]any{"interpreter": a.Interpreter}
	if a.ScratchDir != "" {
		script["scratch_dir"] = a.ScratchDir
	}
	doc["script"] = script

	modules := map[string]any{}
	if a.Transport == config.TransportHTTP {
		gw := map[string]any{"bind": a.Bind}
		if a.RequireAuth {
			gw["auth"] = map[string]any{"bearer_token": "${" + tokenEnv + "}"}
			doc["security"] = map[string]any{"secret_env": []string{tokenEnv}}
		}
		modules[config.GatewayModule] = gw
	}
	if a.SQLiteDrive {
		modules["drive.sqlite"] = map[string]any{}
	}
	if a.Sweeper {
		modules["cron.sweeper"] = map[string]any{}
	}
	if len(modules) > 0 {
		doc["modules"] = modules
	}

	body, err := yaml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return append([]byte("# gasbox configuration, generated by gasbox init\n"), body...), nil
}
