package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"minder/internal/config"
	"minder/internal/materialize"
	"minder/internal/settings"
	"minder/internal/tmpl"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var showArgs bool

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Preview the materialized bitcoind configuration without spawning",
		Long: "Render reads the settings document and prints the bitcoind configuration " +
			"that the run command would write. Nothing is written and the reindex " +
			"markers are left in place.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return renderPreview(cmd, cfg, showArgs)
		},
	}

	cmd.Flags().BoolVar(&showArgs, "args", false, "Also print the computed bitcoind argument list")
	return cmd
}

func renderPreview(cmd *cobra.Command, cfg *config.Config, showArgs bool) error {
	doc, err := settings.Load(cfg.Paths.SettingsPath)
	if err != nil {
		return err
	}

	src, err := os.ReadFile(cfg.Paths.TemplatePath)
	if err != nil {
		return fmt.Errorf("read config template: %w", err)
	}
	rendered, err := tmpl.Render(src, doc)
	if err != nil {
		return fmt.Errorf("render config template: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, string(rendered))

	if showArgs {
		env, err := materialize.EnvFromOS()
		if err != nil {
			return err
		}
		args := materialize.BaseArgs(cfg, doc, env)
		args = append(args, peekReindexArgs(cfg)...)
		fmt.Fprintln(cmd.ErrOrStderr(), strings.Join(args, " "))
	}
	return nil
}

// peekReindexArgs reports which reindex flag the next run would add, without
// consuming the markers.
func peekReindexArgs(cfg *config.Config) []string {
	if _, err := os.Stat(cfg.Paths.ReindexMarker); err == nil {
		return []string{"-reindex"}
	}
	if _, err := os.Stat(cfg.Paths.ReindexChainstateMarker); err == nil {
		return []string{"-reindex-chainstate"}
	}
	return nil
}
