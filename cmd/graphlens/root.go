package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/graphlens/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "graphlens",
	Short: "graphlens extracts and projects node-graph workflows",
	Long: `graphlens reads workflows embedded in PNG images or stored as JSON,
and turns them into render-ready graphs for a node-graph viewer.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("dir", ".", "Directory searched for graphlens.{yaml,toml,json}")
	flags.String("config", "", "Configuration file (overrides --dir lookup)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text or json")
	flags.Bool("debug", false, "Enable debug logging and lifecycle tracing")
	flags.Bool("offline", false, "Do not fetch the plugin nickname registry")
}

func optionsFrom(cmd *cobra.Command) cli.Options {
	flags := cmd.Flags()
	dir, _ := flags.GetString("dir")
	configPath, _ := flags.GetString("config")
	level, _ := flags.GetString("log-level")
	format, _ := flags.GetString("log-format")
	debug, _ := flags.GetBool("debug")
	offline, _ := flags.GetBool("offline")
	return cli.Options{
		Dir:        dir,
		ConfigPath: configPath,
		LogLevel:   level,
		LogFormat:  format,
		Debug:      debug,
		Offline:    offline,
	}
}

// newApp loads configuration and wires the viewer for a command.
func newApp(ctx context.Context, cmd *cobra.Command) (*cli.App, error) {
	cfg, err := cli.LoadConfig(optionsFrom(cmd))
	if err != nil {
		return nil, err
	}
	logger, err := cli.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	return cli.NewApp(ctx, cfg, logger)
}

// waitNicknames gives the registry fetch a chance to finish so one-shot
// commands print tags with nicknames.
func waitNicknames(ctx context.Context, app *cli.App) {
	if app.Nicknames == nil {
		return
	}
	select {
	case <-app.Nicknames.Done():
	case <-ctx.Done():
	}
}
