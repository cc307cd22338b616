package main

import (
	"github.com/aretw0/graphlens/internal/cli"
	"github.com/aretw0/graphlens/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the current graph, history and live load events over HTTP.
With --watch, workflow files written to the directory are loaded as they change.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := cli.SignalContext(cmd.Context())
		defer stop()

		app, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		addr, _ := cmd.Flags().GetString("addr")
		watchDir, _ := cmd.Flags().GetString("watch")
		scan, _ := cmd.Flags().GetBool("scan")

		out := cmd.ErrOrStderr()
		if cli.IsTerminal(out) {
			tui.PrintBanner(out)
		}
		return cli.Serve(ctx, app, cli.ServeOptions{
			Addr:        addr,
			WatchDir:    watchDir,
			InitialScan: scan,
			Ready: func(bound string) {
				cli.PrintSystemMessage(out, "Listening on %s", bound)
				if watchDir != "" {
					cli.PrintSystemMessage(out, "Watching %s for %s", watchDir, app.Config.Watch.Pattern)
				}
			},
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (default from config, :8080)")
	serveCmd.Flags().StringP("watch", "w", "", "Directory to watch for workflow files")
	serveCmd.Flags().Bool("scan", false, "Load files already in the watched directory on start")
}
