package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aretw0/graphlens/internal/cli"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage previously loaded workflows",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List history entries, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		entries, err := app.Viewer.History(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			type item struct {
				Filename  string `json:"filename"`
				Timestamp int64  `json:"timestamp"`
				Digest    string `json:"digest,omitempty"`
			}
			items := make([]item, 0, len(entries))
			for _, e := range entries {
				items = append(items, item{Filename: e.Filename, Timestamp: e.Timestamp, Digest: e.Digest})
			}
			return cli.WriteJSON(cmd.OutOrStdout(), items, false)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LOADED\tFILENAME\tDIGEST")
		for _, e := range entries {
			digest := e.Digest
			if len(digest) > 12 {
				digest = digest[:12]
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", time.UnixMilli(e.Timestamp).Format(time.DateTime), e.Filename, digest)
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show FILENAME",
	Short: "Print the stored workflow of a history entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		entry, err := app.Viewer.Entry(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), entry.Content)
		return nil
	},
}

var historyOpenCmd = &cobra.Command{
	Use:   "open FILENAME",
	Short: "Project a history entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		waitNicknames(ctx, app)

		snap, err := app.Viewer.Reload(ctx, args[0])
		if err != nil {
			return err
		}
		pretty, _ := cmd.Flags().GetBool("pretty")
		return cli.WriteJSON(cmd.OutOrStdout(), snap.Graph, pretty)
	},
}

var historyRmCmd = &cobra.Command{
	Use:     "rm FILENAME...",
	Aliases: []string{"delete"},
	Short:   "Remove history entries",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		for _, name := range args {
			if err := app.Viewer.Forget(cmd.Context(), name); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyOpenCmd, historyRmCmd)
	historyListCmd.Flags().Bool("json", false, "Print JSON instead of a table")
	historyOpenCmd.Flags().Bool("pretty", false, "Indent the output")
}
