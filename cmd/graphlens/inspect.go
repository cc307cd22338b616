package main

import (
	"fmt"

	"github.com/aretw0/graphlens/internal/cli"
	"github.com/aretw0/graphlens/internal/presentation/tui"
	"github.com/aretw0/graphlens/pkg/extract"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Summarize a workflow file",
	Long: `Prints the source, node table, link types and dropped entries of FILE.
Output is styled markdown on a terminal and plain markdown otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, data, app, err := loadSnapshot(cmd, args[0])
		if err != nil {
			return err
		}
		defer app.Close()

		plain, _ := cmd.Flags().GetBool("plain")
		out := cmd.OutOrStdout()
		render, err := tui.NewRenderer(!plain && cli.IsTerminal(out))
		if err != nil {
			return err
		}
		report := tui.Report(snap)
		if extract.HasSignature(data) {
			report += tui.ChunkReport(extract.ScanTextChunks(data))
		}
		text, err := render(report)
		if err != nil {
			return err
		}
		fmt.Fprint(out, text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	addProjectFlags(inspectCmd)
	inspectCmd.Flags().Bool("plain", false, "Print raw markdown even on a terminal")
}
