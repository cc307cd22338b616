package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/graphlens/internal/cli"
	"github.com/aretw0/graphlens/pkg/extract"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract FILE",
	Short: "Print the workflow embedded in a PNG or JSON file",
	Long: `Extracts the canonical workflow JSON. FILE may be "-" to read stdin,
in which case --name gives the filename used to detect the format.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		pretty, _ := cmd.Flags().GetBool("pretty")

		filename, data, err := cli.ReadInput(args[0], name, cmd.InOrStdin())
		if err != nil {
			return err
		}

		res, err := extract.New().ExtractFile(filename, data)
		if err != nil {
			return err
		}

		if sourceOnly, _ := cmd.Flags().GetBool("source"); sourceOnly {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), res.Source)
			return err
		}
		return cli.WriteJSON(cmd.OutOrStdout(), json.RawMessage(res.Content), pretty)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().String("name", "", "Filename to use when reading stdin")
	extractCmd.Flags().Bool("pretty", false, "Indent the output")
	extractCmd.Flags().Bool("source", false, "Print where the workflow was found instead of the workflow")
}
