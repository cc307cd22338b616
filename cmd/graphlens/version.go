package main

import (
	"fmt"

	"github.com/aretw0/graphlens"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of graphlens",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "graphlens version %s\n", graphlens.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
