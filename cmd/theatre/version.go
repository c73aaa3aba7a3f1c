package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/theatre"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of theatre",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "theatre version %s\n", strings.TrimSpace(theatre.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
