package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gatewayd version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("gatewayd version %s (%s)\n", Version, Commit)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
