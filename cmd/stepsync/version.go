package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/stepsync"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of stepsync",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stepsync version %s\n", strings.TrimSpace(stepsync.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
