package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/stepsync"
	"github.com/aretw0/stepsync/pkg/adapters/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts stepsync as an MCP server over stdio.
This lets AI agents read and mutate the sequencer state as tools. The mcp
command owns its own state document; it does not attach to a running serve
process.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := stepsync.LoadConfig(configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		srv, err := stepsync.New(cfg)
		if err != nil {
			fmt.Printf("Error initializing stepsync: %v\n", err)
			os.Exit(1)
		}

		// Logs must stay off stdout so they don't corrupt JSON-RPC.
		log.SetOutput(os.Stderr)

		if err := mcp.NewServer(srv.Engine(), stepsync.Version).ServeStdio(); err != nil {
			fmt.Fprintf(os.Stderr, "MCP server execution failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
