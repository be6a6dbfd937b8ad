package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lattice",
	Short: "Lattice is a page-builder document engine",
	Long: `Lattice keeps a page as a tree of elements, applies editing commands to it
and keeps a rendering surface in sync over HTTP, WebSocket or MCP.`,
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
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default ./lattice.yaml)")
	rootCmd.PersistentFlags().String("dir", "", "Data directory of the file store (overrides data_dir)")
	rootCmd.PersistentFlags().String("store", "", "Store backend: memory, file, redis or sqlite (overrides store)")
}
