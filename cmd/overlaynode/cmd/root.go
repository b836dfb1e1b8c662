package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const usage = `overlaynode runs one node of a small fully-meshed TCP overlay:
it maintains outgoing and incoming peer connections, monitors their
liveness via heartbeats, and gossips a directed graph of network
membership so every node converges on an approximate shared view.`

var rootCmd = &cobra.Command{
	Use:   "overlaynode",
	Short: "Run a node of the overlay network control plane",
	Long:  usage,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// Execute runs the overlaynode command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
