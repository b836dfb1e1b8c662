// Command overlaynode is the CLI entry point for a single overlay
// node: it resolves configuration, starts the Controller, and blocks
// until a signal requests graceful shutdown.
package main

import "github.com/crocme10/area-net/cmd/overlaynode/cmd"

func main() {
	cmd.Execute()
}
