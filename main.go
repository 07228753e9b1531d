// ABOUTME: Entry point for the kith CLI, MCP server and HTTP API
// ABOUTME: Hands off to the cobra command tree
package main

import (
	"os"

	"github.com/harperreed/kith/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
