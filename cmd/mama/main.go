// MAMA: decision memory MCP server.
//
// Records design decisions with their reasoning, links them into a graph,
// and feeds that memory back into tool calls as context and next-step hints.
//
// Usage:
//
//	mama serve          # Start MCP server (stdio transport)
//	mama health         # Print decision graph health
//	mama sync-modules   # Load module manifests into the library
//	mama version        # Print the version
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
