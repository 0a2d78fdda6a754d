// Command claude-swarmd runs the instance-pool orchestrator: serve starts
// the REST/WebSocket API, submit is a thin client against a running
// instance, and workflow run and dashboard each embed their own
// orchestrator.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
