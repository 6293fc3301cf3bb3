// Command ragmesh runs the bot's pipeline stages and maintenance flows:
// queueing triggers, building replies, sending them and one-shot questions
// against the knowledge base.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
