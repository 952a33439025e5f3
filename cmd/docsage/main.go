// Command docsage is the entry point for the DocSage document assistant.
// It provides a CLI interface (via Cobra) and an HTTP server that streams
// grounded chat responses over SSE.
package main

import (
	"fmt"
	"os"

	"github.com/docsage/docsage/cmd/docsage/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
