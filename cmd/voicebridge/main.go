// Package main is the entry point for the voicebridge CLI.
//
// Usage:
//
//	voicebridge [flags] <command> [args]
//
// Commands:
//
//	serve      - Run the voice session bridge server
//	sessions   - List live sessions on a running server
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/hikevindiaz/voicebridge/cmd/voicebridge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
