package commands

import (
	"github.com/spf13/cobra"
)

// Global flags
var verbose bool

var rootCmd = &cobra.Command{
	Use:   "voicebridge",
	Short: "Realtime voice session bridge",
	Long: `voicebridge - bridges phone call audio to a realtime model.

The server accepts telephony media streams over WebSocket, forwards
caller audio to a realtime speech model, and plays the model's audio
back on the call. Turns the model answers in text only are spoken
through a fallback synthesizer.

Examples:
  # Run the server
  voicebridge serve --config /etc/voicebridge/config.yaml

  # Inspect live calls on a running server
  voicebridge sessions --addr localhost:8080

  # Hang up one call
  voicebridge sessions hangup CA1234 --addr localhost:8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
