// Package cli provides terminal output helpers for the voicebridge
// command-line tools: a themed table renderer and value formatters.
package cli
