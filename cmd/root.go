// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"github.com/spf13/cobra"

	// built-in codec modules
	_ "firestige.xyz/aptx/plugins"
)

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aptx",
	Short: "aptX SDP fmtp negotiation toolkit",
	Long: `aptx renders, parses and checks the SDP fmtp parameters of the aptX audio
codec (Standard and HD variants) and runs full SDP offer/answer negotiation.

Features:
  - Encode the local parameter set as an fmtp attribute
  - Decode and check remote fmtp attributes
  - Build SDP offers and answers, mirroring remote parameters in answers
  - Replay SIP signaling from pcap captures through the negotiation`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (built-in defaults when empty)")

	// Add subcommands
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(offerCmd)
	rootCmd.AddCommand(answerCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(configCmd)
}
