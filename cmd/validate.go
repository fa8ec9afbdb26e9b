package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/aptx/internal/config"
	"firestige.xyz/aptx/pkg/aptx"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without running anything.

This is useful for pre-checking configuration before deployment.
Environment overrides (APTX_*) are applied as at runtime.

Examples:
  aptx validate -c /etc/aptx/config.yml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(configFile, cmd.OutOrStdout())
	},
}

func runValidate(path string, w io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(w, "INVALID: %v\n", err)
		return err
	}

	_, err = fmt.Fprintf(w, "VALID: fmtp %q, sessions on %s:%d pt %d, log level %s\n",
		aptx.Encode(aptx.Seed(cfg.Codec)),
		cfg.Session.LocalAddress,
		cfg.Session.RTPPort,
		cfg.Session.PayloadType,
		cfg.Log.Level,
	)
	return err
}
