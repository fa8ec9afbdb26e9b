package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"firestige.xyz/aptx/internal/config"
	"firestige.xyz/aptx/internal/core"
	"firestige.xyz/aptx/pkg/aptx"
)

type encodeOptions struct {
	variant       string
	bitResolution uint32
	line          bool
}

var encodeOpts encodeOptions

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Render the local aptX fmtp parameters",
	Long: `Render the local parameter set as an fmtp attribute.

The parameter set is seeded from the codec configuration; --variant and
--bitresolution override it. With --line the full SDP attribute line is
printed using the configured payload type.

Examples:
  aptx encode
  aptx encode --variant hd
  aptx encode --line`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		return runEncode(cfg, encodeOpts, cmd.OutOrStdout())
	},
}

var checkStrict bool

var decodeCmd = &cobra.Command{
	Use:   "decode <fmtp>",
	Short: "Decode a remote aptX fmtp attribute",
	Long: `Decode a remote fmtp attribute onto the local parameter set and print the
result. Keys missing from the attribute keep their local values.

Example:
  aptx decode "variant=hd; bitresolution=24"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		return runDecode(cfg, args[0], cmd.OutOrStdout())
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <fmtp>",
	Short: "Check whether a remote aptX fmtp attribute is acceptable",
	Long: `Check a remote fmtp attribute against the local parameter set.
Exits non-zero when the attribute is rejected.

Examples:
  aptx check "variant=hd; bitresolution=24"
  aptx check --strict "variant=standard; bitresolution=24"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		return runCheck(cfg, args[0], checkStrict, cmd.OutOrStdout())
	},
}

func init() {
	encodeCmd.Flags().StringVar(&encodeOpts.variant, "variant", "", "override the variant (standard|hd)")
	encodeCmd.Flags().Uint32Var(&encodeOpts.bitResolution, "bitresolution", 0, "override the bit resolution")
	encodeCmd.Flags().BoolVar(&encodeOpts.line, "line", false, "print the full a=fmtp line")

	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "reject a bit resolution different from the local one")
}

func runEncode(cfg *config.GlobalConfig, opts encodeOptions, w io.Writer) error {
	local := aptx.Seed(cfg.Codec)

	var u aptx.Params
	if opts.variant != "" {
		v, ok := aptx.ParseVariant(opts.variant)
		if !ok {
			return fmt.Errorf("unknown variant %q", opts.variant)
		}
		br := v.DefaultBitResolution()
		u.Variant, u.BitResolution = &v, &br
	}
	if opts.bitResolution != 0 {
		br := opts.bitResolution
		u.BitResolution = &br
	}
	local.Merge(u)

	attr := aptx.Encode(local)
	if opts.line {
		_, err := io.WriteString(w, aptx.FmtpLine(strconv.Itoa(int(cfg.Session.PayloadType)), attr))
		return err
	}
	_, err := fmt.Fprintln(w, attr)
	return err
}

func runDecode(cfg *config.GlobalConfig, raw string, w io.Writer) error {
	p := aptx.Seed(cfg.Codec)
	aptx.Decode(&p, raw)
	_, err := fmt.Fprintln(w, p.String())
	return err
}

func runCheck(cfg *config.GlobalConfig, raw string, strict bool, w io.Writer) error {
	local := aptx.Seed(cfg.Codec)
	pol := aptx.Policy{StrictBitResolution: strict || cfg.Codec.StrictBitResolution}

	if !pol.IsCompatible(local, raw) {
		fmt.Fprintf(w, "REJECTED: %q\n", raw)
		return fmt.Errorf("%w: %q", core.ErrNoCompatibleCodec, raw)
	}

	remote := local
	aptx.Decode(&remote, raw)
	_, err := fmt.Fprintf(w, "ACCEPTED: %s\n", remote)
	return err
}
