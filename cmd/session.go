package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"firestige.xyz/aptx/internal/core"
	"firestige.xyz/aptx/internal/session"
)

var (
	callID     string
	answerFile string
)

var offerCmd = &cobra.Command{
	Use:   "offer",
	Short: "Print an SDP offer for the registered codecs",
	Long: `Print an SDP offer listing every registered codec with its fmtp
attribute in offer role. Address, port and payload type come from the
session configuration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		return runOffer(session.NewManager(e.reg, e.cfg.Session), callID, cmd.OutOrStdout())
	},
}

var answerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Negotiate a remote SDP offer and print the answer",
	Long: `Read a remote SDP offer, negotiate the aptX fmtp parameters and print the
SDP answer. The answer echoes the remote parameters.

Examples:
  aptx answer -f offer.sdp
  aptx answer -f - < offer.sdp`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readInput(cmd.InOrStdin(), answerFile)
		if err != nil {
			return err
		}
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		return runAnswer(session.NewManager(e.reg, e.cfg.Session), callID, body, cmd.OutOrStdout())
	},
}

func init() {
	for _, c := range []*cobra.Command{offerCmd, answerCmd} {
		c.Flags().StringVar(&callID, "call-id", "", "call identifier (random when empty)")
	}
	answerCmd.Flags().StringVarP(&answerFile, "file", "f", "", "SDP offer file, - for stdin (required)")
	answerCmd.MarkFlagRequired("file")
}

func newCallID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return data, nil
}

func runOffer(m *session.Manager, id string, w io.Writer) error {
	out, err := m.CreateOffer(newCallID(id))
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func runAnswer(m *session.Manager, id string, offer []byte, w io.Writer) error {
	res, out, err := m.HandleOffer(newCallID(id), offer)
	if err != nil {
		if res != nil && errors.Is(err, core.ErrNoCompatibleCodec) {
			fmt.Fprintf(w, "REJECTED: codec=%s pt=%d fmtp=%q\n", res.Codec, res.PayloadType, res.RemoteFmtp)
		}
		return err
	}
	_, err = w.Write(out)
	return err
}
