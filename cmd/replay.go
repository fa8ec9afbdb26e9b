package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/aptx/internal/core"
	"firestige.xyz/aptx/internal/log"
	"firestige.xyz/aptx/internal/report"
	"firestige.xyz/aptx/internal/session"
	"firestige.xyz/aptx/internal/sip"
	"firestige.xyz/aptx/internal/source/file"
)

var (
	replayFile   string
	replayFormat string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay SIP signaling from a capture file through the negotiation",
	Long: `Read UDP datagrams from a pcap or pcapng file, parse the SIP messages and
negotiate every SDP offer and answer found. One line is printed per
negotiation event, followed by a summary.

When metrics are enabled in the configuration, the Prometheus endpoint stays
up after the replay until the process is interrupted.

Examples:
  aptx replay -f capture.pcap
  aptx replay -f capture.pcapng --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := report.NewConsole(cmd.OutOrStdout(), replayFormat)
		if err != nil {
			return err
		}
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		src, err := file.Open(replayFile)
		if err != nil {
			return err
		}
		defer src.Close()

		serving, err := e.startMetrics(cmd.Context())
		if err != nil {
			return err
		}

		m := session.NewManager(e.reg, e.cfg.Session)
		defer m.Flush()
		if _, err := runReplay(src, sip.NewTracker(m), out, cmd.ErrOrStderr()); err != nil {
			return err
		}

		if serving {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log.GetLogger().Infof("replay done, serving metrics on %s until interrupted", e.metrics.Addr())
			<-ctx.Done()
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVarP(&replayFile, "file", "f", "", "capture file (required)")
	replayCmd.Flags().StringVar(&replayFormat, "format", report.FormatText, "event output format (text|json)")
	replayCmd.MarkFlagRequired("file")
}

// replayStats summarizes a replay.
type replayStats struct {
	Datagrams int
	Messages  int
	Offers    int
	Answers   int
	Closed    int
	Rejected  int
}

type datagramSource interface {
	Next() (file.Datagram, error)
}

// runReplay reports every negotiation event of src to out and writes the
// summary to summary.
func runReplay(src datagramSource, tr *sip.Tracker, out *report.Console, summary io.Writer) (replayStats, error) {
	var st replayStats
	for {
		dg, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, err
		}
		st.Datagrams++

		ev, err := tr.Handle(dg.Payload)
		if err != nil {
			if !errors.Is(err, core.ErrNotSIP) {
				return st, err
			}
			if sip.LooksLikeSIP(dg.Payload) {
				log.GetLogger().WithError(err).Warnf("replay: dropped message from %s", dg.Src)
			}
			continue
		}
		st.Messages++

		switch ev.Kind {
		case sip.KindOffer:
			st.Offers++
		case sip.KindAnswer:
			st.Answers++
		case sip.KindClosed:
			st.Closed++
		default:
			continue
		}
		if ev.Err != nil {
			st.Rejected++
		}

		rec := report.Record{Timestamp: dg.Timestamp, Src: dg.Src, Dst: dg.Dst, Event: ev}
		if err := out.Report(rec); err != nil {
			return st, err
		}
	}

	_, err := fmt.Fprintf(summary, "datagrams=%d sip=%d offers=%d answers=%d closed=%d rejected=%d\n",
		st.Datagrams, st.Messages, st.Offers, st.Answers, st.Closed, st.Rejected)
	return st, err
}
