// Package report implements the console event reporter.
// Outputs negotiation events in human-readable or JSON form.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"sync/atomic"
	"time"

	"firestige.xyz/aptx/internal/sip"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Record is one negotiation event with the datagram that carried it.
type Record struct {
	Timestamp time.Time
	Src       netip.AddrPort
	Dst       netip.AddrPort
	Event     *sip.Event
}

// Console writes records to w.
type Console struct {
	w             io.Writer
	format        string
	reportedCount atomic.Uint64
}

// NewConsole creates a reporter writing format ("text" or "json") to w.
func NewConsole(w io.Writer, format string) (*Console, error) {
	if format == "" {
		format = FormatText
	}
	if format != FormatText && format != FormatJSON {
		return nil, fmt.Errorf("invalid format %q, must be json or text", format)
	}
	return &Console{w: w, format: format}, nil
}

// Count returns the number of records reported.
func (c *Console) Count() uint64 {
	return c.reportedCount.Load()
}

// Report outputs one record.
func (c *Console) Report(rec Record) error {
	if rec.Event == nil {
		return fmt.Errorf("nil event")
	}
	c.reportedCount.Add(1)

	if c.format == FormatJSON {
		return c.reportJSON(rec)
	}
	return c.reportText(rec)
}

type jsonRecord struct {
	Timestamp    string `json:"timestamp"`
	Src          string `json:"src"`
	Dst          string `json:"dst"`
	Kind         string `json:"kind"`
	CallID       string `json:"call_id"`
	Method       string `json:"method,omitempty"`
	Status       int    `json:"status,omitempty"`
	Codec        string `json:"codec,omitempty"`
	PayloadType  *uint8 `json:"payload_type,omitempty"`
	RemoteFmtp   string `json:"remote_fmtp,omitempty"`
	RemoteParams string `json:"remote_params,omitempty"`
	Compatible   *bool  `json:"compatible,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (c *Console) reportJSON(rec Record) error {
	ev := rec.Event
	out := jsonRecord{
		Timestamp: rec.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		Src:       rec.Src.String(),
		Dst:       rec.Dst.String(),
		Kind:      string(ev.Kind),
		CallID:    ev.CallID,
		Method:    ev.Method,
		Status:    ev.Status,
	}
	if r := ev.Result; r != nil {
		pt, ok := r.PayloadType, r.Compatible
		out.Codec = r.Codec
		out.PayloadType = &pt
		out.RemoteFmtp = r.RemoteFmtp
		out.RemoteParams = r.RemoteParams
		out.Compatible = &ok
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}
	_, err = fmt.Fprintln(c.w, string(data))
	return err
}

func (c *Console) reportText(rec Record) error {
	ev := rec.Event
	fmt.Fprintf(c.w, "%s %s -> %s %-6s call=%s",
		rec.Timestamp.Format("15:04:05.000"), rec.Src, rec.Dst, ev.Kind, ev.CallID)

	if ev.Kind == sip.KindOffer || ev.Kind == sip.KindAnswer {
		if ev.Err != nil {
			fmt.Fprint(c.w, " REJECTED")
		} else {
			fmt.Fprint(c.w, " ACCEPTED")
		}
	}
	if r := ev.Result; r != nil {
		fmt.Fprintf(c.w, " codec=%s pt=%d fmtp=%q", r.Codec, r.PayloadType, r.RemoteFmtp)
		if r.RemoteParams != "" {
			fmt.Fprintf(c.w, " (%s)", r.RemoteParams)
		}
	}

	_, err := fmt.Fprintln(c.w)
	return err
}
