package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pion/sdp/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/aptx/internal/config"
	"firestige.xyz/aptx/internal/core"
	"firestige.xyz/aptx/internal/report"
	"firestige.xyz/aptx/internal/session"
	"firestige.xyz/aptx/internal/sip"
	"firestige.xyz/aptx/internal/source/file"
)

func TestRunEncode(t *testing.T) {
	cfg := config.Default()

	tests := []struct {
		name string
		opts encodeOptions
		want string
	}{
		{"configured", encodeOptions{}, "variant=standard; bitresolution=16\n"},
		{"hd", encodeOptions{variant: "HD"}, "variant=hd; bitresolution=24\n"},
		{"hd at 16 bit", encodeOptions{variant: "hd", bitResolution: 16}, "variant=hd; bitresolution=16\n"},
		{"line", encodeOptions{line: true}, "a=fmtp:96 variant=standard; bitresolution=16\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, runEncode(cfg, tt.opts, &buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}

	err := runEncode(cfg, encodeOptions{variant: "exotic"}, io.Discard)
	assert.ErrorContains(t, err, "unknown variant")
}

func TestRunDecode(t *testing.T) {
	cfg := config.Default()

	tests := []struct {
		raw  string
		want string
	}{
		{"variant=hd; bitresolution=24", "variant: hd, bitresolution: 24\n"},
		{"VARIANT=HD", "variant: hd, bitresolution: 16\n"},
		{"bitresolution=abc", "variant: standard, bitresolution: 16\n"},
		{"", "variant: standard, bitresolution: 16\n"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, runDecode(cfg, tt.raw, &buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestRunCheck(t *testing.T) {
	cfg := config.Default()

	var buf bytes.Buffer
	require.NoError(t, runCheck(cfg, "variant=hd; bitresolution=24", false, &buf))
	assert.Equal(t, "ACCEPTED: variant: hd, bitresolution: 24\n", buf.String())

	buf.Reset()
	require.NoError(t, runCheck(cfg, "", false, &buf))
	assert.Contains(t, buf.String(), "ACCEPTED")

	buf.Reset()
	err := runCheck(cfg, "variant=exotic", false, &buf)
	assert.ErrorIs(t, err, core.ErrNoCompatibleCodec)
	assert.Contains(t, buf.String(), "REJECTED")

	require.NoError(t, runCheck(cfg, "variant=standard; bitresolution=24", false, io.Discard))
	err = runCheck(cfg, "variant=standard; bitresolution=24", true, io.Discard)
	assert.ErrorIs(t, err, core.ErrNoCompatibleCodec)
}

func newTestManager(t *testing.T) *session.Manager {
	t.Helper()
	e, err := newEnv(config.Default())
	require.NoError(t, err)
	t.Cleanup(e.Close)

	m := session.NewManager(e.reg, e.cfg.Session)
	t.Cleanup(m.Flush)
	return m
}

const remoteOffer = "v=0\r\n" +
	"o=- 1 1 IN IP4 192.0.2.10\r\n" +
	"s=-\r\n" +
	"c=IN IP4 192.0.2.10\r\n" +
	"t=0 0\r\n" +
	"m=audio 6000 RTP/AVP 97\r\n" +
	"a=rtpmap:97 aptx/48000/2\r\n" +
	"a=fmtp:97 variant=hd; bitresolution=24\r\n"

func TestRunOffer(t *testing.T) {
	m := newTestManager(t)

	var buf bytes.Buffer
	require.NoError(t, runOffer(m, "call-1", &buf))

	desc := &sdp.SessionDescription{}
	require.NoError(t, desc.Unmarshal(buf.Bytes()))
	require.Len(t, desc.MediaDescriptions, 1)
	fmtp, ok := desc.MediaDescriptions[0].Attribute("fmtp")
	require.True(t, ok)
	assert.Equal(t, "96 variant=standard; bitresolution=16", fmtp)

	// a random call id is generated when none is given
	require.NoError(t, runOffer(m, "", io.Discard))
	assert.Equal(t, 2, m.Count())
}

func TestRunAnswer(t *testing.T) {
	m := newTestManager(t)

	var buf bytes.Buffer
	require.NoError(t, runAnswer(m, "call-1", []byte(remoteOffer), &buf))
	assert.Contains(t, buf.String(), "a=fmtp:97 variant=hd; bitresolution=24\r\n")

	buf.Reset()
	rejected := strings.Replace(remoteOffer, "variant=hd; bitresolution=24", "variant=exotic", 1)
	err := runAnswer(m, "call-2", []byte(rejected), &buf)
	assert.ErrorIs(t, err, core.ErrNoCompatibleCodec)
	assert.Equal(t, "REJECTED: codec=aptx pt=97 fmtp=\"variant=exotic\"\n", buf.String())
}

func TestReadInput(t *testing.T) {
	data, err := readInput(strings.NewReader(remoteOffer), "-")
	require.NoError(t, err)
	assert.Equal(t, remoteOffer, string(data))

	path := filepath.Join(t.TempDir(), "offer.sdp")
	require.NoError(t, os.WriteFile(path, []byte(remoteOffer), 0o644))
	data, err = readInput(nil, path)
	require.NoError(t, err)
	assert.Equal(t, remoteOffer, string(data))

	_, err = readInput(nil, filepath.Join(t.TempDir(), "missing.sdp"))
	assert.Error(t, err)
}

// sliceSource replays fixed datagrams.
type sliceSource struct {
	datagrams []file.Datagram
}

func (s *sliceSource) Next() (file.Datagram, error) {
	if len(s.datagrams) == 0 {
		return file.Datagram{}, io.EOF
	}
	dg := s.datagrams[0]
	s.datagrams = s.datagrams[1:]
	return dg, nil
}

func sipMessage(startLine, callID, cseq, body string) []byte {
	var b strings.Builder
	b.WriteString(startLine + "\r\n")
	b.WriteString("Via: SIP/2.0/UDP 192.0.2.10:5060;branch=z9hG4bK74bf9\r\n")
	b.WriteString("Max-Forwards: 70\r\n")
	b.WriteString("From: <sip:alice@example.com>;tag=9fxced76sl\r\n")
	b.WriteString("To: <sip:bob@example.com>;tag=8321234356\r\n")
	b.WriteString("Call-ID: " + callID + "\r\n")
	b.WriteString("CSeq: " + cseq + "\r\n")
	if body != "" {
		b.WriteString("Content-Type: application/sdp\r\n")
	}
	b.WriteString(fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body)))
	b.WriteString(body)
	return []byte(b.String())
}

func TestRunReplay(t *testing.T) {
	m := newTestManager(t)
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rejected := strings.Replace(remoteOffer, "variant=hd; bitresolution=24", "variant=exotic", 1)

	src := &sliceSource{datagrams: []file.Datagram{
		{Timestamp: ts, Payload: sipMessage("INVITE sip:bob@example.com SIP/2.0", "call-1", "1 INVITE", remoteOffer)},
		{Timestamp: ts, Payload: []byte{0x80, 0x61, 0x00, 0x01, 0, 0, 0, 0, 0, 0, 0, 0}},
		{Timestamp: ts, Payload: sipMessage("SIP/2.0 200 OK", "call-1", "1 INVITE", remoteOffer)},
		{Timestamp: ts, Payload: sipMessage("INVITE sip:bob@example.com SIP/2.0", "call-2", "1 INVITE", rejected)},
		{Timestamp: ts, Payload: sipMessage("BYE sip:bob@example.com SIP/2.0", "call-1", "2 BYE", "")},
	}}

	var buf bytes.Buffer
	out, err := report.NewConsole(&buf, report.FormatText)
	require.NoError(t, err)
	st, err := runReplay(src, sip.NewTracker(m), out, &buf)
	require.NoError(t, err)

	assert.Equal(t, replayStats{Datagrams: 5, Messages: 4, Offers: 2, Answers: 1, Closed: 1, Rejected: 1}, st)
	assert.Equal(t, uint64(4), out.Count())
	text := buf.String()
	assert.Contains(t, text, "offer  call=call-1 ACCEPTED codec=aptx pt=97")
	assert.Contains(t, text, "answer call=call-1 ACCEPTED")
	assert.Contains(t, text, "offer  call=call-2 REJECTED codec=aptx pt=97 fmtp=\"variant=exotic\"")
	assert.Contains(t, text, "closed call=call-1")
	assert.Contains(t, text, "datagrams=5 sip=4 offers=2 answers=1 closed=1 rejected=1\n")
	assert.Equal(t, 1, m.Count())
}

func TestRunReplay_JSON(t *testing.T) {
	m := newTestManager(t)
	src := &sliceSource{datagrams: []file.Datagram{
		{Timestamp: time.Unix(1700000000, 0), Payload: sipMessage("INVITE sip:bob@example.com SIP/2.0", "call-9", "1 INVITE", remoteOffer)},
	}}

	var events, summary bytes.Buffer
	out, err := report.NewConsole(&events, report.FormatJSON)
	require.NoError(t, err)
	_, err = runReplay(src, sip.NewTracker(m), out, &summary)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(events.Bytes(), &got))
	assert.Equal(t, "offer", got["kind"])
	assert.Equal(t, "call-9", got["call_id"])
	assert.Equal(t, true, got["compatible"])
	assert.Equal(t, "datagrams=1 sip=1 offers=1 answers=0 closed=0 rejected=0\n", summary.String())
}

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.yml")
	require.NoError(t, os.WriteFile(valid, []byte("aptx:\n  codec:\n    variant: 1\n"), 0o644))
	invalid := filepath.Join(dir, "invalid.yml")
	require.NoError(t, os.WriteFile(invalid, []byte("aptx:\n  session:\n    payload_type: 0\n"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, runValidate(valid, &buf))
	assert.Equal(t, "VALID: fmtp \"variant=hd; bitresolution=24\", sessions on 127.0.0.1:5004 pt 96, log level info\n", buf.String())

	buf.Reset()
	err := runValidate(invalid, &buf)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
	assert.True(t, strings.HasPrefix(buf.String(), "INVALID: "))
}

func TestRunConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")

	var buf bytes.Buffer
	require.NoError(t, runConfigInit(path, false, &buf))
	assert.Equal(t, "wrote "+path+"\n", buf.String())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint8(96), cfg.Session.PayloadType)

	err = runConfigInit(path, false, io.Discard)
	assert.ErrorContains(t, err, "already exists")
	assert.NoError(t, runConfigInit(path, true, io.Discard))
}

func TestRootCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"decode", "variant=hd; bitresolution=24"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, Execute())
	assert.Equal(t, "variant: hd, bitresolution: 24\n", buf.String())
}

func TestEnvStartMetrics(t *testing.T) {
	e, err := newEnv(config.Default())
	require.NoError(t, err)
	serving, err := e.startMetrics(context.Background())
	require.NoError(t, err)
	assert.False(t, serving)
	e.Close()

	cfg := config.Default()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Listen = "127.0.0.1:0"
	e, err = newEnv(cfg)
	require.NoError(t, err)
	defer e.Close()

	serving, err = e.startMetrics(context.Background())
	require.NoError(t, err)
	require.True(t, serving)

	resp, err := http.Get("http://" + e.metrics.Addr() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
