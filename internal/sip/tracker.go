// Package sip feeds SIP signaling into the session manager.
// INVITE and 2xx bodies carry the SDP offers and answers; BYE and CANCEL end
// the call.
package sip

import (
	"errors"
	"fmt"
	"strings"

	gosiplog "github.com/ghettovoice/gosip/log"
	"github.com/ghettovoice/gosip/sip"
	"github.com/ghettovoice/gosip/sip/parser"

	"firestige.xyz/aptx/internal/core"
	"firestige.xyz/aptx/internal/log"
	"firestige.xyz/aptx/internal/metrics"
	"firestige.xyz/aptx/internal/session"
)

// Kind classifies what a SIP message did to its session.
type Kind string

const (
	KindOffer   Kind = "offer"
	KindAnswer  Kind = "answer"
	KindClosed  Kind = "closed"
	KindIgnored Kind = "ignored"
)

// Event describes the outcome of one SIP message.
type Event struct {
	Kind   Kind
	CallID string
	Method string // request method, or the CSeq method of a response
	Status int    // response status code, 0 for requests

	Result *session.Result
	Answer []byte // SDP answer built for an offer
	Err    error  // negotiation failure
}

// Tracker parses SIP datagrams and drives the session manager.
type Tracker struct {
	sessions *session.Manager
	parser   *parser.PacketParser
}

// NewTracker creates a tracker feeding m.
func NewTracker(m *session.Manager) *Tracker {
	logger := gosiplog.NewLogrusLogger(log.EntryOf(log.GetLogger()), "sip", nil)
	return &Tracker{
		sessions: m,
		parser:   parser.NewPacketParser(logger),
	}
}

// Handle parses one datagram. Parse failures wrap core.ErrNotSIP;
// negotiation failures are reported in Event.Err.
func (t *Tracker) Handle(data []byte) (*Event, error) {
	if !LooksLikeSIP(data) {
		return nil, core.ErrNotSIP
	}
	msg, err := t.parser.ParseMessage(data)
	if err != nil {
		metrics.SIPMessagesTotal.WithLabelValues("invalid").Inc()
		if log.GetLogger().IsDebugEnabled() {
			log.GetLogger().WithError(err).Debugf("sip: failed to parse message: %s", data)
		}
		return nil, errors.Join(core.ErrNotSIP, err)
	}

	ev := &Event{Kind: KindIgnored}
	if id, ok := msg.CallID(); ok && id != nil {
		ev.CallID = id.Value()
	}
	if ev.CallID == "" {
		metrics.SIPMessagesTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: missing Call-ID", core.ErrNotSIP)
	}

	switch m := msg.(type) {
	case sip.Request:
		ev.Method = string(m.Method())
		t.handleRequest(ev, m)
	case sip.Response:
		ev.Status = int(m.StatusCode())
		if cseq, ok := m.CSeq(); ok && cseq != nil {
			ev.Method = string(cseq.MethodName)
		}
		t.handleResponse(ev, m)
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"call_id": ev.CallID,
		"method":  ev.Method,
		"status":  ev.Status,
		"kind":    ev.Kind,
	}).Debug("sip: message handled")
	return ev, nil
}

func (t *Tracker) handleRequest(ev *Event, req sip.Request) {
	switch req.Method() {
	case sip.INVITE:
		metrics.SIPMessagesTotal.WithLabelValues("invite").Inc()
		body := sdpBody(req)
		if body == nil {
			// delayed offer, it arrives in the 2xx
			return
		}
		ev.Kind = KindOffer
		ev.Result, ev.Answer, ev.Err = t.sessions.HandleOffer(ev.CallID, body)
	case sip.BYE, sip.CANCEL:
		metrics.SIPMessagesTotal.WithLabelValues("bye").Inc()
		t.sessions.Close(ev.CallID)
		ev.Kind = KindClosed
	default:
		metrics.SIPMessagesTotal.WithLabelValues("other").Inc()
	}
}

func (t *Tracker) handleResponse(ev *Event, res sip.Response) {
	metrics.SIPMessagesTotal.WithLabelValues("response").Inc()
	if ev.Method != string(sip.INVITE) || ev.Status < 200 || ev.Status > 299 {
		return
	}
	body := sdpBody(res)
	if body == nil {
		return
	}
	if _, ok := t.sessions.Get(ev.CallID); ok {
		ev.Kind = KindAnswer
		ev.Result, ev.Err = t.sessions.HandleAnswer(ev.CallID, body)
		return
	}
	// no offer seen for this call, so the 2xx carries it
	ev.Kind = KindOffer
	ev.Result, ev.Answer, ev.Err = t.sessions.HandleOffer(ev.CallID, body)
}

// sdpBody returns the body when it is a session description.
func sdpBody(msg sip.Message) []byte {
	body := msg.Body()
	if strings.TrimSpace(body) == "" {
		return nil
	}
	if ct, ok := msg.ContentType(); ok && ct != nil {
		if !strings.HasPrefix(strings.ToLower(ct.Value()), "application/sdp") {
			return nil
		}
	}
	return []byte(body)
}

// LooksLikeSIP is a cheap prefix check run before the full parser.
func LooksLikeSIP(payload []byte) bool {
	if len(payload) < 8 {
		return false
	}
	prefix := string(payload[:8])
	return strings.HasPrefix(prefix, "SIP/2.0 ") ||
		strings.HasPrefix(prefix, "INVITE ") ||
		strings.HasPrefix(prefix, "ACK ") ||
		strings.HasPrefix(prefix, "BYE ") ||
		strings.HasPrefix(prefix, "CANCEL ") ||
		strings.HasPrefix(prefix, "OPTIONS ") ||
		strings.HasPrefix(prefix, "REGISTER") ||
		strings.HasPrefix(prefix, "UPDATE ") ||
		strings.HasPrefix(prefix, "PRACK ") ||
		strings.HasPrefix(prefix, "INFO ") ||
		strings.HasPrefix(prefix, "SUBSCRI") ||
		strings.HasPrefix(prefix, "NOTIFY ")
}
