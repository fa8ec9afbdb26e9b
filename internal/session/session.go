// Package session correlates SDP offers and answers per SIP call and drives
// fmtp negotiation for every registered codec.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"firestige.xyz/aptx/internal/core"
	"firestige.xyz/aptx/internal/log"
	"firestige.xyz/aptx/pkg/codec"
)

// Result describes the outcome of evaluating one remote description.
type Result struct {
	CallID       string
	Codec        string
	PayloadType  uint8
	RemoteFmtp   string
	RemoteParams string // decoded remote fmtp, set only when accepted
	Compatible   bool
	AnswerFmtp   string // fmtp line we would send back, set only when accepted
}

// Session tracks negotiation state for one call.
type Session struct {
	CallID    string
	CreatedAt time.Time

	mu           sync.Mutex
	offerer      bool
	offered      map[uint8]string // payload type → codec name, for offers we sent
	negotiations map[string]codec.Negotiation
	selected     *Result
	backend      codec.Codec
}

func newSession(callID string) *Session {
	return &Session{
		CallID:       callID,
		CreatedAt:    time.Now(),
		offered:      make(map[uint8]string),
		negotiations: make(map[string]codec.Negotiation),
	}
}

// Offerer reports whether the local side sent the offer.
func (s *Session) Offerer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offerer
}

// Selected returns the accepted codec, if any.
func (s *Session) Selected() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return Result{}, false
	}
	return *s.selected, true
}

// Backend returns the audio codec bound to the accepted parameters. It is
// absent until a codec is accepted, or when no backend is linked.
func (s *Session) Backend() (codec.Codec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend, s.backend != nil
}

// accept records res as selected and opens the codec backend with the
// negotiated fmtp. Caller holds s.mu.
func (s *Session) accept(d *codec.Descriptor, res *Result) {
	s.selected = res
	s.backend = nil

	c, err := d.Open(res.RemoteFmtp)
	logger := log.GetLogger().WithField("call_id", s.CallID).WithField("codec", d.Name)
	switch {
	case errors.Is(err, core.ErrCodecUnavailable):
		logger.Debug("session: no codec backend linked")
	case err != nil:
		logger.WithError(err).Warn("session: failed to open codec backend")
	default:
		s.backend = c
	}
}

// Negotiation returns the negotiation state for the named codec, if the
// session has touched it.
func (s *Session) Negotiation(name string) (codec.Negotiation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.negotiations[strings.ToLower(name)]
	return n, ok
}

// negotiation returns the state for d, creating it on first use.
// Caller holds s.mu.
func (s *Session) negotiation(d *codec.Descriptor) codec.Negotiation {
	key := strings.ToLower(d.Name)
	n, ok := s.negotiations[key]
	if !ok {
		n = d.NewNegotiation()
		s.negotiations[key] = n
	}
	return n
}
