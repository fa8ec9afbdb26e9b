package session

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pion/sdp/v3"

	"firestige.xyz/aptx/internal/config"
	"firestige.xyz/aptx/internal/core"
	"firestige.xyz/aptx/internal/log"
	"firestige.xyz/aptx/internal/metrics"
	"firestige.xyz/aptx/pkg/codec"
)

const (
	roleOffer  = "offer"
	roleAnswer = "answer"

	maxDynamicPayloadType = 127
)

// Manager holds negotiation sessions keyed by SIP Call-ID.
type Manager struct {
	reg      *codec.Registry
	cfg      config.SessionConfig
	sessions *cache.Cache // Call-ID → *Session
	version  atomic.Uint64
}

// NewManager creates a session manager negotiating the codecs in reg.
func NewManager(reg *codec.Registry, cfg config.SessionConfig) *Manager {
	ttl := cfg.SessionTTL()
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	cleanup := cfg.Cleanup()
	if cleanup <= 0 {
		cleanup = time.Hour
	}

	m := &Manager{
		reg:      reg,
		cfg:      cfg,
		sessions: cache.New(ttl, cleanup),
	}
	m.sessions.OnEvicted(func(string, interface{}) {
		metrics.SessionsActive.Dec()
	})
	m.version.Store(uint64(time.Now().Unix()))
	return m
}

// Get returns the session for callID.
func (m *Manager) Get(callID string) (*Session, bool) {
	v, ok := m.sessions.Get(callID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Count returns the number of tracked sessions, expired ones included until
// the next cleanup.
func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}

// Close forgets the session for callID.
func (m *Manager) Close(callID string) {
	m.sessions.Delete(callID)
}

// Flush forgets every session.
func (m *Manager) Flush() {
	// Items skips expired entries and Flush does not report evictions.
	m.sessions.DeleteExpired()
	for range m.sessions.Items() {
		metrics.SessionsActive.Dec()
	}
	m.sessions.Flush()
}

func (m *Manager) session(callID string) *Session {
	if s, ok := m.Get(callID); ok {
		return s
	}
	// Add silently overwrites an expired entry; evict it first so the
	// gauge sees it go.
	m.sessions.DeleteExpired()
	s := newSession(callID)
	if err := m.sessions.Add(callID, s, cache.DefaultExpiration); err != nil {
		if existing, ok := m.Get(callID); ok {
			return existing
		}
		m.sessions.Set(callID, s, cache.DefaultExpiration)
		return s
	}
	metrics.SessionsActive.Inc()
	return s
}

// CreateOffer builds an SDP offer listing every registered codec with its
// fmtp in offer role.
func (m *Manager) CreateOffer(callID string) ([]byte, error) {
	if callID == "" {
		return nil, core.ErrEmptyCallID
	}
	descs := m.reg.List()
	if len(descs) == 0 {
		return nil, fmt.Errorf("create offer: %w", core.ErrNoCompatibleCodec)
	}
	free := maxDynamicPayloadType - int(m.cfg.PayloadType) + 1
	if free <= 0 {
		return nil, fmt.Errorf("create offer: %w: payload type %d out of range", core.ErrConfigInvalid, m.cfg.PayloadType)
	}
	if len(descs) > free {
		log.GetLogger().WithField("call_id", callID).Warnf("session: only %d payload types from %d, offering %d of %d codecs",
			free, m.cfg.PayloadType, free, len(descs))
		descs = descs[:free]
	}

	s := m.session(callID)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offerer = true
	clear(s.offered)

	media := m.newMedia()
	for i, d := range descs {
		pt := m.cfg.PayloadType + uint8(i)
		n := s.negotiation(d)
		media.WithCodec(pt, d.Name, d.ClockRate, d.Channels, n.Attribute(true))
		s.offered[pt] = d.Name
		metrics.FmtpRenderedTotal.WithLabelValues(d.Name, roleOffer).Inc()
	}
	if ms := descs[0].PTimeMillis(); ms > 0 {
		media.WithValueAttribute("ptime", strconv.Itoa(ms))
	}
	media.WithPropertyAttribute(sdp.AttrKeySendRecv)

	log.GetLogger().WithFields(map[string]interface{}{
		"call_id": callID,
		"codecs":  len(descs),
	}).Debug("session: offer created")

	return m.marshal(media)
}

// HandleOffer evaluates a remote offer. Every audio format whose rtpmap names
// a registered codec has its fmtp mirrored and compared, in offer order, and
// the first accepted one is answered. When nothing is accepted the returned
// Result describes the last format evaluated and the error wraps
// core.ErrNoCompatibleCodec.
func (m *Manager) HandleOffer(callID string, body []byte) (*Result, []byte, error) {
	if callID == "" {
		return nil, nil, core.ErrEmptyCallID
	}
	desc, media, err := parseAudio(body)
	if err != nil {
		return nil, nil, err
	}

	s := m.session(callID)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offerer = false
	clear(s.offered)

	res, d := m.evaluate(s, desc, media)
	if res == nil {
		return nil, nil, fmt.Errorf("offer %s: %w", callID, core.ErrNoCompatibleCodec)
	}
	if !res.Compatible {
		return res, nil, fmt.Errorf("offer %s: %w", callID, core.ErrNoCompatibleCodec)
	}

	n := s.negotiation(d)
	answer := m.newMedia()
	answer.WithCodec(res.PayloadType, d.Name, d.ClockRate, d.Channels, n.Attribute(false))
	if ms := d.PTimeMillis(); ms > 0 {
		answer.WithValueAttribute("ptime", strconv.Itoa(ms))
	}
	answer.WithPropertyAttribute(sdp.AttrKeySendRecv)
	metrics.FmtpRenderedTotal.WithLabelValues(d.Name, roleAnswer).Inc()

	res.AnswerFmtp = n.EncodeFmtp(strconv.Itoa(int(res.PayloadType)), false)
	s.accept(d, res)

	out, err := m.marshal(answer)
	if err != nil {
		return res, nil, err
	}
	cp := *res
	return &cp, out, nil
}

// HandleAnswer evaluates the remote answer of a known session. For a session
// we offered, only payload types from our offer are considered.
func (m *Manager) HandleAnswer(callID string, body []byte) (*Result, error) {
	s, ok := m.Get(callID)
	if !ok {
		return nil, fmt.Errorf("answer %q: %w", callID, core.ErrSessionNotFound)
	}
	desc, media, err := parseAudio(body)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, d := m.evaluate(s, desc, media)
	if res == nil || !res.Compatible {
		return res, fmt.Errorf("answer %s: %w", callID, core.ErrNoCompatibleCodec)
	}
	s.accept(d, res)
	cp := *res
	return &cp, nil
}

// evaluate walks the audio formats and returns the first accepted one, or the
// last one evaluated. Caller holds s.mu.
func (m *Manager) evaluate(s *Session, desc *sdp.SessionDescription, media *sdp.MediaDescription) (*Result, *codec.Descriptor) {
	var (
		last     *Result
		lastDesc *codec.Descriptor
	)
	for _, format := range media.MediaName.Formats {
		pt64, err := strconv.ParseUint(format, 10, 8)
		if err != nil {
			continue
		}
		pt := uint8(pt64)
		if s.offerer && len(s.offered) > 0 {
			if _, ok := s.offered[pt]; !ok {
				continue
			}
		}

		rc, err := desc.GetCodecForPayloadType(pt)
		if err != nil {
			continue
		}
		d, err := m.reg.Get(rc.Name)
		if err != nil || !rateMatches(d, rc) {
			continue
		}

		n := s.negotiation(d)
		n.MirrorFmtp(rc.Fmtp)
		metrics.FmtpObservedTotal.WithLabelValues(d.Name).Inc()

		ok := n.CompareFmtp(rc.Fmtp)
		metrics.CompatibilityChecksTotal.WithLabelValues(d.Name, metrics.CheckResult(ok)).Inc()

		res := &Result{
			CallID:      s.CallID,
			Codec:       d.Name,
			PayloadType: pt,
			RemoteFmtp:  rc.Fmtp,
			Compatible:  ok,
		}
		logger := log.GetLogger().WithFields(map[string]interface{}{
			"call_id": s.CallID,
			"codec":   d.Name,
			"pt":      pt,
		})
		if !ok {
			logger.Infof("session: fmtp rejected: %q", rc.Fmtp)
			last, lastDesc = res, d
			continue
		}
		res.RemoteParams = n.DescribeFmtp(rc.Fmtp)
		logger.Debugf("session: fmtp accepted: %s", res.RemoteParams)
		return res, d
	}
	return last, lastDesc
}

// rateMatches checks the rtpmap clock rate and channel count against d.
// Missing values are not held against the remote.
func rateMatches(d *codec.Descriptor, rc sdp.Codec) bool {
	if rc.ClockRate != 0 && rc.ClockRate != d.ClockRate {
		return false
	}
	if rc.EncodingParameters != "" {
		ch, err := strconv.ParseUint(rc.EncodingParameters, 10, 16)
		if err != nil || uint16(ch) != d.Channels {
			return false
		}
	}
	return true
}

func parseAudio(body []byte) (*sdp.SessionDescription, *sdp.MediaDescription, error) {
	desc := &sdp.SessionDescription{}
	if err := desc.Unmarshal(body); err != nil {
		return nil, nil, errors.Join(core.ErrMalformedSDP, err)
	}
	for _, md := range desc.MediaDescriptions {
		if md.MediaName.Media == "audio" {
			return desc, md, nil
		}
	}
	return nil, nil, core.ErrNoAudioMedia
}

func (m *Manager) newMedia() *sdp.MediaDescription {
	return &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:  "audio",
			Port:   sdp.RangedPort{Value: m.cfg.RTPPort},
			Protos: []string{"RTP", "AVP"},
		},
	}
}

func (m *Manager) marshal(media *sdp.MediaDescription) ([]byte, error) {
	addrType := "IP4"
	if addr, err := netip.ParseAddr(m.cfg.LocalAddress); err == nil && addr.Is6() {
		addrType = "IP6"
	}

	desc := &sdp.SessionDescription{
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      m.version.Load(),
			SessionVersion: m.version.Add(1),
			NetworkType:    "IN",
			AddressType:    addrType,
			UnicastAddress: m.cfg.LocalAddress,
		},
		SessionName: "aptx",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: addrType,
			Address:     &sdp.Address{Address: m.cfg.LocalAddress},
		},
		TimeDescriptions: []sdp.TimeDescription{{Timing: sdp.Timing{}}},
	}
	desc.WithMedia(media)

	out, err := desc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal sdp: %w", err)
	}
	return out, nil
}
