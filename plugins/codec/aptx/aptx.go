// Package aptx registers the aptX audio codec (Standard and HD variants,
// RFC 7310) with the codec registry.
package aptx

import (
	"time"

	"firestige.xyz/aptx/internal/config"
	"firestige.xyz/aptx/internal/log"
	"firestige.xyz/aptx/pkg/aptx"
	"firestige.xyz/aptx/pkg/codec"
)

const (
	Name = "aptx"

	SampleRate = 48000
	Channels   = 2
	PTime      = 4 * time.Millisecond
)

// negotiation adapts an aptx.Negotiator to codec.Negotiation.
type negotiation struct {
	n *aptx.Negotiator
}

func role(offer bool) aptx.Role {
	if offer {
		return aptx.RoleOffer
	}
	return aptx.RoleAnswer
}

func (s *negotiation) Attribute(offer bool) string {
	return s.n.Attribute(role(offer))
}

func (s *negotiation) EncodeFmtp(formatID string, offer bool) string {
	return s.n.FmtpLine(formatID, role(offer))
}

func (s *negotiation) CompareFmtp(remote string) bool {
	return s.n.Compatible(remote)
}

func (s *negotiation) MirrorFmtp(remote string) {
	s.n.Observe(remote)
}

func (s *negotiation) DescribeFmtp(remote string) string {
	return s.n.Remote(remote).String()
}

// NewDescriptor builds the aptX descriptor. Every negotiation it creates
// starts from local and is independent of the others.
func NewDescriptor(local aptx.ParameterSet, policy aptx.Policy) *codec.Descriptor {
	return &codec.Descriptor{
		Name:           Name,
		SampleRate:     SampleRate,
		ClockRate:      SampleRate,
		Channels:       Channels,
		PacketChannels: Channels,
		PTime:          PTime,
		NewNegotiation: func() codec.Negotiation {
			return &negotiation{n: aptx.NewNegotiator(local, policy)}
		},
	}
}

// Module loads the aptX codec from configuration.
type Module struct {
	reg *codec.Registry
}

func NewModule() *Module {
	return &Module{}
}

func (m *Module) Name() string { return Name }

func (m *Module) Type() string { return "audio codec" }

// Init seeds the local parameters from cfg and registers the codec.
func (m *Module) Init(cfg *config.GlobalConfig, reg *codec.Registry) error {
	local := aptx.Seed(cfg.Codec)
	policy := aptx.Policy{StrictBitResolution: cfg.Codec.StrictBitResolution}

	if err := reg.Register(NewDescriptor(local, policy)); err != nil {
		return err
	}
	m.reg = reg

	log.GetLogger().Debugf("aptx: fmtp=%q", aptx.Encode(local))
	return nil
}

// Close unregisters the codec.
func (m *Module) Close() error {
	if m.reg != nil {
		m.reg.Unregister(Name)
		m.reg = nil
	}
	return nil
}
