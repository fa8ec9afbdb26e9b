// Package codec defines audio codec descriptors and the registry the session
// layer queries during SDP negotiation.
package codec

import (
	"fmt"
	"time"

	"firestige.xyz/aptx/internal/core"
)

// Negotiation is the per-session fmtp negotiation state of one codec.
type Negotiation interface {
	// Attribute returns the fmtp parameters for an offer or an answer.
	Attribute(offer bool) string
	// EncodeFmtp renders the full "a=fmtp:<id> <params>\r\n" line.
	EncodeFmtp(formatID string, offer bool) string
	// CompareFmtp reports whether the remote parameters are acceptable.
	CompareFmtp(remote string) bool
	// MirrorFmtp records remote parameters for echoing in answers.
	MirrorFmtp(remote string)
	// DescribeFmtp decodes remote parameters for diagnostics.
	DescribeFmtp(remote string) string
}

// Codec is an external audio transform bound to negotiated parameters.
type Codec interface {
	Encode(samples []int16) ([]byte, error)
	Decode(bits []byte) ([]int16, error)
}

// Descriptor is the static description of a registered audio codec.
type Descriptor struct {
	Name           string
	SampleRate     uint32 // audio sample rate
	ClockRate      uint32 // RTP clock rate
	Channels       uint16
	PacketChannels uint16
	PTime          time.Duration

	// NewNegotiation creates fresh negotiation state for a session.
	NewNegotiation func() Negotiation
	// NewCodec binds the external transform to the negotiated fmtp.
	// Nil when no backend is linked.
	NewCodec func(fmtp string) (Codec, error)
}

// Validate checks the descriptor is usable by the session layer.
func (d *Descriptor) Validate() error {
	switch {
	case d.Name == "":
		return fmt.Errorf("%w: empty name", core.ErrInvalidDescriptor)
	case d.ClockRate == 0:
		return fmt.Errorf("%w: %s: zero clock rate", core.ErrInvalidDescriptor, d.Name)
	case d.Channels == 0:
		return fmt.Errorf("%w: %s: zero channels", core.ErrInvalidDescriptor, d.Name)
	case d.NewNegotiation == nil:
		return fmt.Errorf("%w: %s: missing negotiation", core.ErrInvalidDescriptor, d.Name)
	}
	return nil
}

// Open binds the external codec for the negotiated fmtp.
func (d *Descriptor) Open(fmtp string) (Codec, error) {
	if d.NewCodec == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrCodecUnavailable, d.Name)
	}
	return d.NewCodec(fmtp)
}

// PTimeMillis returns the packet time in whole milliseconds.
func (d *Descriptor) PTimeMillis() int {
	return int(d.PTime / time.Millisecond)
}
