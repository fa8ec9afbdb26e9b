// Package aptx implements SDP fmtp negotiation for the aptX audio codec
// (Standard and HD variants, RFC 7310).
package aptx

import (
	"strconv"
	"strings"
)

// Variant selects the aptX sub-format.
type Variant uint32

const (
	VariantStandard Variant = iota
	VariantHD
)

func (v Variant) String() string {
	switch v {
	case VariantHD:
		return "hd"
	default:
		return "standard"
	}
}

// ParseVariant matches the textual variant case-insensitively.
func ParseVariant(s string) (Variant, bool) {
	switch {
	case strings.EqualFold(s, "standard"):
		return VariantStandard, true
	case strings.EqualFold(s, "hd"):
		return VariantHD, true
	default:
		return VariantStandard, false
	}
}

// DefaultBitResolution is the conventional sample resolution of a variant.
func (v Variant) DefaultBitResolution() uint32 {
	if v == VariantHD {
		return 24
	}
	return 16
}

// ParameterSet holds the negotiable aptX parameters.
type ParameterSet struct {
	Variant       Variant
	BitResolution uint32
}

// NewParameterSet derives a parameter set from the startup variant value:
// 0 is Standard, anything else is HD.
func NewParameterSet(variant uint32) ParameterSet {
	v := VariantStandard
	if variant != 0 {
		v = VariantHD
	}
	return ParameterSet{Variant: v, BitResolution: v.DefaultBitResolution()}
}

func (p ParameterSet) String() string {
	return "variant: " + p.Variant.String() + ", bitresolution: " + strconv.FormatUint(uint64(p.BitResolution), 10)
}

// ConfigSeed supplies the startup configuration of the local parameter set.
type ConfigSeed interface {
	// AptxVariant is the configured variant, 0 = Standard, nonzero = HD.
	AptxVariant() uint32
	// AptxBitResolution overrides the derived resolution when nonzero.
	AptxBitResolution() uint32
}

// Seed builds the local parameter set from configuration.
func Seed(s ConfigSeed) ParameterSet {
	p := NewParameterSet(s.AptxVariant())
	if br := s.AptxBitResolution(); br != 0 {
		p.BitResolution = br
	}
	return p
}

// Params is a partial update decoded from a remote fmtp string. Nil fields
// were absent or unparseable.
type Params struct {
	Variant       *Variant
	BitResolution *uint32
}

// Merge applies the present fields of u onto p.
func (p *ParameterSet) Merge(u Params) {
	if u.Variant != nil {
		p.Variant = *u.Variant
	}
	if u.BitResolution != nil {
		p.BitResolution = *u.BitResolution
	}
}
