package aptx

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type seed struct{ variant, br uint32 }

func (s seed) AptxVariant() uint32       { return s.variant }
func (s seed) AptxBitResolution() uint32 { return s.br }

func TestSeed(t *testing.T) {
	tests := []struct {
		name string
		s    seed
		want ParameterSet
	}{
		{"standard", seed{0, 0}, ParameterSet{VariantStandard, 16}},
		{"hd", seed{1, 0}, ParameterSet{VariantHD, 24}},
		{"nonzero is hd", seed{42, 0}, ParameterSet{VariantHD, 24}},
		{"resolution override", seed{1, 16}, ParameterSet{VariantHD, 16}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Seed(tt.s))
		})
	}
}

func TestNegotiatorMirroring(t *testing.T) {
	n := NewNegotiator(NewParameterSet(0), Policy{})
	local := "variant=standard; bitresolution=16"

	assert.Equal(t, local, n.Attribute(RoleOffer))
	assert.Equal(t, local, n.Attribute(RoleAnswer), "empty mirror falls back to local")

	n.Observe("variant=hd; bitresolution=24")

	assert.Equal(t, "variant=hd; bitresolution=24", n.Attribute(RoleAnswer))
	assert.Equal(t, local, n.Attribute(RoleOffer))
	assert.Equal(t, local, n.LocalAttribute())
}

func TestNegotiatorMirrorsVerbatim(t *testing.T) {
	n := NewNegotiator(NewParameterSet(1), Policy{})
	raw := "bitresolution=24;VARIANT=HD; x-vendor=1"

	n.Observe(raw)

	assert.Equal(t, raw, n.Attribute(RoleAnswer))
	assert.Equal(t, "a=fmtp:97 "+raw+"\r\n", n.FmtpLine("97", RoleAnswer))
	assert.Equal(t, "a=fmtp:97 variant=hd; bitresolution=24\r\n", n.FmtpLine("97", RoleOffer))
}

func TestNegotiatorMirrorsRejectedAttributes(t *testing.T) {
	n := NewNegotiator(NewParameterSet(0), Policy{})

	assert.False(t, n.Compatible("variant=exotic"))
	n.Observe("variant=exotic")

	m, ok := n.Mirror()
	assert.True(t, ok)
	assert.Equal(t, "variant=exotic", m)
}

func TestNegotiatorMirrorLastWriterWins(t *testing.T) {
	n := NewNegotiator(NewParameterSet(0), Policy{})

	n.Observe("variant=hd")
	n.Observe("variant=standard")

	m, _ := n.Mirror()
	assert.Equal(t, "variant=standard", m)
}

func TestNegotiatorMirrorTruncates(t *testing.T) {
	n := NewNegotiator(NewParameterSet(0), Policy{})
	n.Observe("variant=hd; x=" + strings.Repeat("y", 600))

	m, ok := n.Mirror()
	assert.True(t, ok)
	assert.Len(t, m, AttributeBufferSize-1)
}

func TestNegotiatorRemote(t *testing.T) {
	n := NewNegotiator(NewParameterSet(0), Policy{})

	assert.Equal(t, ParameterSet{VariantHD, 24}, n.Remote("variant=hd; bitresolution=24"))
	assert.Equal(t, ParameterSet{VariantHD, 16}, n.Remote("variant=hd"))
	assert.Equal(t, NewParameterSet(0), n.Local(), "remote decode must not touch local")
}

func TestMirrorStates(t *testing.T) {
	var m Mirror

	_, ok := m.Current()
	assert.False(t, ok)

	m.Set("variant=hd")
	v, ok := m.Current()
	assert.True(t, ok)
	assert.Equal(t, "variant=hd", v)
}

func TestNegotiatorConcurrentUse(t *testing.T) {
	n := NewNegotiator(NewParameterSet(1), Policy{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				n.Observe("variant=standard; bitresolution=16")
			} else {
				_ = n.Attribute(RoleAnswer)
				_ = n.Compatible("variant=hd")
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, "variant=standard; bitresolution=16", n.Attribute(RoleAnswer))
}

func TestSeparateNegotiatorsAreIsolated(t *testing.T) {
	a := NewNegotiator(NewParameterSet(0), Policy{})
	b := NewNegotiator(NewParameterSet(0), Policy{})

	a.Observe("variant=hd; bitresolution=24")

	assert.Equal(t, "variant=standard; bitresolution=16", b.Attribute(RoleAnswer))
}

func TestVariantString(t *testing.T) {
	assert.Equal(t, "standard", VariantStandard.String())
	assert.Equal(t, "hd", VariantHD.String())
	assert.Equal(t, "offer", RoleOffer.String())
	assert.Equal(t, "answer", RoleAnswer.String())
	assert.Equal(t, "variant: hd, bitresolution: 24", NewParameterSet(1).String())
}
