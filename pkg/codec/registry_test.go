package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/aptx/internal/core"
)

type stubNegotiation struct{}

func (stubNegotiation) Attribute(bool) string             { return "" }
func (stubNegotiation) EncodeFmtp(string, bool) string    { return "" }
func (stubNegotiation) CompareFmtp(string) bool           { return true }
func (stubNegotiation) MirrorFmtp(string)                 {}
func (stubNegotiation) DescribeFmtp(remote string) string { return remote }

func newDescriptor(name string) *Descriptor {
	return &Descriptor{
		Name:           name,
		SampleRate:     48000,
		ClockRate:      48000,
		Channels:       2,
		PacketChannels: 2,
		PTime:          4 * time.Millisecond,
		NewNegotiation: func() Negotiation { return stubNegotiation{} },
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(newDescriptor("aptx")))

	d, err := r.Get("APTX")
	require.NoError(t, err)
	assert.Equal(t, "aptx", d.Name)
	assert.Equal(t, 4, d.PTimeMillis())
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(newDescriptor("aptx")))
	err := r.Register(newDescriptor("APTX"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrCodecAlreadyRegistered))
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Descriptor)
	}{
		{"empty name", func(d *Descriptor) { d.Name = "" }},
		{"zero clock rate", func(d *Descriptor) { d.ClockRate = 0 }},
		{"zero channels", func(d *Descriptor) { d.Channels = 0 }},
		{"no negotiation", func(d *Descriptor) { d.NewNegotiation = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDescriptor("aptx")
			tt.mutate(d)
			err := NewRegistry().Register(d)
			assert.True(t, errors.Is(err, core.ErrInvalidDescriptor))
		})
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	_, err := NewRegistry().Get("opus")
	assert.True(t, errors.Is(err, core.ErrCodecNotFound))
}

func TestRegistry_UnregisterAndList(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newDescriptor("zeta")))
	require.NoError(t, r.Register(newDescriptor("aptx")))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "aptx", list[0].Name)
	assert.Equal(t, "zeta", list[1].Name)

	r.Unregister("ZETA")
	assert.Len(t, r.List(), 1)

	r.Reset()
	assert.Empty(t, r.List())
}

func TestDescriptor_OpenWithoutBackend(t *testing.T) {
	_, err := newDescriptor("aptx").Open("variant=hd")
	assert.True(t, errors.Is(err, core.ErrCodecUnavailable))
}

type passthrough struct{}

func (passthrough) Encode(s []int16) ([]byte, error) { return make([]byte, len(s)*2), nil }
func (passthrough) Decode(b []byte) ([]int16, error) { return make([]int16, len(b)/2), nil }

func TestDescriptor_OpenWithBackend(t *testing.T) {
	d := newDescriptor("aptx")
	var gotFmtp string
	d.NewCodec = func(fmtp string) (Codec, error) {
		gotFmtp = fmtp
		return passthrough{}, nil
	}

	c, err := d.Open("variant=hd; bitresolution=24")
	require.NoError(t, err)
	assert.Equal(t, "variant=hd; bitresolution=24", gotFmtp)

	bits, err := c.Encode(make([]int16, 8))
	require.NoError(t, err)
	assert.Len(t, bits, 16)
}

func TestDefaultRegistryFacade(t *testing.T) {
	Default().Reset()
	defer Default().Reset()

	require.NoError(t, Register(newDescriptor("aptx")))
	_, err := Get("aptx")
	require.NoError(t, err)
	assert.Len(t, List(), 1)

	Unregister("aptx")
	assert.Empty(t, List())
}
