// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Wrap with fmt.Errorf("...: %w", err) and test with errors.Is.
var (
	// Codec registry errors
	ErrCodecNotFound          = errors.New("aptx: codec not found")
	ErrCodecAlreadyRegistered = errors.New("aptx: codec already registered")
	ErrInvalidDescriptor      = errors.New("aptx: invalid codec descriptor")
	ErrCodecUnavailable       = errors.New("aptx: codec backend unavailable")

	// Session errors
	ErrSessionNotFound   = errors.New("aptx: session not found")
	ErrEmptyCallID       = errors.New("aptx: empty call-id")
	ErrNoAudioMedia      = errors.New("aptx: no audio media description")
	ErrNoCompatibleCodec = errors.New("aptx: no compatible codec")
	ErrMalformedSDP      = errors.New("aptx: malformed session description")

	// Signaling errors
	ErrNotSIP = errors.New("aptx: not a SIP message")

	// Module errors
	ErrPluginInitFailed = errors.New("aptx: module init failed")

	// Configuration errors
	ErrConfigInvalid = errors.New("aptx: invalid configuration")
)
