package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors(t *testing.T) {
	all := []error{
		ErrCodecNotFound,
		ErrCodecAlreadyRegistered,
		ErrInvalidDescriptor,
		ErrCodecUnavailable,
		ErrSessionNotFound,
		ErrEmptyCallID,
		ErrNoAudioMedia,
		ErrNoCompatibleCodec,
		ErrMalformedSDP,
		ErrNotSIP,
		ErrPluginInitFailed,
		ErrConfigInvalid,
	}

	seen := make(map[string]bool)
	for _, err := range all {
		msg := err.Error()
		assert.False(t, seen[msg], "duplicate message %q", msg)
		seen[msg] = true

		wrapped := fmt.Errorf("context: %w", err)
		assert.ErrorIs(t, wrapped, err)
		for _, other := range all {
			if other != err {
				assert.False(t, errors.Is(wrapped, other), "%v matched %v", wrapped, other)
			}
		}
	}
}
