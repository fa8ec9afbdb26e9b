package aptx

import "strconv"

// Policy tunes the compatibility check. The zero value is the permissive
// policy: only an unknown variant is rejected.
type Policy struct {
	// StrictBitResolution additionally rejects a parseable remote
	// bitresolution that differs from the local one.
	StrictBitResolution bool
}

// IsCompatible reports whether the remote fmtp string can be accepted
// against the local capabilities under the permissive policy.
func IsCompatible(local ParameterSet, remote string) bool {
	return Policy{}.IsCompatible(local, remote)
}

// IsCompatible checks remote against local. An empty remote means no
// parameters were offered and is accepted.
func (pol Policy) IsCompatible(local ParameterSet, remote string) bool {
	if val, ok := lookup(remote, keyVariant); ok {
		if _, known := ParseVariant(val); !known {
			return false
		}
	}

	if pol.StrictBitResolution {
		if val, ok := lookup(remote, keyBitResolution); ok {
			n, err := strconv.ParseUint(val, 10, 32)
			if err == nil && uint32(n) != local.BitResolution {
				return false
			}
		}
	}

	return true
}
