package aptx

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// AttributeBufferSize bounds every rendered or mirrored attribute. Like a
// NUL-terminated C buffer, at most AttributeBufferSize-1 bytes are kept.
const AttributeBufferSize = 256

const (
	keyVariant       = "variant"
	keyBitResolution = "bitresolution"
)

// Encode renders p in canonical form: "variant=<standard|hd>; bitresolution=<N>".
func Encode(p ParameterSet) string {
	b := make([]byte, 0, 48)
	b = append(b, keyVariant...)
	b = append(b, '=')
	b = append(b, p.Variant.String()...)
	b = append(b, "; "...)
	b = append(b, keyBitResolution...)
	b = append(b, '=')
	b = strconv.AppendUint(b, uint64(p.BitResolution), 10)
	return truncate(string(b))
}

// FmtpLine renders a full SDP fmtp attribute line for formatID.
func FmtpLine(formatID, params string) string {
	return truncate("a=fmtp:"+formatID+" "+params) + "\r\n"
}

// ParseParams extracts the known parameters from raw. Unknown keys, unknown
// variant names and unparseable resolutions are skipped.
func ParseParams(raw string) Params {
	var u Params

	if val, ok := lookup(raw, keyVariant); ok {
		if v, ok := ParseVariant(val); ok {
			u.Variant = &v
		}
	}

	if val, ok := lookup(raw, keyBitResolution); ok {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			br := uint32(n)
			u.BitResolution = &br
		}
	}

	return u
}

// Decode updates p in place from the remote fmtp string raw. Fields whose
// key is absent or malformed keep their prior value.
func Decode(p *ParameterSet, raw string) {
	if p == nil || raw == "" {
		return
	}
	p.Merge(ParseParams(raw))
}

// lookup returns the value of the first key=value token whose key matches
// name case-insensitively. Tokens are separated by ';' or whitespace. A
// token with an empty value does not count as present.
func lookup(raw, name string) (string, bool) {
	for _, tok := range strings.FieldsFunc(raw, isParamSep) {
		k, v, ok := strings.Cut(tok, "=")
		if ok && v != "" && strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func isParamSep(r rune) bool {
	return r == ';' || unicode.IsSpace(r)
}

// truncate clips s to AttributeBufferSize-1 bytes without splitting a UTF-8
// sequence.
func truncate(s string) string {
	limit := AttributeBufferSize - 1
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
