package aptx

// Mirror holds the most recently observed remote fmtp string so an answer
// can echo the offerer's parameters verbatim. Once set it is never cleared.
type Mirror struct {
	value string
	set   bool
}

// Set overwrites the stored value, truncated to the attribute bound.
func (m *Mirror) Set(raw string) {
	m.value = truncate(raw)
	m.set = true
}

// Current returns the stored value. ok is false until something non-empty
// has been observed.
func (m *Mirror) Current() (string, bool) {
	if !m.set || m.value == "" {
		return "", false
	}
	return m.value, true
}
