package aptx

import (
	"sync"

	"firestige.xyz/aptx/internal/log"
)

// Role is the side a negotiation round is rendered for.
type Role int

const (
	RoleOffer Role = iota
	RoleAnswer
)

func (r Role) String() string {
	if r == RoleAnswer {
		return "answer"
	}
	return "offer"
}

// Negotiator is the negotiation state of a single session: the local
// parameter set, its cached attribute and the mirror of the last remote
// attribute seen. It is safe for concurrent use.
type Negotiator struct {
	mu        sync.RWMutex
	local     ParameterSet
	localAttr string
	mirror    Mirror
	policy    Policy
}

// NewNegotiator renders and caches the local attribute for local.
func NewNegotiator(local ParameterSet, policy Policy) *Negotiator {
	n := &Negotiator{
		local:     local,
		localAttr: Encode(local),
		policy:    policy,
	}
	log.GetLogger().Debugf("aptx: fmtp=%q", n.localAttr)
	return n
}

// Local returns the local parameter set.
func (n *Negotiator) Local() ParameterSet {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.local
}

// LocalAttribute returns the cached canonical local attribute.
func (n *Negotiator) LocalAttribute() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.localAttr
}

// Attribute returns the fmtp parameters to send for role. An answer echoes
// the mirrored remote attribute when one is held.
func (n *Negotiator) Attribute(role Role) string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if role == RoleAnswer {
		if m, ok := n.mirror.Current(); ok {
			return m
		}
	}
	return n.localAttr
}

// FmtpLine renders the full "a=fmtp:" line for formatID and role.
func (n *Negotiator) FmtpLine(formatID string, role Role) string {
	return FmtpLine(formatID, n.Attribute(role))
}

// Observe records a remote attribute in the mirror, regardless of whether
// it is later accepted.
func (n *Negotiator) Observe(remote string) {
	log.GetLogger().Debugf("aptx: mirror parameters: %q", remote)

	n.mu.Lock()
	n.mirror.Set(remote)
	n.mu.Unlock()
}

// Mirror returns the currently mirrored remote attribute.
func (n *Negotiator) Mirror() (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.mirror.Current()
}

// Compatible checks remote against the local parameters under the
// negotiator's policy. No state changes.
func (n *Negotiator) Compatible(remote string) bool {
	log.GetLogger().Debugf("aptx: compare: %q", remote)

	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.policy.IsCompatible(n.local, remote)
}

// Remote materializes the remote parameter set, starting from the local one
// so that absent fields keep local values.
func (n *Negotiator) Remote(remote string) ParameterSet {
	p := n.Local()
	Decode(&p, remote)
	log.GetLogger().WithFields(map[string]interface{}{
		"variant":       p.Variant.String(),
		"bitresolution": p.BitResolution,
	}).Info("aptx: remote parameters")
	return p
}
