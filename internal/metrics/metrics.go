// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FmtpRenderedTotal counts fmtp lines rendered by codec and role (offer/answer)
	FmtpRenderedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aptx_fmtp_rendered_total",
			Help: "Total number of fmtp attributes rendered",
		},
		[]string{"codec", "role"},
	)

	// FmtpObservedTotal counts remote fmtp attributes recorded for mirroring
	FmtpObservedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aptx_fmtp_observed_total",
			Help: "Total number of remote fmtp attributes observed",
		},
		[]string{"codec"},
	)

	// CompatibilityChecksTotal counts compatibility decisions by result (accepted/rejected)
	CompatibilityChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aptx_compatibility_checks_total",
			Help: "Total number of remote fmtp compatibility checks",
		},
		[]string{"codec", "result"},
	)

	// SessionsActive tracks sessions held by the session manager
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aptx_sessions_active",
			Help: "Number of negotiation sessions currently tracked",
		},
	)

	// SIPMessagesTotal counts SIP messages handled by kind (invite/response/bye/other/invalid)
	SIPMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aptx_sip_messages_total",
			Help: "Total number of SIP messages handled",
		},
		[]string{"kind"},
	)
)

// Result label values for CompatibilityChecksTotal.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
)

// CheckResult maps a compatibility decision to its label value.
func CheckResult(ok bool) string {
	if ok {
		return ResultAccepted
	}
	return ResultRejected
}
