package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	ClaimLinksIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_links_issued_total",
			Help: "Claim link issue attempts.",
		},
		[]string{"result"},
	)

	ClaimRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_redemptions_total",
			Help: "Claim link redemption attempts.",
		},
		[]string{"result"},
	)

	ClaimRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_requests_total",
			Help: "Claim request submissions and reviews.",
		},
		[]string{"action", "result"},
	)

	SiblingDemotionsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sibling_demotions_failed_total",
			Help: "Sibling demotions that failed after a successful claim.",
		},
	)
)

var registerOnce sync.Once

// MustRegister registers all collectors with the default registry once.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			ClaimLinksIssuedTotal,
			ClaimRedemptionsTotal,
			ClaimRequestsTotal,
			SiblingDemotionsFailedTotal,
		)
	})
}
