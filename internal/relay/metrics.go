package relay

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planpal_relay_uploads_total",
			Help: "Image relay uploads by outcome",
		},
		[]string{"outcome"},
	)

	uploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planpal_relay_upload_bytes",
			Help:    "Size of images accepted for relay",
			Buckets: prometheus.ExponentialBuckets(16<<10, 4, 7),
		},
	)
)

func recordOutcome(err error) {
	outcome := "succeeded"
	var rerr *Error
	switch {
	case err == nil:
	case errors.As(err, &rerr):
		outcome = rerr.Kind.String()
	default:
		outcome = "failed"
	}
	uploadsTotal.WithLabelValues(outcome).Inc()
}
