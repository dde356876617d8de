// Package metrics records transfer outcomes as Prometheus metrics.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation names used as the "operation" label.
const (
	OpHeaders  = "headers"
	OpDownload = "download"
)

// Recorder holds the transfer metrics. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	transfers  *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      prometheus.Counter
	inProgress *prometheus.GaugeVec
}

// New creates a Recorder whose metric names carry the given namespace
// and registers them with reg. Registering the same namespace twice on
// one registry fails.
func New(namespace string, reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		return nil, errors.New("registerer must not be nil")
	}

	r := &Recorder{
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_total",
				Help:      "Transfers by operation and transfer code (0 is success).",
			},
			[]string{"operation", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transfer_duration_seconds",
				Help:      "Wall time of a transfer, redirects included.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		bytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "downloaded_bytes_total",
				Help:      "Body bytes written to download destinations.",
			},
		),
		inProgress: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "transfers_in_progress",
				Help:      "Transfers currently running.",
			},
			[]string{"operation"},
		),
	}

	for _, c := range []prometheus.Collector{r.transfers, r.duration, r.bytes, r.inProgress} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Start marks op as running and returns the function that records its
// outcome. code is the transfer code, 0 on success; n is the number of
// body bytes written.
func (r *Recorder) Start(op string) func(code int, n int64) {
	if r == nil {
		return func(int, int64) {}
	}

	start := time.Now()
	r.inProgress.WithLabelValues(op).Inc()

	return func(code int, n int64) {
		r.inProgress.WithLabelValues(op).Dec()
		r.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		r.transfers.WithLabelValues(op, strconv.Itoa(code)).Inc()
		if n > 0 {
			r.bytes.Add(float64(n))
		}
	}
}
