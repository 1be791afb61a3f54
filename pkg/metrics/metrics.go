// Package metrics exposes Prometheus counters for the submission engine:
//   - basket_orders_submitted_total{status} - per-order outcomes (filled|resting|rejected|failed)
//   - basket_submissions_total{outcome}     - whole-basket outcomes (succeeded|failed|partially_failed)
//   - basket_order_retries_total            - transient-error retries
//   - basket_orders_skipped_total{reason}   - allocation skips by reason
//   - basket_risk_rejections_total          - plans blocked by risk validation
//   - basket_queue_depth                    - baskets waiting for a submission slot (gauge)
//
// Registered in init() and served wherever the caller mounts promhttp.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ordersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basket_orders_submitted_total",
			Help: "Orders submitted, by final status",
		},
		[]string{"status"},
	)

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basket_submissions_total",
			Help: "Basket submissions, by outcome (succeeded|failed|partially_failed)",
		},
		[]string{"outcome"},
	)

	orderRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "basket_order_retries_total",
			Help: "Order submission retries after transient errors",
		},
	)

	ordersSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basket_orders_skipped_total",
			Help: "Symbols skipped during allocation, by reason",
		},
		[]string{"reason"},
	)

	riskRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "basket_risk_rejections_total",
			Help: "Basket plans blocked by risk validation",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "basket_queue_depth",
			Help: "Baskets waiting for a submission slot",
		},
	)
)

func init() {
	prometheus.MustRegister(ordersSubmitted, submissions, orderRetries)
	prometheus.MustRegister(ordersSkipped, riskRejections, queueDepth)
}

// Handler serves the Prometheus text exposition format.
func Handler() http.Handler { return promhttp.Handler() }

func IncOrderSubmitted(status string) { ordersSubmitted.WithLabelValues(status).Inc() }
func IncSubmission(outcome string)    { submissions.WithLabelValues(outcome).Inc() }
func IncOrderRetry()                  { orderRetries.Inc() }
func IncOrderSkipped(reason string)   { ordersSkipped.WithLabelValues(reason).Inc() }
func IncRiskRejection()               { riskRejections.Inc() }
func SetQueueDepth(n int)             { queueDepth.Set(float64(n)) }
