package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records pricing, quota and submission outcomes.
type CheckoutMetrics struct {
	quotes      *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	quota       *prometheus.CounterVec
	submissions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_quotes_total",
		Help: "Base price quotes by the pricing model that produced them.",
	}, []string{"model"})
	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_pricing_fallbacks_total",
		Help: "Survey price lookups that fell back to tier pricing.",
	}, []string{"reason"})
	quota := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quota_decisions_total",
		Help: "Daily quota decisions by outcome.",
	}, []string{"outcome"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_submissions_total",
		Help: "Order submissions by kind and outcome.",
	}, []string{"kind", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "order_submission_duration_seconds",
		Help:    "Duration of order submissions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	reg.MustRegister(quotes, fallbacks, quota, submissions, duration)
	return &CheckoutMetrics{
		quotes:      quotes,
		fallbacks:   fallbacks,
		quota:       quota,
		submissions: submissions,
		duration:    duration,
	}
}

// IncQuote counts a resolved quote for the named model.
func (c *CheckoutMetrics) IncQuote(model string) {
	if c == nil || c.quotes == nil {
		return
	}
	c.quotes.WithLabelValues(normalizeLabel(model)).Inc()
}

// IncSurveyFallback counts a survey lookup that fell back to tiers.
func (c *CheckoutMetrics) IncSurveyFallback(reason string) {
	if c == nil || c.fallbacks == nil {
		return
	}
	c.fallbacks.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncQuotaDecision counts a quota decision outcome (free, paid, error).
func (c *CheckoutMetrics) IncQuotaDecision(outcome string) {
	if c == nil || c.quota == nil {
		return
	}
	c.quota.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveSubmission records the outcome and duration of one submission.
func (c *CheckoutMetrics) ObserveSubmission(kind string, success bool, duration time.Duration) {
	if c == nil || c.submissions == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.submissions.WithLabelValues(normalizeLabel(kind), outcome).Inc()
	if c.duration != nil {
		c.duration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
