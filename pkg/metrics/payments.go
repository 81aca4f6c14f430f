package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics counts payment intent outcomes and quota rejections.
type PaymentMetrics struct {
	outcomes      *prometheus.CounterVec
	submitRetries prometheus.Counter
	quotaRejected *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_intent_outcomes",
		Help: "Payment intents entering each lifecycle status.",
	}, []string{"status"})
	submitRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_submit_retries",
		Help: "Reference submissions retried after a transient failure.",
	})
	quotaRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quota_reservations_rejected",
		Help: "Storage reservations rejected by the quota guard.",
	}, []string{"reason"})
	reg.MustRegister(outcomes, submitRetries, quotaRejected)
	return &PaymentMetrics{
		outcomes:      outcomes,
		submitRetries: submitRetries,
		quotaRejected: quotaRejected,
	}
}

// IncOutcome counts an intent entering the given status.
func (p *PaymentMetrics) IncOutcome(status string) {
	if p == nil || p.outcomes == nil {
		return
	}
	p.outcomes.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncSubmitRetry counts a retried reference submission.
func (p *PaymentMetrics) IncSubmitRetry() {
	if p == nil || p.submitRetries == nil {
		return
	}
	p.submitRetries.Inc()
}

// IncQuotaRejected counts a rejected reservation with the given reason.
func (p *PaymentMetrics) IncQuotaRejected(reason string) {
	if p == nil || p.quotaRejected == nil {
		return
	}
	p.quotaRejected.WithLabelValues(normalizeLabel(reason)).Inc()
}
