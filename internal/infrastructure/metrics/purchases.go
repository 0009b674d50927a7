package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(purchaseIntents, purchasesCompleted, purchaseFailures, orphanedIntents)
}

var (
	purchaseIntents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "purchase_intents_created_total",
			Help: "Payment intents created for video purchases.",
		},
	)

	purchasesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_completed_total",
			Help: "Purchases promoted to completed, by source (confirm/webhook).",
		},
		[]string{"source"},
	)

	purchaseFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_failures_total",
			Help: "Purchase flow failures by operation and error code.",
		},
		[]string{"operation", "code"},
	)

	orphanedIntents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "purchase_orphaned_intents_total",
			Help: "Payment intents created at the provider with no pending row written.",
		},
	)
)

func IncIntentCreated() { purchaseIntents.Inc() }

func IncPurchaseCompleted(source string) {
	purchasesCompleted.WithLabelValues(norm(source)).Inc()
}

func IncPurchaseFailure(operation, code string) {
	purchaseFailures.WithLabelValues(norm(operation), norm(code)).Inc()
}

func IncOrphanedIntent() { orphanedIntents.Inc() }
