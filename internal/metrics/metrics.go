// Package metrics holds the Prometheus collectors of the responder.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "khaled"

var (
	// repliesTotal counts resolved replies.
	// Labels: stage (empty, cache, kb, memory, dataset, model, teach)
	repliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "responder",
		Name:      "replies_total",
		Help:      "Replies by the stage that produced them",
	}, []string{"stage"})

	resolveSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "responder",
		Name:      "resolve_seconds",
		Help:      "Time spent resolving one reply",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// learnedPairsTotal counts teach outcomes.
	// Labels: result (saved, duplicate, failed)
	learnedPairsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "learning",
		Name:      "pairs_total",
		Help:      "Learned pair attempts by result",
	}, []string{"result"})

	// storeWriteFailuresTotal counts failed writes.
	// Labels: store (dataset, memory, kb, config)
	storeWriteFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "write_failures_total",
		Help:      "Failed store writes by store",
	}, []string{"store"})

	modelErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "model",
		Name:      "errors_total",
		Help:      "Model predictions that failed or panicked",
	})

	// retrainsTotal counts training runs.
	// Labels: result (ok, failed, skipped)
	retrainsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "model",
		Name:      "retrains_total",
		Help:      "Training runs by result",
	}, []string{"result"})
)

func RecordReply(stage string, elapsed time.Duration) {
	repliesTotal.WithLabelValues(stage).Inc()
	resolveSeconds.Observe(elapsed.Seconds())
}

func RecordLearned(result string) { learnedPairsTotal.WithLabelValues(result).Inc() }

func RecordStoreWriteFailure(store string) { storeWriteFailuresTotal.WithLabelValues(store).Inc() }

func RecordModelError() { modelErrorsTotal.Inc() }

func RecordRetrain(result string) { retrainsTotal.WithLabelValues(result).Inc() }

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
