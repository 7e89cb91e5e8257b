package game

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gravitas-games/sortshift/internal/events"
)

var (
	metricEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sortshift",
		Name:      "events_total",
		Help:      "Gameplay events published, by kind.",
	}, []string{"kind"})
	metricCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sortshift",
		Name:      "commands_total",
		Help:      "Player commands applied, by command and outcome.",
	}, []string{"command", "outcome"})
	metricCommandsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sortshift",
		Name:      "commands_dropped_total",
		Help:      "Commands refused because the queue was full.",
	})
	metricEarnings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sortshift",
		Name:      "earnings_total",
		Help:      "Money credited for accepted deliveries.",
	})
	metricBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sortshift",
		Name:      "balance",
		Help:      "Current shift balance.",
	})
	metricFlushErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sortshift",
		Name:      "store_flush_errors_total",
		Help:      "Save data flushes that failed.",
	})
	metricTickSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sortshift",
		Name:      "tick_interval_seconds",
		Help:      "Time between game ticks.",
		Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.25, 0.5, 1},
	})
)

// allKinds lists every event kind the game forwards to its output.
var allKinds = []events.Kind{
	events.KindDeliveryStarted,
	events.KindDeliveryEnded,
	events.KindStockingStarted,
	events.KindTimerWarning,
	events.KindTimerExpired,
	events.KindRequestPosted,
	events.KindItemScanned,
	events.KindItemRejected,
	events.KindRequestSkipped,
	events.KindQuotaMet,
	events.KindUpgradePurchased,
	events.KindCrateSpawned,
	events.KindBalanceChanged,
	events.KindTutorialCompleted,
}

func recordEvent(e events.Event) {
	metricEvents.WithLabelValues(e.Kind.String()).Inc()
	switch e.Kind {
	case events.KindItemScanned:
		metricEarnings.Add(float64(e.Amount))
	case events.KindBalanceChanged:
		if balance, ok := e.Data["balance"].(int); ok {
			metricBalance.Set(float64(balance))
		}
	}
}

func recordCommand(kind CommandKind, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "refused"
	}
	metricCommands.WithLabelValues(kind.String(), outcome).Inc()
}
