package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"checkexplorer/internal/logs"
)

var (
	// PagesFetched counts log page requests sent to the log backend.
	PagesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "checkexplorer",
		Name:      "log_pages_fetched_total",
		Help:      "Log page requests sent to the log backend.",
	})
	// PageFailures counts log pages that failed after retries.
	PageFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "checkexplorer",
		Name:      "log_page_failures_total",
		Help:      "Log pages that could not be fetched after retries.",
	})
	// StaleResults counts fetch results discarded on arrival.
	StaleResults = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "checkexplorer",
		Name:      "stale_page_results_total",
		Help:      "Fetch results discarded because the view moved on.",
	})
	// ActiveSessions tracks open explorer sessions.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "checkexplorer",
		Name:      "active_sessions",
		Help:      "Explorer sessions currently open.",
	})
)

// Register adds every collector of the service to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{PagesFetched, PageFailures, StaleResults, ActiveSessions, logs.MalformedRows} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
