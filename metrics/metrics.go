package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// FeedClients is the number of WebSocket sessions subscribed to the issue feed.
	FeedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pravah",
		Subsystem: "feed",
		Name:      "clients",
		Help:      "Current number of WebSocket sessions subscribed to the issue feed.",
	})

	SnapshotsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pravah",
		Subsystem: "feed",
		Name:      "snapshots_total",
		Help:      "Total number of issue snapshots built by this instance.",
	})

	// DroppedSnapshotsTotal counts stale snapshots replaced before a slow subscriber read them.
	DroppedSnapshotsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pravah",
		Subsystem: "feed",
		Name:      "dropped_snapshots_total",
		Help:      "Total number of snapshots superseded before a subscriber consumed them.",
	})

	MutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pravah",
		Subsystem: "issues",
		Name:      "mutations_total",
		Help:      "Total number of issue mutations, labeled by operation and result.",
	}, []string{"op", "result"})

	IdentityResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pravah",
		Subsystem: "identity",
		Name:      "resolutions_total",
		Help:      "Total number of profile resolutions, labeled by where the profile came from.",
	}, []string{"source"})

	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pravah",
		Subsystem: "upload",
		Name:      "images_total",
		Help:      "Total number of image uploads, labeled by result.",
	}, []string{"result"})
)

// Register registers the service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			FeedClients,
			SnapshotsTotal,
			DroppedSnapshotsTotal,
			MutationsTotal,
			IdentityResolutionsTotal,
			UploadsTotal,
		)
	})
}

// Result maps an error to the result label used by the counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
