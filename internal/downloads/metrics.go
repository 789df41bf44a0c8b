package downloads

import (
	"github.com/mssola/useragent"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DownloadsServed  *prometheus.CounterVec
	DownloadsCounted prometheus.Counter
	DownloadsSkipped *prometheus.CounterVec
	DedupesPruned    prometheus.Counter
	PruneRuns        prometheus.Counter
}

func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers on a caller-supplied registry. Tests use this to
// avoid duplicate registration on the process-wide default.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DownloadsServed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skillhub_downloads_served_total",
			Help: "Archives served, labeled by client kind",
		}, []string{"client"}),
		DownloadsCounted: factory.NewCounter(prometheus.CounterOpts{
			Name: "skillhub_downloads_counted_total",
			Help: "Downloads that incremented the stat counter",
		}),
		DownloadsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skillhub_downloads_skipped_total",
			Help: "Served downloads not counted, labeled by reason",
		}, []string{"reason"}),
		DedupesPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "skillhub_download_dedupes_pruned_total",
			Help: "Expired dedupe rows removed by the prune loop",
		}),
		PruneRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "skillhub_download_prune_runs_total",
			Help: "Completed dedupe prune runs",
		}),
	}
}

func (m *Metrics) ServedTo(userAgent string) {
	m.DownloadsServed.WithLabelValues(classifyAgent(userAgent)).Inc()
}

func (m *Metrics) CountRecorded() {
	m.DownloadsCounted.Inc()
}

func (m *Metrics) CountSkipped(reason string) {
	m.DownloadsSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) PruneRun(deleted int64) {
	m.PruneRuns.Inc()
	m.DedupesPruned.Add(float64(deleted))
}

// classifyAgent buckets the User-Agent header into a low-cardinality label.
func classifyAgent(raw string) string {
	if raw == "" {
		return "unknown"
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		return "bot"
	}
	if name, _ := ua.Browser(); name != "" {
		return "browser"
	}
	return "cli"
}
