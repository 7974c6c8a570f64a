package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics is the platform's metric catalog. Every component records
// through these families; names are stable dashboard contracts.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Scan orchestration
	ScansStartedTotal  CounterVec
	ScanQuantaEnqueued CounterVec
	ScanReportsTotal   CounterVec

	// Job pipeline
	JobAttemptsTotal   CounterVec
	JobAttemptDuration HistogramVec
	JobsInFlight       GaugeVec
	JobsReclaimedTotal CounterVec

	// Analysis outcomes
	ScoresObserved    HistogramVec
	DisqualifiedTotal CounterVec
	MismatchesTotal   CounterVec

	// Feature providers
	ProviderFetchesTotal  CounterVec
	ProviderFetchDuration HistogramVec
	CacheHitsTotal        CounterVec
	CacheMissesTotal      CounterVec

	// Eventing
	EventsPublishedTotal CounterVec

	// Similarity index
	IndexQueriesTotal  CounterVec
	IndexQueryDuration HistogramVec

	// System health
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Outcome label values shared across counter families.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeDone    = "done"
	OutcomeRetried = "retried"
	OutcomeFailed  = "failed"
)

// Histogram bucket layouts.
var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultJobDurationBuckets      = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}
	DefaultProviderDurationBuckets = []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultScoreBuckets            = []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
)

// NewAppMetrics registers the catalog on the collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total",
		"HTTP requests by method, route, and status code.", "method", "path", "status")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds",
		"HTTP request latency.", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests",
		"In-flight HTTP requests.", "method")

	// Scan orchestration
	m.ScansStartedTotal = collector.RegisterCounter("scans_started_total",
		"Region scans accepted.", "profile")
	m.ScanQuantaEnqueued = collector.RegisterCounter("scan_quanta_enqueued_total",
		"Quantum jobs enqueued by scans.", "profile")
	m.ScanReportsTotal = collector.RegisterCounter("scan_reports_total",
		"Scan reports generated.", "profile", "outcome")

	// Job pipeline
	m.JobAttemptsTotal = collector.RegisterCounter("job_attempts_total",
		"Job attempts by terminal outcome of the attempt.", "profile", "outcome")
	m.JobAttemptDuration = collector.RegisterHistogram("job_attempt_duration_seconds",
		"Wall time of a single job attempt.", DefaultJobDurationBuckets, "profile")
	m.JobsInFlight = collector.RegisterGauge("jobs_in_flight",
		"Jobs currently being processed by this instance.")
	m.JobsReclaimedTotal = collector.RegisterCounter("jobs_reclaimed_total",
		"Stale in-progress jobs returned to the queue.")

	// Analysis outcomes
	m.ScoresObserved = collector.RegisterHistogram("synergy_scores",
		"Distribution of computed synergy scores.", DefaultScoreBuckets, "profile")
	m.DisqualifiedTotal = collector.RegisterCounter("quanta_disqualified_total",
		"Quanta zeroed out by a disqualifying rule.", "profile")
	m.MismatchesTotal = collector.RegisterCounter("mismatches_total",
		"Mismatch findings by category.", "profile", "category")

	// Providers
	m.ProviderFetchesTotal = collector.RegisterCounter("provider_fetches_total",
		"Feature provider fetches.", "provider", "outcome")
	m.ProviderFetchDuration = collector.RegisterHistogram("provider_fetch_duration_seconds",
		"Feature provider fetch latency.", DefaultProviderDurationBuckets, "provider")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total",
		"Cache hits.", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total",
		"Cache misses.", "cache")

	// Eventing
	m.EventsPublishedTotal = collector.RegisterCounter("events_published_total",
		"Events published to the stream.", "topic", "outcome")

	// Similarity index
	m.IndexQueriesTotal = collector.RegisterCounter("index_queries_total",
		"Similarity index queries.", "backend", "outcome")
	m.IndexQueryDuration = collector.RegisterHistogram("index_query_duration_seconds",
		"Similarity index query latency.", DefaultProviderDurationBuckets, "backend")

	// Health
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status",
		"Component health (1 up, 0 down).", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total",
		"Errors by component and code.", "component", "code")

	return m
}

// The Record helpers below tolerate a nil receiver so callers can treat
// metrics as optional wiring.

// RecordHTTPRequest feeds the HTTP counter and latency families.
func RecordHTTPRequest(m *AppMetrics, method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordScanStarted counts an accepted scan and the quanta it enqueued.
func RecordScanStarted(m *AppMetrics, profile string, quanta int) {
	if m == nil {
		return
	}
	m.ScansStartedTotal.WithLabelValues(profile).Inc()
	m.ScanQuantaEnqueued.WithLabelValues(profile).Add(float64(quanta))
}

// RecordScanReport counts one generated scan report.
func RecordScanReport(m *AppMetrics, profile, outcome string) {
	if m == nil {
		return
	}
	m.ScanReportsTotal.WithLabelValues(profile, outcome).Inc()
}

// RecordJobAttempt records one attempt with its outcome: done, retried, or
// failed.
func RecordJobAttempt(m *AppMetrics, profile, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.JobAttemptsTotal.WithLabelValues(profile, outcome).Inc()
	m.JobAttemptDuration.WithLabelValues(profile).Observe(duration.Seconds())
}

// AddJobsInFlight moves the in-flight gauge by delta (+1 on claim, -1 on
// settle).
func AddJobsInFlight(m *AppMetrics, delta float64) {
	if m == nil {
		return
	}
	m.JobsInFlight.WithLabelValues().Add(delta)
}

// RecordJobsReclaimed counts stale jobs returned to the queue.
func RecordJobsReclaimed(m *AppMetrics, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.JobsReclaimedTotal.WithLabelValues().Add(float64(n))
}

// RecordScore observes a computed synergy score, counting disqualifications
// separately so zeroed quanta do not read as genuinely low-synergy land.
func RecordScore(m *AppMetrics, profile string, score float64, disqualified bool) {
	if m == nil {
		return
	}
	if disqualified {
		m.DisqualifiedTotal.WithLabelValues(profile).Inc()
		return
	}
	m.ScoresObserved.WithLabelValues(profile).Observe(score)
}

// RecordMismatch counts one mismatch finding.
func RecordMismatch(m *AppMetrics, profile, category string) {
	if m == nil {
		return
	}
	m.MismatchesTotal.WithLabelValues(profile, category).Inc()
}

// RecordProviderFetch records one provider call.
func RecordProviderFetch(m *AppMetrics, provider string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.ProviderFetchesTotal.WithLabelValues(provider, outcome).Inc()
	m.ProviderFetchDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordCacheAccess counts a cache hit or miss.
func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// RecordEventPublished counts one publish attempt per topic.
func RecordEventPublished(m *AppMetrics, topic string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.EventsPublishedTotal.WithLabelValues(topic, outcome).Inc()
}

// RecordIndexQuery records one similarity index query.
func RecordIndexQuery(m *AppMetrics, backend string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.IndexQueriesTotal.WithLabelValues(backend, outcome).Inc()
	m.IndexQueryDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// SetComponentHealth flips a component's health gauge.
func SetComponentHealth(m *AppMetrics, component string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

// RecordError counts an error against a component with its platform code.
func RecordError(m *AppMetrics, component, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}
