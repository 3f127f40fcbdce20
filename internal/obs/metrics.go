package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Client-side HTTP and session metrics.
var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_client_requests_total",
			Help: "Total outgoing portal API requests.",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_client_request_duration_seconds",
			Help:    "Outgoing portal API request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	sessionLocks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_session_locks_total",
		Help: "Idle-lock transitions into the locked state.",
	})

	sessionLogouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_session_logouts_total",
		Help: "Forced and explicit session logouts.",
	})
)

var initOnce sync.Once

// Init registers the client metrics with the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(requestsTotal, requestDuration, sessionLocks, sessionLogouts)
	})
}

// Handler exposes the Prometheus scrape endpoint for watch mode.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one completed outgoing request.
func ObserveRequest(method, path string, status int, elapsed time.Duration) {
	canonical := CanonicalPath(path)
	code := strconv.Itoa(status)
	requestsTotal.WithLabelValues(method, canonical, code).Inc()
	requestDuration.WithLabelValues(method, canonical, code).Observe(elapsed.Seconds())
}

// CountLock records an idle-lock transition.
func CountLock() { sessionLocks.Inc() }

// CountLogout records a session teardown.
func CountLogout() { sessionLogouts.Inc() }

// CanonicalPath collapses trailing entity identifiers so metric label
// cardinality stays bounded: /api/patients/42 becomes /api/patients/:id.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if i >= 2 && looksLikeID(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func looksLikeID(seg string) bool {
	if seg == "" {
		return false
	}
	hasDigit := false
	for _, r := range seg {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'f', r >= 'A' && r <= 'F', r == '-':
		default:
			return false
		}
	}
	return hasDigit
}
