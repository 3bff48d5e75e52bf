package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Nearby query outcomes.
const (
	NearbyOK       = "ok"
	NearbyNotFound = "not_found"
	NearbyInvalid  = "invalid"
	NearbyError    = "error"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nearme_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nearme_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nearme_http_active_requests",
			Help: "Requests currently being served",
		},
	)

	// Nearby
	NearbyQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nearme_nearby_queries_total",
			Help: "Nearby queries by result (ok, not_found, invalid, error)",
		},
		[]string{"result"},
	)

	NearbyQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nearme_nearby_query_duration_seconds",
			Help:    "Nearby query latency in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	NearbyResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nearme_nearby_results",
			Help:    "Number of users returned per successful nearby query",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Accounts
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nearme_registrations_total",
			Help: "Registration attempts by result (ok, conflict, invalid, error)",
		},
		[]string{"result"},
	)

	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nearme_logins_total",
			Help: "Login attempts by result (ok, invalid_credentials, error)",
		},
		[]string{"result"},
	)

	LocationUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nearme_location_updates_total",
			Help: "Accepted location updates",
		},
	)

	// Invitations
	InvitationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nearme_invitations_total",
			Help: "Invitation events (sent, accepted, declined)",
		},
		[]string{"event"},
	)
)

// RecordHTTPRequest records one served request. route is the mux pattern, not the raw path.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// TrackActiveRequest tracks in-flight requests.
func TrackActiveRequest(inc bool) {
	if inc {
		HTTPActiveRequests.Inc()
	} else {
		HTTPActiveRequests.Dec()
	}
}

// RecordNearbyQuery records the outcome of a nearby query. results is only
// observed for NearbyOK.
func RecordNearbyQuery(result string, d time.Duration, results int) {
	NearbyQueriesTotal.WithLabelValues(result).Inc()
	NearbyQueryDuration.Observe(d.Seconds())
	if result == NearbyOK {
		NearbyResults.Observe(float64(results))
	}
}

func RecordRegistration(result string) { RegistrationsTotal.WithLabelValues(result).Inc() }

func RecordLogin(result string) { LoginsTotal.WithLabelValues(result).Inc() }

func RecordLocationUpdate() { LocationUpdatesTotal.Inc() }

func RecordInvitation(event string) { InvitationsTotal.WithLabelValues(event).Inc() }
