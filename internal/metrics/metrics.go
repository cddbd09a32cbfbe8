package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal  *prometheus.CounterVec
	ballotsCastTotal   *prometheus.CounterVec
	registrationsTotal *prometheus.CounterVec
	registerOnce       sync.Once
)

// Register initializes Prometheus metrics on the default registry.
func Register() {
	registerOnce.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evoting",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed by the voting API.",
		}, []string{"method", "path", "status"})

		ballotsCastTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evoting",
			Name:      "ballots_cast_total",
			Help:      "Ballots successfully recorded, per meeting.",
		}, []string{"meeting_id"})

		registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evoting",
			Name:      "registrations_total",
			Help:      "Meeting check-ins completed, per meeting.",
		}, []string{"meeting_id"})
	})
}

// IncRequest increments the http_requests_total counter with the given labels.
func IncRequest(method, path string, status int) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// IncBallotCast increments the ballots_cast_total counter for a meeting.
func IncBallotCast(meetingID int64) {
	if ballotsCastTotal == nil {
		return
	}
	ballotsCastTotal.WithLabelValues(strconv.FormatInt(meetingID, 10)).Inc()
}

// IncRegistration increments the registrations_total counter for a meeting.
func IncRegistration(meetingID int64) {
	if registrationsTotal == nil {
		return
	}
	registrationsTotal.WithLabelValues(strconv.FormatInt(meetingID, 10)).Inc()
}
