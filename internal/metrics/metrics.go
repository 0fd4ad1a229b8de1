package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the match ledger and reveal gate. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// Match request transitions by resulting status
	MatchTransitions *prometheus.CounterVec

	// Unlock attempts by method and outcome
	Unlocks *prometheus.CounterVec

	// Region gate answers by source (cache, store) and verdict
	RegionChecks *prometheus.CounterVec

	// Push delivery failures by channel
	PushFailures *prometheus.CounterVec

	PhotoUploads prometheus.Counter
}

// New registers every metric with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MatchTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfmate_match_transitions_total",
			Help: "Match request state transitions by resulting status",
		}, []string{"status"}),

		Unlocks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfmate_unlocks_total",
			Help: "Unlock attempts by method and outcome",
		}, []string{"method", "outcome"}), // outcome: "unlocked", "already_unlocked", "insufficient_credit", "error"

		RegionChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfmate_region_checks_total",
			Help: "Region gate checks by answer source and verdict",
		}, []string{"source", "open"}),

		PushFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfmate_push_failures_total",
			Help: "Push delivery failures by channel",
		}, []string{"channel"}),

		PhotoUploads: f.NewCounter(prometheus.CounterOpts{
			Name: "shelfmate_photo_uploads_total",
			Help: "Photos stored as an original/obscured pair",
		}),
	}
}

func (m *Metrics) IncrementMatchTransition(status string) {
	if m != nil {
		m.MatchTransitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementUnlock(method, outcome string) {
	if m != nil {
		m.Unlocks.WithLabelValues(method, outcome).Inc()
	}
}

func (m *Metrics) IncrementRegionCheck(source string, open bool) {
	if m != nil {
		v := "false"
		if open {
			v = "true"
		}
		m.RegionChecks.WithLabelValues(source, v).Inc()
	}
}

func (m *Metrics) IncrementPushFailure(channel string) {
	if m != nil {
		m.PushFailures.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) IncrementPhotoUploads() {
	if m != nil {
		m.PhotoUploads.Inc()
	}
}
