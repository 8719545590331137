// Package metrics exposes prometheus counters for the outcomes that are
// otherwise only visible in logs: cache drift, repairs and idempotency hits.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Cache labels for CacheUpdateFailed.
const (
	CacheTrainerStudents         = "trainer_students"
	CacheStudentAssignedWorkouts = "student_assigned_workouts"
)

// Metrics holds the service counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	cacheUpdateFailures *prometheus.CounterVec
	rosterRepairs       prometheus.Counter
	feedbackConflicts   prometheus.Counter
	signups             *prometheus.CounterVec
	referralCollisions  prometheus.Counter
}

// New creates the counters and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheUpdateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coach",
			Name:      "cache_update_failures_total",
			Help:      "Best-effort denormalized list updates that failed.",
		}, []string{"cache"}),
		rosterRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coach",
			Name:      "roster_repairs_total",
			Help:      "Trainer student lists rewritten from the student profiles.",
		}),
		feedbackConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coach",
			Name:      "feedback_conflicts_total",
			Help:      "Feedback submissions rejected because the slot was already taken.",
		}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coach",
			Name:      "signups_total",
			Help:      "Completed signups by account type.",
		}, []string{"user_type"}),
		referralCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coach",
			Name:      "referral_collisions_total",
			Help:      "Referral code lookups that matched more than one trainer.",
		}),
	}
	reg.MustRegister(m.cacheUpdateFailures, m.rosterRepairs, m.feedbackConflicts, m.signups, m.referralCollisions)
	return m
}

func (m *Metrics) CacheUpdateFailed(cache string) {
	if m == nil {
		return
	}
	m.cacheUpdateFailures.WithLabelValues(cache).Inc()
}

func (m *Metrics) RosterRepaired() {
	if m == nil {
		return
	}
	m.rosterRepairs.Inc()
}

func (m *Metrics) FeedbackConflict() {
	if m == nil {
		return
	}
	m.feedbackConflicts.Inc()
}

func (m *Metrics) SignupCompleted(userType string) {
	if m == nil {
		return
	}
	m.signups.WithLabelValues(userType).Inc()
}

func (m *Metrics) ReferralCollision() {
	if m == nil {
		return
	}
	m.referralCollisions.Inc()
}
