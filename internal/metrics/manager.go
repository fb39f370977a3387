package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterSetsLogged        prometheus.Counter
	CounterExtraSets         prometheus.Counter
	CounterSessionsCompleted prometheus.Counter
	CounterSessionsAbandoned prometheus.Counter
	CounterSessionsScheduled prometheus.Counter
	CounterPainReports       prometheus.Counter
	CounterXPAwarded         prometheus.Counter
	CounterBadgesUnlocked    *prometheus.CounterVec

	// histograms
	HistogramRequestDuration *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("engine", "test", prometheus.NewRegistry())
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}

	return &Manager{
		CounterSetsLogged:        counter("sets_logged", "The total number of set log writes"),
		CounterExtraSets:         counter("extra_sets", "The total number of extra sets added"),
		CounterSessionsCompleted: counter("sessions_completed", "The total number of completed sessions"),
		CounterSessionsAbandoned: counter("sessions_abandoned", "The total number of abandoned sessions"),
		CounterSessionsScheduled: counter("sessions_scheduled", "The total number of scheduled placeholder sessions"),
		CounterPainReports:       counter("pain_reports", "The total number of sets logged with pain"),
		CounterXPAwarded:         counter("xp_awarded", "The total XP awarded on session completion"),
		CounterBadgesUnlocked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "badges_unlocked",
			Help:      "The total number of unlocked badges",
		}, []string{"badge"}),
		HistogramRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}
