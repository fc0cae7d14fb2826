package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kokoronote_login_attempts_total",
		Help: "Number of login attempts grouped by status.",
	}, []string{"status"})

	refreshRotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kokoronote_refresh_rotations_total",
		Help: "Number of refresh rotations grouped by status.",
	}, []string{"status"})

	logoutEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kokoronote_logout_events_total",
		Help: "Number of logout attempts grouped by status.",
	}, []string{"status"})

	notesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kokoronote_notes_created_total",
		Help: "Number of notes created grouped by mood source.",
	}, []string{"mood_type"})

	trendGenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kokoronote_trend_generations_total",
		Help: "Number of trend stream requests grouped by outcome.",
	}, []string{"outcome"})

	trendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kokoronote_trend_generation_seconds",
		Help:    "Wall time of full trend generation runs.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	simulationTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kokoronote_simulation_turns_total",
		Help: "Number of simulation suggestion requests grouped by role.",
	}, []string{"role"})

	rateLimitHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kokoronote_rate_limit_hits_total",
		Help: "Rate limiter activations grouped by limiter name.",
	}, []string{"limiter"})
)

// IncLogin increments the login counter.
func IncLogin(status string) {
	loginAttempts.WithLabelValues(status).Inc()
}

// IncRefresh increments the refresh rotation counter.
func IncRefresh(status string) {
	refreshRotations.WithLabelValues(status).Inc()
}

// IncLogout increments the logout counter.
func IncLogout(status string) {
	logoutEvents.WithLabelValues(status).Inc()
}

// IncNoteCreated increments the note creation counter.
func IncNoteCreated(moodType string) {
	notesCreated.WithLabelValues(moodType).Inc()
}

// IncTrendGeneration increments the trend generation counter.
func IncTrendGeneration(outcome string) {
	trendGenerations.WithLabelValues(outcome).Inc()
}

// ObserveTrendDuration records how long one full generation run took.
func ObserveTrendDuration(seconds float64) {
	trendDuration.Observe(seconds)
}

// IncSimulationTurn increments the simulation turn counter.
func IncSimulationTurn(role string) {
	simulationTurns.WithLabelValues(role).Inc()
}

// IncRateLimit increments the rate-limit hit counter.
func IncRateLimit(name string) {
	rateLimitHits.WithLabelValues(name).Inc()
}
