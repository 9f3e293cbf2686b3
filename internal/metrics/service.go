package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewHandler returns an http.Handler for the given Gatherer, or the default one.
func NewHandler(gatherer ...prometheus.Gatherer) http.Handler {
	g := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		g = gatherer[0]
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

type Service struct {
	SessionsStarted      prometheus.Counter
	SessionsEnded        prometheus.Counter
	Turns                *prometheus.CounterVec
	TurnDuration         prometheus.Histogram
	Warnings             *prometheus.CounterVec
	LeaderboardPublished prometheus.Counter
}

// NewService creates and registers the Prometheus collectors.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "turntally_sessions_started_total",
			Help: "The total number of sessions whose clock was started.",
		}),
		SessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "turntally_sessions_ended_total",
			Help: "The total number of sessions ended and recorded.",
		}),
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turntally_turns_total",
			Help: "The total number of turns advanced, by outcome.",
		}, []string{"outcome"}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "turntally_turn_duration_seconds",
			Help:    "The duration of recorded turns.",
			Buckets: []float64{5, 10, 20, 30, 45, 60, 90, 120, 180, 300, 600},
		}),
		Warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turntally_turn_warnings_total",
			Help: "The total number of times a running turn entered a warning level.",
		}, []string{"level"}),
		LeaderboardPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "turntally_leaderboard_published_total",
			Help: "The total number of leaderboard updates published.",
		}),
	}

	reg.MustRegister(
		s.SessionsStarted,
		s.SessionsEnded,
		s.Turns,
		s.TurnDuration,
		s.Warnings,
		s.LeaderboardPublished,
	)

	return s
}

func (s *Service) IncSessionsStarted() {
	s.SessionsStarted.Inc()
}

func (s *Service) IncSessionsEnded() {
	s.SessionsEnded.Inc()
}

func (s *Service) ObserveTurn(seconds int, saved bool) {
	if !saved {
		s.Turns.WithLabelValues("scrapped").Inc()
		return
	}
	s.Turns.WithLabelValues("recorded").Inc()
	s.TurnDuration.Observe(float64(seconds))
}

func (s *Service) IncWarning(level string) {
	s.Warnings.WithLabelValues(level).Inc()
}

func (s *Service) IncLeaderboardPublished() {
	s.LeaderboardPublished.Inc()
}
