package game

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRoomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "game",
		Name:      "rooms_created_total",
		Help:      "Number of rooms created.",
	})
	metricMatchesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "game",
		Name:      "matches_started_total",
		Help:      "Number of matches moved from lobby to active.",
	})
	metricMatchesFinished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "game",
		Name:      "matches_finished_total",
		Help:      "Number of matches that reached the finished state.",
	})
	metricAnswersSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "game",
		Name:      "answers_submitted_total",
		Help:      "Number of accepted answer submissions.",
	})
	metricActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "game",
		Name:      "active_rooms",
		Help:      "Rooms currently tracked by this engine instance.",
	})
)
