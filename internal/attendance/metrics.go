package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkinAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classattend_checkin_attempts_total",
		Help: "Check-in submissions by outcome.",
	}, []string{"result"})

	faceGateSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "classattend_face_gate_seconds",
		Help:    "Wall time of the face verification gate per submission.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classattend_session_transitions_total",
		Help: "Attendance session lifecycle actions.",
	}, []string{"action"})
)
