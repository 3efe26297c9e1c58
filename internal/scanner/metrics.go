package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scanOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "qrattend_scan_outcomes_total",
	Help: "Scan outcomes by status (success, duplicate, error).",
}, []string{"status"})

var framesSampled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "qrattend_frames_sampled_total",
	Help: "Camera frames run through the QR frame-decode step.",
})
