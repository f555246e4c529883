package readout

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts what the run store has written.
type Metrics struct {
	RunsStarted     prometheus.Counter
	Events          prometheus.Counter
	PhotonsProduced prometheus.Counter
	PhotonsArrived  prometheus.Counter
	PhotonsDetected prometheus.Counter
	MuonDEdx        prometheus.Histogram
	DetectedPerEvt  prometheus.Histogram

	registry *prometheus.Registry
}

func NewMetrics() *Metrics {
	m := &Metrics{
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "muonbar",
			Subsystem: "run",
			Name:      "started_total",
			Help:      "Total number of runs started",
		}),
		Events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "muonbar",
			Subsystem: "events",
			Name:      "written_total",
			Help:      "Total number of events written",
		}),
		PhotonsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "muonbar",
			Subsystem: "photons",
			Name:      "produced_total",
			Help:      "Scintillation photons produced",
		}),
		PhotonsArrived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "muonbar",
			Subsystem: "photons",
			Name:      "arrived_window_total",
			Help:      "Photons entering the SiPM window",
		}),
		PhotonsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "muonbar",
			Subsystem: "photons",
			Name:      "detected_total",
			Help:      "Photons detected inside the time window",
		}),
		MuonDEdx: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "muonbar",
			Subsystem: "muon",
			Name:      "dedx_mev_per_cm",
			Help:      "Muon dE/dx in the active volume",
			Buckets:   prometheus.LinearBuckets(0, 0.25, 20),
		}),
		DetectedPerEvt: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "muonbar",
			Subsystem: "photons",
			Name:      "detected_per_event",
			Help:      "Detected photons per event",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.RunsStarted,
		m.Events,
		m.PhotonsProduced,
		m.PhotonsArrived,
		m.PhotonsDetected,
		m.MuonDEdx,
		m.DetectedPerEvt,
	)
	return m
}

func (m *Metrics) Observe(record EventRecord) {
	m.Events.Inc()
	m.PhotonsProduced.Add(float64(record.PhotonsProduced))
	m.PhotonsArrived.Add(float64(record.PhotonsArrived))
	m.PhotonsDetected.Add(float64(record.Observables.Detected))
	m.MuonDEdx.Observe(record.Observables.DEdx)
	m.DetectedPerEvt.Observe(float64(record.Observables.Detected))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
