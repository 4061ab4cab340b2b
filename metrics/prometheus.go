package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for predictions.
const (
	OutcomeOK              = "ok"
	OutcomeUnknownCategory = "unknown_category"
	OutcomeMalformed       = "malformed_record"
	OutcomeUnavailable     = "models_unavailable"
)

// Manager owns the pipeline metrics. A nil *Manager is valid and records
// nothing.
type Manager struct {
	namespace       string
	subsystem       string
	durationBuckets []float64
	registry        *prometheus.Registry
	constLabels     prometheus.Labels

	predictions      *prometheus.CounterVec
	unknownByFeature *prometheus.CounterVec
	trainingRuns     *prometheus.CounterVec
	trainingDuration prometheus.Histogram
	trainingRows     prometheus.Gauge
	heldOutR2        *prometheus.GaugeVec
	heldOutRMSE      *prometheus.GaugeVec
	bundleReloads    prometheus.Counter
	bundlePublished  prometheus.Gauge
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "vgsales",
		subsystem:       "pipeline",
		durationBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		registry:        prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	var reg prometheus.Registerer = m.registry
	if len(m.constLabels) > 0 {
		reg = prometheus.WrapRegistererWith(m.constLabels, m.registry)
	}
	auto := promauto.With(reg)

	m.predictions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "predictions_total",
		Help:      "Prediction requests by outcome",
	}, []string{"outcome"})

	m.unknownByFeature = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "unknown_categories_total",
		Help:      "Rejected predictions by the feature carrying an unseen value",
	}, []string{"feature"})

	m.trainingRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "training_runs_total",
		Help:      "Training runs by result",
	}, []string{"result"})

	m.trainingDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "training_duration_seconds",
		Help:      "Wall time of successful training runs",
		Buckets:   m.durationBuckets,
	})

	m.trainingRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "training_rows",
		Help:      "Rows used to fit the current models",
	})

	m.heldOutR2 = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "held_out_r2",
		Help:      "Coefficient of determination on the held-out partition",
	}, []string{"model"})

	m.heldOutRMSE = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "held_out_rmse",
		Help:      "Root mean squared error on the held-out partition",
	}, []string{"model"})

	m.bundleReloads = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "bundle_reloads_total",
		Help:      "Times a newly published bundle was loaded",
	})

	m.bundlePublished = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "bundle_published_timestamp_seconds",
		Help:      "Unix time of the last published bundle",
	})
}

func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Manager) ObservePrediction(outcome string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(outcome).Inc()
}

func (m *Manager) ObserveUnknownCategory(feature string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(OutcomeUnknownCategory).Inc()
	m.unknownByFeature.WithLabelValues(feature).Inc()
}

func (m *Manager) ObserveTrainingFailure() {
	if m == nil {
		return
	}
	m.trainingRuns.WithLabelValues("failure").Inc()
}

// ObserveTraining records a successful run. NaN scores are skipped.
func (m *Manager) ObserveTraining(duration time.Duration, rows int, r2, rmse map[string]float64) {
	if m == nil {
		return
	}
	m.trainingRuns.WithLabelValues("success").Inc()
	m.trainingDuration.Observe(duration.Seconds())
	m.trainingRows.Set(float64(rows))
	for model, v := range r2 {
		if !math.IsNaN(v) {
			m.heldOutR2.WithLabelValues(model).Set(v)
		}
	}
	for model, v := range rmse {
		if !math.IsNaN(v) {
			m.heldOutRMSE.WithLabelValues(model).Set(v)
		}
	}
}

func (m *Manager) ObservePublished(at time.Time) {
	if m == nil {
		return
	}
	m.bundlePublished.Set(float64(at.Unix()))
}

func (m *Manager) ObserveReload() {
	if m == nil {
		return
	}
	m.bundleReloads.Inc()
}

// WriteTextfile dumps every metric in the text exposition format, for the
// node exporter textfile collector. An empty path is a no-op.
func (m *Manager) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return nil
}
