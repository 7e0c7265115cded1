package metrics

import (
	"errors"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrorKinder lets typed errors pick their own result label.
type ErrorKinder interface {
	Code() string
}

// Recorder records pipeline job and model metrics in Prometheus.
type Recorder struct {
	jobsTotal     *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	skipsTotal    *prometheus.CounterVec
	recordsTotal  *prometheus.CounterVec
	modelAccuracy prometheus.Gauge
	modelAUC      prometheus.Gauge
	modelGap      prometheus.Gauge
	modelInfo     *prometheus.GaugeVec
}

// New registers the collectors on reg; nil uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		jobsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "senticast_jobs_total",
			Help: "Pipeline job runs by result",
		}, []string{"job", "result"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "senticast_job_duration_seconds",
			Help:    "Pipeline job duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"job"}),
		skipsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "senticast_skipped_total",
			Help: "Records skipped by stage and reason",
		}, []string{"stage", "reason"}),
		recordsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "senticast_records_written_total",
			Help: "Derived records upserted",
		}, []string{"kind", "op"}),
		modelAccuracy: f.NewGauge(prometheus.GaugeOpts{
			Name: "senticast_model_test_accuracy",
			Help: "Held-out accuracy of the published model",
		}),
		modelAUC: f.NewGauge(prometheus.GaugeOpts{
			Name: "senticast_model_test_auc",
			Help: "Held-out ROC AUC of the published model",
		}),
		modelGap: f.NewGauge(prometheus.GaugeOpts{
			Name: "senticast_model_overfitting_gap",
			Help: "Train minus test accuracy of the published model",
		}),
		modelInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "senticast_model_info",
			Help: "Published model version",
		}, []string{"version"}),
	}
}

func (r *Recorder) RecordJob(job string, err error, seconds float64) {
	r.jobsTotal.WithLabelValues(job, resultLabel(err)).Inc()
	r.jobDuration.WithLabelValues(job).Observe(seconds)
}

func (r *Recorder) RecordSkip(stage, reason string) {
	r.skipsTotal.WithLabelValues(stage, reason).Inc()
}

func (r *Recorder) RecordRecords(kind string, created, updated int) {
	r.recordsTotal.WithLabelValues(kind, "created").Add(float64(created))
	r.recordsTotal.WithLabelValues(kind, "updated").Add(float64(updated))
}

// RecordModel replaces the published-model gauges. A NaN auc is left unset.
func (r *Recorder) RecordModel(version string, testAccuracy, auc, overfittingGap float64) {
	r.modelInfo.Reset()
	r.modelInfo.WithLabelValues(version).Set(1)
	r.modelAccuracy.Set(testAccuracy)
	r.modelGap.Set(overfittingGap)
	if !math.IsNaN(auc) {
		r.modelAUC.Set(auc)
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var k ErrorKinder
	if errors.As(err, &k) {
		return k.Code()
	}
	return "error"
}
