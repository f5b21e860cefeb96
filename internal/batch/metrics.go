package batch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics are registered on a private registry per run so repeated runs
// in one process do not collide.
type metrics struct {
	registry       *prometheus.Registry
	imagesTotal    *prometheus.CounterVec
	samplesTotal   *prometheus.CounterVec
	imageDuration  prometheus.Histogram
	featuresPerRow prometheus.Gauge
	workers        prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		imagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lbpfeat_batch_images_total",
				Help: "Total number of images processed",
			},
			[]string{"status"}, // status: ok, failed
		),
		samplesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lbpfeat_batch_samples_total",
				Help: "Total number of samples extracted",
			},
			[]string{"status"},
		),
		imageDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lbpfeat_batch_image_duration_seconds",
				Help:    "Time to load, prepare and extract one image",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
		featuresPerRow: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lbpfeat_batch_features",
				Help: "Number of features per dataset row",
			},
		),
		workers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lbpfeat_batch_workers",
				Help: "Number of extraction workers",
			},
		),
	}
	m.registry.MustRegister(m.imagesTotal, m.samplesTotal, m.imageDuration, m.featuresPerRow, m.workers)
	return m
}

func (m *metrics) writeTo(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
