package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds all Prometheus metrics for the share server.
type Metrics struct {
	UploadsTotal  prometheus.Counter     // shared_uploads_total
	UploadedBytes prometheus.Counter     // shared_uploaded_bytes_total
	Downloads     *prometheus.CounterVec // shared_downloads_total{kind}
	Rejections    *prometheus.CounterVec // shared_upload_rejections_total{reason}

	SweptShares    prometheus.Counter // shared_swept_shares_total
	ReclaimedBytes prometheus.Counter // shared_reclaimed_bytes_total

	ActiveShares     prometheus.Gauge // shared_active_shares
	StorageUsedBytes prometheus.Gauge // shared_storage_used_bytes
	StorageCapBytes  prometheus.Gauge // shared_storage_capacity_bytes
}

// Init registers all metrics once; later calls return the same
// instance. A nil registerer means the Prometheus default.
func Init(registry prometheus.Registerer) *Metrics {
	once.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		instance = &Metrics{
			UploadsTotal: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "shared_uploads_total",
				Help: "Total accepted uploads",
			}),
			UploadedBytes: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "shared_uploaded_bytes_total",
				Help: "Total bytes accepted across all uploads",
			}),
			Downloads: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "shared_downloads_total",
				Help: "Total downloads by kind",
			}, []string{"kind"}),
			Rejections: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "shared_upload_rejections_total",
				Help: "Total rejected uploads by reason",
			}, []string{"reason"}),
			SweptShares: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "shared_swept_shares_total",
				Help: "Total expired shares removed by the sweeper",
			}),
			ReclaimedBytes: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "shared_reclaimed_bytes_total",
				Help: "Total bytes reclaimed from expired shares",
			}),
			ActiveShares: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
				Name: "shared_active_shares",
				Help: "Number of live share codes",
			}),
			StorageUsedBytes: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
				Name: "shared_storage_used_bytes",
				Help: "Bytes currently held against the storage quota",
			}),
			StorageCapBytes: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
				Name: "shared_storage_capacity_bytes",
				Help: "Storage quota ceiling in bytes",
			}),
		}
	})
	return instance
}

// Get returns the singleton, or nil when Init was never called.
// Callers treat nil as metrics-disabled.
func Get() *Metrics {
	return instance
}
