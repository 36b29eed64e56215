package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csvshare_operations_total",
		Help: "Record operations by operation and result.",
	}, []string{"operation", "result"})

	contentBytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csvshare_content_bytes_written_total",
		Help: "Bytes written to the content store.",
	})

	orphanedBlobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csvshare_orphaned_blobs_total",
		Help: "Content writes left without a matching catalog change, by reason.",
	}, []string{"reason"})

	activeWrites = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "csvshare_active_writes",
		Help: "Content writes currently holding a limiter slot.",
	})
)

// observe records the outcome of one operation.
func observe(operation string, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	operationsTotal.WithLabelValues(operation, result).Inc()
}
