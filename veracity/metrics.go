package veracity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var uploadsReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "veracity_uploads_received_total",
	Help: "Total number of image upload requests received",
})

var uploadsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "veracity_uploads_failed_total",
	Help: "Total number of image uploads rejected or failed",
}, []string{"reason"})

var imagesStored = promauto.NewCounter(prometheus.CounterOpts{
	Name: "veracity_images_stored_total",
	Help: "Total number of new image records created",
})

var leavesQueued = promauto.NewCounter(prometheus.CounterOpts{
	Name: "veracity_log_leaves_queued_total",
	Help: "Total number of leaves queued to the transparency log",
})

var hashDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "veracity_hash_duration_seconds",
	Help:    "Time taken to compute the hash pair for an upload",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
})

var lookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "veracity_lookup_duration_seconds",
	Help:    "Time taken to serve an image lookup",
	Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
})

var tilesStaged = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "veracity_tiles_staged",
	Help: "Number of map tiles currently holding staged leaves",
})
