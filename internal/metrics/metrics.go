// SPDX-License-Identifier: MIT
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Codec metrics
	documentsEncoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tbf_documents_encoded_total",
		Help: "Documents encoded to the binary format by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	documentsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tbf_documents_decoded_total",
		Help: "Documents decoded from the binary format by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	bytesEncoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tbf_bytes_encoded_total",
		Help: "Total bytes produced by the encoder",
	})

	bytesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tbf_bytes_decoded_total",
		Help: "Total bytes consumed by the decoder",
	})

	// Store metrics
	storeOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tbf_store_op_duration_seconds",
		Help:    "Document store operation latency by operation and outcome",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "outcome"}) // op=put|get|list|delete

	documentsStored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tbf_documents_stored",
		Help: "Number of documents currently in the store (last listing)",
	})

	// Cache metrics
	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tbf_cache_requests_total",
		Help: "Decoded-document cache requests by outcome",
	}, []string{"outcome"}) // outcome=hit|miss

	// Conversion job metrics
	jobFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tbf_job_files_total",
		Help: "Files processed by conversion jobs by outcome",
	}, []string{"outcome"}) // outcome=converted|failed|skipped

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tbf_job_duration_seconds",
		Help:    "Wall time of batch conversion jobs",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})

	// HTTP metrics
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tbf_http_requests_total",
		Help: "HTTP requests by method, route and status code",
	}, []string{"method", "route", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tbf_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

func IncEncoded(err error, size int) {
	if err != nil {
		documentsEncoded.WithLabelValues("failure").Inc()
		return
	}
	documentsEncoded.WithLabelValues("success").Inc()
	bytesEncoded.Add(float64(size))
}

func IncDecoded(err error, size int) {
	if err != nil {
		documentsDecoded.WithLabelValues("failure").Inc()
		return
	}
	documentsDecoded.WithLabelValues("success").Inc()
	bytesDecoded.Add(float64(size))
}

func ObserveStoreOp(op string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	storeOpDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

func RecordDocumentCount(n int) { documentsStored.Set(float64(n)) }

func IncCache(hit bool) {
	if hit {
		cacheRequests.WithLabelValues("hit").Inc()
		return
	}
	cacheRequests.WithLabelValues("miss").Inc()
}

func IncJobFile(outcome string) { jobFiles.WithLabelValues(outcome).Inc() }

func ObserveJob(start time.Time) { jobDuration.Observe(time.Since(start).Seconds()) }

func ObserveHTTP(method, route string, code int, start time.Time) {
	httpRequests.WithLabelValues(method, route, itoa(code)).Inc()
	httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

func itoa(code int) string {
	// Status codes are three digits; avoid strconv on the hot path.
	if code < 100 || code > 999 {
		return "0"
	}
	return string([]byte{
		byte('0' + code/100),
		byte('0' + (code/10)%10),
		byte('0' + code%10),
	})
}
