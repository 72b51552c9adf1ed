// SPDX-License-Identifier: MIT
package metrics_test

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/Typecraft/tbf/internal/metrics"
)

func TestPromhttpExposure(t *testing.T) {
	metrics.IncEncoded(nil, 42)
	metrics.IncDecoded(errors.New("boom"), 0)
	metrics.IncCache(true)
	metrics.IncJobFile("converted")
	metrics.ObserveStoreOp("put", time.Now(), nil)
	metrics.ObserveHTTP("GET", "/api/v1/documents", 200, time.Now())

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"tbf_documents_encoded_total",
		"tbf_documents_decoded_total",
		"tbf_cache_requests_total",
		"tbf_job_files_total",
		"tbf_store_op_duration_seconds",
		"tbf_http_requests_total",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics exposition missing %s", want)
		}
	}
}

func TestEncodedCounterLabels(t *testing.T) {
	metrics.IncEncoded(nil, 10)
	metrics.IncEncoded(errors.New("boom"), 0)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var fam *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "tbf_documents_encoded_total" {
			fam = f
			break
		}
	}
	if fam == nil {
		t.Fatal("tbf_documents_encoded_total not gathered")
	}
	outcomes := map[string]bool{}
	for _, m := range fam.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "outcome" {
				outcomes[l.GetValue()] = true
			}
		}
	}
	if !outcomes["success"] || !outcomes["failure"] {
		t.Fatalf("outcomes = %v", outcomes)
	}
}
